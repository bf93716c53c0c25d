package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// User is the model for a user. Users are owned by the account service; the
// resolver only reads them.
type User struct {
	gorm.Model
	Username        string           `gorm:"unique;index"`
	Subscription    *Subscription    `gorm:"foreignKey:UserID"`
	Personalization *Personalization `gorm:"foreignKey:UserID"`
}

// SubscriptionTier is the type for the SubscriptionTier enum.
type SubscriptionTier string

// SubscriptionTier enum values.
const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// Subscription is the model for a user's subscription.
type Subscription struct {
	gorm.Model
	UserID    uint             `gorm:"uniqueIndex;not null"`
	Tier      SubscriptionTier `gorm:"type:text;default:'free'"`
	ExpiresAt *time.Time
}

// IsPremium reports whether the subscription grants premium features at t.
func (s *Subscription) IsPremium(t time.Time) bool {
	if s == nil || s.Tier != TierPremium {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(t)
}

// IsValidSubscriptionTier checks if the SubscriptionTier is valid.
func (s *Subscription) IsValidSubscriptionTier() bool {
	switch s.Tier {
	case TierFree, TierPremium:
		return true
	default:
		return false
	}
}

// BeforeCreate is a GORM hook that runs before creating a new user Subscription.
func (s *Subscription) BeforeCreate(tx *gorm.DB) (err error) {
	if !s.IsValidSubscriptionTier() {
		s.Tier = TierFree
	}

	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a user Subscription.
func (s *Subscription) BeforeUpdate(tx *gorm.DB) (err error) {
	if !s.IsValidSubscriptionTier() {
		return errors.New("invalid SubscriptionTier provided")
	}

	return nil
}

// Personalization holds the dietary and kitchen settings that feed the
// resolver's safety profile.
type Personalization struct {
	gorm.Model
	UserID               uint       `gorm:"unique;index"`
	Allergens            StringList `gorm:"type:jsonb"`
	Restrictions         StringList `gorm:"type:jsonb"`
	UnavailableEquipment StringList `gorm:"type:jsonb"`
	CookingProficiency   int        `gorm:"default:0"`
}

// SafetyProfile snapshots the user's constraints at t, applying the premium
// gate. A user without personalization gets an empty profile.
func (u *User) SafetyProfile(t time.Time) SafetyProfile {
	isPremium := u.Subscription.IsPremium(t)
	if u.Personalization == nil {
		return NewSafetyProfile(nil, nil, nil, isPremium, 0)
	}
	p := u.Personalization
	return NewSafetyProfile(p.Allergens, p.Restrictions, p.UnavailableEquipment, isPremium, p.CookingProficiency)
}
