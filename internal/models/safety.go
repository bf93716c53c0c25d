package models

import "strings"

// Cooking proficiency bounds.
const (
	MinProficiency = 1
	MaxProficiency = 5
)

// SafetyProfile is an immutable snapshot of the constraints a resolved recipe
// must satisfy. CookingProficiency is 0 when the user has not set one.
type SafetyProfile struct {
	Allergens            []string `json:"allergens"`
	Restrictions         []string `json:"restrictions"`
	UnavailableEquipment []string `json:"unavailable_equipment"`
	IsPremium            bool     `json:"is_premium"`
	CookingProficiency   int      `json:"cooking_proficiency,omitempty"`
}

// NewSafetyProfile builds a snapshot, cleaning and copying every list, and
// returns its effective form.
func NewSafetyProfile(allergens, restrictions, equipment []string, isPremium bool, proficiency int) SafetyProfile {
	if proficiency < MinProficiency || proficiency > MaxProficiency {
		proficiency = 0
	}
	p := SafetyProfile{
		Allergens:            cleanTerms(allergens),
		Restrictions:         cleanTerms(restrictions),
		UnavailableEquipment: cleanTerms(equipment),
		IsPremium:            isPremium,
		CookingProficiency:   proficiency,
	}
	return p.Effective()
}

// Effective applies the premium gate: allergen, restriction and proficiency
// tuning only apply to premium users, equipment exclusion applies to all.
func (p SafetyProfile) Effective() SafetyProfile {
	out := SafetyProfile{
		UnavailableEquipment: append([]string(nil), p.UnavailableEquipment...),
		IsPremium:            p.IsPremium,
	}
	if p.IsPremium {
		out.Allergens = append([]string(nil), p.Allergens...)
		out.Restrictions = append([]string(nil), p.Restrictions...)
		out.CookingProficiency = p.CookingProficiency
	}
	return out
}

// HasDietaryConstraints reports whether the ingredient gate must run.
func (p SafetyProfile) HasDietaryConstraints() bool {
	return len(p.Allergens)+len(p.Restrictions) > 0
}

// DietaryConstraints returns allergens followed by restrictions.
func (p SafetyProfile) DietaryConstraints() []string {
	out := make([]string, 0, len(p.Allergens)+len(p.Restrictions))
	out = append(out, p.Allergens...)
	return append(out, p.Restrictions...)
}

func cleanTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
