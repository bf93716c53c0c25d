package testutil

import (
	"strings"
	"time"

	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/scraper"
	"gorm.io/gorm"
)

// TestUser creates a free-tier test user with no personalization.
func TestUser() *models.User {
	return &models.User{
		Model:    gorm.Model{ID: 1},
		Username: "testuser",
		Subscription: &models.Subscription{
			Model:  gorm.Model{ID: 1},
			UserID: 1,
			Tier:   models.TierFree,
		},
	}
}

// TestPremiumUser creates a premium test user with the given allergens and
// unavailable equipment.
func TestPremiumUser(allergens []string, equipment []string) *models.User {
	expires := time.Now().Add(30 * 24 * time.Hour)
	u := TestUser()
	u.Subscription.Tier = models.TierPremium
	u.Subscription.ExpiresAt = &expires
	u.Personalization = &models.Personalization{
		Model:                gorm.Model{ID: 1},
		UserID:               u.ID,
		Allergens:            allergens,
		UnavailableEquipment: equipment,
	}
	return u
}

// TestConversation creates a conversation owned by user 1.
func TestConversation(messages ...string) *models.Conversation {
	c := &models.Conversation{Model: gorm.Model{ID: 10}, UserID: 1}
	for i, content := range messages {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		c.Messages = append(c.Messages, models.Message{
			Model:          gorm.Model{ID: uint(i + 1)},
			ConversationID: c.ID,
			Role:           role,
			Content:        content,
		})
	}
	return c
}

// TestPage creates a scrape result with enough content to pass extraction.
func TestPage(text string) *scraper.ScrapeResult {
	return &scraper.ScrapeResult{
		Content:  text + "\n" + strings.Repeat("Stir and taste as you go. ", 10),
		ImageURL: "https://images.example.com/recipe.jpg",
	}
}

// KimchiStewWithShrimp is a formatter result containing salted shrimp.
func KimchiStewWithShrimp() *ai.RecipeResult {
	return &ai.RecipeResult{
		Title:       "Kimchi Jjigae",
		Description: "Spicy kimchi stew",
		Portions:    2,
		Ingredients: []string{
			"2 cups aged kimchi",
			"200 g pork belly",
			"1 tbsp saeujeot (salted shrimp)",
			"1 block tofu",
		},
		Instructions: []string{
			"Saute the pork belly and kimchi in a pot.",
			"Add water and the saeujeot, then simmer for 20 minutes.",
			"Add the tofu and simmer 5 more minutes.",
		},
	}
}

// KimchiStewVegetarianBroth is a formatter result with no shellfish.
func KimchiStewVegetarianBroth() *ai.RecipeResult {
	return &ai.RecipeResult{
		Title:    "Kimchi Stew with Mushroom Broth",
		Portions: 2,
		Ingredients: []string{
			"2 cups aged kimchi",
			"4 shiitake mushrooms",
			"1 block tofu",
			"1 tbsp gochugaru",
		},
		Instructions: []string{
			"Simmer the mushrooms in water for 10 minutes.",
			"Add the kimchi and gochugaru and simmer 15 minutes.",
			"Add the tofu and serve.",
		},
	}
}

// SearchResults builds search results for the given URLs.
func SearchResults(urls ...string) []ai.SearchResult {
	results := make([]ai.SearchResult, len(urls))
	for i, u := range urls {
		results[i] = ai.SearchResult{
			Title:       "Kimchi Stew",
			URL:         u,
			Description: "A warming Korean stew.",
		}
	}
	return results
}
