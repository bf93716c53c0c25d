package ai

import "context"

// RecipeFormatter turns scraped page text into a structured recipe (Claude or
// GPT). Implementations return *ExtractionError on failure.
type RecipeFormatter interface {
	FormatRecipe(ctx context.Context, req FormatRequest) (*RecipeResult, error)
}

// Substituter proposes replacements for ingredients that violate a user's
// dietary constraints.
type Substituter interface {
	SubstituteIngredients(ctx context.Context, req SubstitutionRequest) (*SubstitutionResult, error)
}

// IntentExtractor derives the dish a user is asking for from a conversation.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, messages []Message) (*Intent, error)
}

// SearchProvider handles web recipe search (Brave + Google fallback).
type SearchProvider interface {
	SearchRecipes(ctx context.Context, query SearchQuery) ([]SearchResult, error)
}

// FormatRequest holds the page content and the constraints the formatter
// should respect.
type FormatRequest struct {
	SourceURL            string
	Dish                 string
	Content              string
	Constraints          []string // allergens and dietary restrictions
	UnavailableEquipment []string
}

// RecipeResult is the structured output of the formatter and the substituter.
type RecipeResult struct {
	Title         string
	Description   string
	Portions      int
	Ingredients   []string
	Instructions  []string
	Substitutions []Substitution
}

// Substitution is a single ingredient replacement reported by a model.
type Substitution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Reason      string `json:"reason"`
}

// SubstitutionRequest describes a recipe with flagged ingredients.
type SubstitutionRequest struct {
	Title        string
	Ingredients  []string
	Instructions []string
	Flagged      []string // ingredient lines that violate a constraint
	Constraints  []string
}

// SubstitutionResult is the revised ingredient and instruction list.
type SubstitutionResult struct {
	Ingredients   []string
	Instructions  []string
	Substitutions []Substitution
}

// Intent is the cooking request extracted from a conversation.
type Intent struct {
	Dish        string `json:"dish"`
	SearchQuery string `json:"search_query"`
	OnTopic     bool   `json:"on_topic"`
}

// SearchQuery is a recipe search with the terms and domains to exclude.
type SearchQuery struct {
	Query          string
	ExcludeTerms   []string
	ExcludeDomains []string
	Count          int
}

// SearchResult is a single web search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"source_url"`
	Source      string `json:"source_domain"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
	// Salvaged is set when the result was recovered from an unparseable
	// provider response.
	Salvaged bool `json:"-"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}
