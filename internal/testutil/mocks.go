package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"github.com/windoze95/saltybytes-resolver/internal/scraper"
)

// --- MockRecipeFormatter ---

// MockRecipeFormatter is a mock implementation of ai.RecipeFormatter.
type MockRecipeFormatter struct {
	FormatRecipeFunc func(ctx context.Context, req ai.FormatRequest) (*ai.RecipeResult, error)
}

func (m *MockRecipeFormatter) FormatRecipe(ctx context.Context, req ai.FormatRequest) (*ai.RecipeResult, error) {
	if m.FormatRecipeFunc != nil {
		return m.FormatRecipeFunc(ctx, req)
	}
	return nil, fmt.Errorf("FormatRecipe not configured")
}

// --- MockSubstituter ---

// MockSubstituter is a mock implementation of ai.Substituter.
type MockSubstituter struct {
	SubstituteIngredientsFunc func(ctx context.Context, req ai.SubstitutionRequest) (*ai.SubstitutionResult, error)
}

func (m *MockSubstituter) SubstituteIngredients(ctx context.Context, req ai.SubstitutionRequest) (*ai.SubstitutionResult, error) {
	if m.SubstituteIngredientsFunc != nil {
		return m.SubstituteIngredientsFunc(ctx, req)
	}
	return nil, fmt.Errorf("SubstituteIngredients not configured")
}

// --- MockIntentExtractor ---

// MockIntentExtractor is a mock implementation of ai.IntentExtractor.
type MockIntentExtractor struct {
	ExtractIntentFunc func(ctx context.Context, messages []ai.Message) (*ai.Intent, error)
}

func (m *MockIntentExtractor) ExtractIntent(ctx context.Context, messages []ai.Message) (*ai.Intent, error) {
	if m.ExtractIntentFunc != nil {
		return m.ExtractIntentFunc(ctx, messages)
	}
	return nil, fmt.Errorf("ExtractIntent not configured")
}

// --- MockSearchProvider ---

// MockSearchProvider is a mock implementation of ai.SearchProvider that
// records every query.
type MockSearchProvider struct {
	mu      sync.Mutex
	Queries []ai.SearchQuery

	SearchRecipesFunc func(ctx context.Context, query ai.SearchQuery) ([]ai.SearchResult, error)
}

func (m *MockSearchProvider) SearchRecipes(ctx context.Context, query ai.SearchQuery) ([]ai.SearchResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.SearchRecipesFunc != nil {
		return m.SearchRecipesFunc(ctx, query)
	}
	return nil, fmt.Errorf("SearchRecipes not configured")
}

// --- MockPageFetcher ---

// MockPageFetcher serves canned pages by URL and records fetch order.
type MockPageFetcher struct {
	mu      sync.Mutex
	Pages   map[string]*scraper.ScrapeResult
	Errors  map[string]error
	Fetched []string

	FetchFunc func(ctx context.Context, pageURL string) (*scraper.ScrapeResult, error)
}

// NewMockPageFetcher creates a new MockPageFetcher with initialized maps.
func NewMockPageFetcher() *MockPageFetcher {
	return &MockPageFetcher{
		Pages:  make(map[string]*scraper.ScrapeResult),
		Errors: make(map[string]error),
	}
}

func (m *MockPageFetcher) Fetch(ctx context.Context, pageURL string) (*scraper.ScrapeResult, error) {
	m.mu.Lock()
	m.Fetched = append(m.Fetched, pageURL)
	page, hasPage := m.Pages[pageURL]
	err, hasErr := m.Errors[pageURL]
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, pageURL)
	}
	if hasErr {
		return nil, err
	}
	if hasPage {
		return page, nil
	}
	return nil, &scraper.HTTPStatusError{URL: pageURL, StatusCode: 404}
}

// --- MockImageMirror ---

// MockImageMirror is a mock implementation of service.ImageMirror.
type MockImageMirror struct {
	MirrorRecipeImageFunc func(ctx context.Context, recipeID uint, imageURL string) (string, error)
}

func (m *MockImageMirror) MirrorRecipeImage(ctx context.Context, recipeID uint, imageURL string) (string, error) {
	if m.MirrorRecipeImageFunc != nil {
		return m.MirrorRecipeImageFunc(ctx, recipeID, imageURL)
	}
	return "", fmt.Errorf("MirrorRecipeImage not configured")
}

// --- MockRecipeRepo ---

// MockRecipeRepo is an in-memory mock implementation of repository.RecipeRepo.
type MockRecipeRepo struct {
	mu      sync.Mutex
	Recipes map[uint]*models.StoredRecipe
	NextID  uint

	// Error overrides: set these to force specific methods to return errors.
	CreateRecipeErr         error
	GetRecipeByIDErr        error
	FindBySourceURLErr      error
	UpdateRecipeErr         error
	UpdateRecipeImageURLErr error
}

// NewMockRecipeRepo creates a new MockRecipeRepo with initialized maps.
func NewMockRecipeRepo() *MockRecipeRepo {
	return &MockRecipeRepo{
		Recipes: make(map[uint]*models.StoredRecipe),
		NextID:  1,
	}
}

func (m *MockRecipeRepo) CreateRecipe(ctx context.Context, recipe *models.StoredRecipe) error {
	if m.CreateRecipeErr != nil {
		return m.CreateRecipeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	recipe.ID = m.NextID
	m.NextID++
	m.Recipes[recipe.ID] = recipe
	return nil
}

func (m *MockRecipeRepo) GetRecipeByID(ctx context.Context, recipeID, userID uint) (*models.StoredRecipe, error) {
	if m.GetRecipeByIDErr != nil {
		return nil, m.GetRecipeByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.Recipes[recipeID]
	if !ok || r.UserID != userID {
		return nil, repository.NewNotFoundError("Recipe not found")
	}
	return r, nil
}

func (m *MockRecipeRepo) FindBySourceURL(ctx context.Context, userID uint, sourceURLLower string) (*models.StoredRecipe, error) {
	if m.FindBySourceURLErr != nil {
		return nil, m.FindBySourceURLErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.StoredRecipe
	for _, r := range m.Recipes {
		if r.UserID == userID && r.SourceURLLower == sourceURLLower && (found == nil || r.ID < found.ID) {
			found = r
		}
	}
	if found == nil {
		return nil, repository.NewNotFoundError("Recipe not found")
	}
	return found, nil
}

func (m *MockRecipeRepo) UpdateRecipe(ctx context.Context, recipe *models.StoredRecipe) error {
	if m.UpdateRecipeErr != nil {
		return m.UpdateRecipeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Recipes[recipe.ID] = recipe
	return nil
}

func (m *MockRecipeRepo) UpdateRecipeImageURL(ctx context.Context, recipeID uint, imageURL string) error {
	if m.UpdateRecipeImageURLErr != nil {
		return m.UpdateRecipeImageURLErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.Recipes[recipeID]
	if !ok {
		return repository.NewNotFoundError("Recipe not found")
	}
	r.ImageURL = imageURL
	return nil
}

// Count returns the number of stored recipes.
func (m *MockRecipeRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Recipes)
}

// --- MockUserRepo ---

// MockUserRepo is an in-memory mock implementation of repository.UserRepo.
type MockUserRepo struct {
	mu    sync.Mutex
	Users map[uint]*models.User

	GetUserByIDErr error
}

// NewMockUserRepo creates a new MockUserRepo with initialized maps.
func NewMockUserRepo(users ...*models.User) *MockUserRepo {
	m := &MockUserRepo{Users: make(map[uint]*models.User)}
	for _, u := range users {
		m.Users[u.ID] = u
	}
	return m
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	if m.GetUserByIDErr != nil {
		return nil, m.GetUserByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok {
		return nil, repository.NewNotFoundError("User not found")
	}
	return u, nil
}

// --- MockConversationRepo ---

// MockConversationRepo is an in-memory mock implementation of
// repository.ConversationRepo.
type MockConversationRepo struct {
	mu            sync.Mutex
	Conversations map[uint]*models.Conversation

	GetConversationByIDErr error
}

// NewMockConversationRepo creates a new MockConversationRepo with initialized maps.
func NewMockConversationRepo(convos ...*models.Conversation) *MockConversationRepo {
	m := &MockConversationRepo{Conversations: make(map[uint]*models.Conversation)}
	for _, c := range convos {
		m.Conversations[c.ID] = c
	}
	return m
}

func (m *MockConversationRepo) GetConversationByID(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	if m.GetConversationByIDErr != nil {
		return nil, m.GetConversationByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Conversations[conversationID]
	if !ok || c.UserID != userID {
		return nil, repository.NewNotFoundError("Conversation not found")
	}
	return c, nil
}
