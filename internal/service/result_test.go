package service

import (
	"context"
	"errors"
	"testing"

	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/testutil"
)

func testRecipeData() *models.RecipeData {
	return &models.RecipeData{
		Title:        "Kimchi Stew",
		Ingredients:  []string{"2 cups kimchi", "1 tbsp salt"},
		Instructions: []string{"Simmer."},
		ImageURL:     "https://images.example.com/stew.jpg",
		Substitutions: models.SubstitutionList{
			{Original: "saeujeot", Replacement: "salt", Reason: "shellfish"},
		},
	}
}

func TestResultResolver_CreatesRecipe(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	r := NewResultResolver(repo, nil)
	convo := uint(10)

	stored, err := r.Resolve(context.Background(), 1, "https://Example.com/Kimchi-Stew/", testRecipeData(), &convo)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stored.ID == 0 {
		t.Error("stored recipe has no ID")
	}
	if stored.SourceURL != "https://Example.com/Kimchi-Stew/" {
		t.Errorf("SourceURL = %q", stored.SourceURL)
	}
	if stored.SourceURLLower != "https://example.com/kimchi-stew" {
		t.Errorf("SourceURLLower = %q", stored.SourceURLLower)
	}
	if !stored.HasSubstitutions {
		t.Error("HasSubstitutions = false, want true")
	}
	if stored.ConversationID == nil || *stored.ConversationID != 10 {
		t.Errorf("ConversationID = %v, want 10", stored.ConversationID)
	}
}

func TestResultResolver_DedupIdempotence(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	r := NewResultResolver(repo, nil)

	first, err := r.Resolve(context.Background(), 1, "https://example.com/kimchi-stew", testRecipeData(), nil)
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	second, err := r.Resolve(context.Background(), 1, " HTTPS://EXAMPLE.COM/kimchi-stew/ ", testRecipeData(), nil)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("second Resolve() ID = %d, want %d", second.ID, first.ID)
	}
	if repo.Count() != 1 {
		t.Errorf("stored %d recipes, want 1", repo.Count())
	}

	// A different user gets their own record.
	other, err := r.Resolve(context.Background(), 2, "https://example.com/kimchi-stew", testRecipeData(), nil)
	if err != nil {
		t.Fatalf("Resolve() for other user error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("recipes must not be shared across users")
	}
}

func TestResultResolver_AttachesConversationOnce(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	r := NewResultResolver(repo, nil)

	if _, err := r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), nil); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	convo := uint(10)
	stored, err := r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), &convo)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stored.ConversationID == nil || *stored.ConversationID != 10 {
		t.Fatalf("ConversationID = %v, want 10", stored.ConversationID)
	}

	later := uint(11)
	stored, err = r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), &later)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if *stored.ConversationID != 10 {
		t.Errorf("ConversationID = %d, want the original 10", *stored.ConversationID)
	}
}

func TestResultResolver_PersistenceErrors(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	repo.FindBySourceURLErr = errors.New("connection refused")
	r := NewResultResolver(repo, nil)

	_, err := r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), nil)
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Resolve() error = %v, want ErrPersistence", err)
	}

	repo.FindBySourceURLErr = nil
	repo.CreateRecipeErr = errors.New("disk full")
	_, err = r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), nil)
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Resolve() error = %v, want ErrPersistence", err)
	}
}

func TestResultResolver_MirrorsImage(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	var mirroredFrom string
	mirror := &testutil.MockImageMirror{
		MirrorRecipeImageFunc: func(ctx context.Context, recipeID uint, imageURL string) (string, error) {
			mirroredFrom = imageURL
			return "https://bucket.s3.amazonaws.com/recipes/1/images/recipe_image_1.jpg", nil
		},
	}
	r := NewResultResolver(repo, mirror)

	stored, err := r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if mirroredFrom != "https://images.example.com/stew.jpg" {
		t.Errorf("mirrored from %q", mirroredFrom)
	}
	if stored.ImageURL != "https://bucket.s3.amazonaws.com/recipes/1/images/recipe_image_1.jpg" {
		t.Errorf("ImageURL = %q", stored.ImageURL)
	}
}

func TestResultResolver_MirrorFailureIsNotFatal(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	mirror := &testutil.MockImageMirror{
		MirrorRecipeImageFunc: func(ctx context.Context, recipeID uint, imageURL string) (string, error) {
			return "", errors.New("access denied")
		},
	}
	r := NewResultResolver(repo, mirror)

	stored, err := r.Resolve(context.Background(), 1, "https://example.com/stew", testRecipeData(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stored.ImageURL != "https://images.example.com/stew.jpg" {
		t.Errorf("ImageURL = %q, want the source image", stored.ImageURL)
	}
}
