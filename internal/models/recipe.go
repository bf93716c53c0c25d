package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RecipeData is the structured recipe produced by the resolution pipeline.
// Once accepted by the safety chain it is treated as immutable.
type RecipeData struct {
	Title         string           `json:"title" gorm:"column:title"`
	Description   string           `json:"description,omitempty" gorm:"column:description"`
	Portions      int              `json:"portions" gorm:"column:portions"`
	Ingredients   pq.StringArray   `json:"ingredients" gorm:"type:text[];column:ingredients"`
	Instructions  pq.StringArray   `json:"instructions" gorm:"type:text[];column:instructions"`
	ImageURL      string           `json:"image_url,omitempty" gorm:"column:image_url"`
	Substitutions SubstitutionList `json:"substitutions,omitempty" gorm:"type:jsonb;column:substitutions"`
}

// Clone returns a deep copy so that gates can modify a candidate recipe
// without touching the caller's value.
func (r *RecipeData) Clone() *RecipeData {
	if r == nil {
		return nil
	}
	out := *r
	out.Ingredients = append(pq.StringArray(nil), r.Ingredients...)
	out.Instructions = append(pq.StringArray(nil), r.Instructions...)
	out.Substitutions = append(SubstitutionList(nil), r.Substitutions...)
	return &out
}

// SubstitutionRecord describes one ingredient replaced by the safety chain.
type SubstitutionRecord struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Reason      string `json:"reason"`
}

// SubstitutionList is a slice of SubstitutionRecord for JSONB storage.
type SubstitutionList []SubstitutionRecord

// Scan is a GORM hook that scans jsonb into SubstitutionList.
func (j *SubstitutionList) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	result := SubstitutionList{}
	err := json.Unmarshal(bytes, &result)
	*j = result

	return err
}

// Value is a GORM hook that returns json value of SubstitutionList.
func (j SubstitutionList) Value() (driver.Value, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(j)
}

// StoredRecipe is the persisted form of a resolved recipe. The pair
// (UserID, SourceURLLower) is the dedup key; it is indexed but not unique.
type StoredRecipe struct {
	gorm.Model
	RecipeData
	UserID           uint   `gorm:"index:idx_stored_recipe_user_source;not null"`
	SourceURL        string `gorm:"not null"`
	SourceURLLower   string `gorm:"index:idx_stored_recipe_user_source;not null"`
	ConversationID   *uint  `gorm:"index"`
	IsSaved          bool   `gorm:"default:false"`
	HasSubstitutions bool   `gorm:"default:false"`
	UserPortionSize  int    `gorm:"default:0"`
}

// NormalizeSourceURL returns the dedup form of a recipe source URL.
func NormalizeSourceURL(sourceURL string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(sourceURL)), "/")
}

// RecipeCandidate is a single search hit considered by the orchestrator.
// Candidates only live for the duration of one resolution request.
type RecipeCandidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Domain  string `json:"-"`
	// Salvaged marks candidates recovered from an unstructured search response.
	Salvaged bool `json:"-"`
}
