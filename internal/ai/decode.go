package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ExtractionErrorKind classifies a formatter failure.
type ExtractionErrorKind string

// ExtractionErrorKind enum values.
const (
	ExtractionTimeout   ExtractionErrorKind = "timeout"
	ExtractionMalformed ExtractionErrorKind = "malformed"
	ExtractionUpstream  ExtractionErrorKind = "upstream"
)

// ErrMalformedOutput is wrapped by malformed extraction errors.
var ErrMalformedOutput = errors.New("malformed model output")

// ExtractionError is the only error type a RecipeFormatter returns.
type ExtractionError struct {
	Kind ExtractionErrorKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("recipe extraction %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ClassifyExtractionError wraps err into an *ExtractionError. Errors that are
// already classified are returned unchanged.
func ClassifyExtractionError(err error) error {
	if err == nil {
		return nil
	}

	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ExtractionError{Kind: ExtractionTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ExtractionError{Kind: ExtractionTimeout, Err: err}
	}
	if errors.Is(err, ErrMalformedOutput) {
		return &ExtractionError{Kind: ExtractionMalformed, Err: err}
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &ExtractionError{Kind: ExtractionTimeout, Err: err}
	}

	return &ExtractionError{Kind: ExtractionUpstream, Err: err}
}

// recipeToolResult is the JSON structure returned by the format_recipe tool
// call and by the JSON-mode completion.
type recipeToolResult struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Portions      int            `json:"portions"`
	Ingredients   []string       `json:"ingredients"`
	Instructions  []string       `json:"instructions"`
	Substitutions []Substitution `json:"substitutions"`
}

// DecodeRecipe parses raw model output into a RecipeResult. A recipe with no
// title, ingredients or instructions is malformed.
func DecodeRecipe(raw []byte) (*RecipeResult, error) {
	if len(raw) == 0 {
		return nil, &ExtractionError{Kind: ExtractionMalformed, Err: fmt.Errorf("%w: empty output", ErrMalformedOutput)}
	}

	var tr recipeToolResult
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, &ExtractionError{Kind: ExtractionMalformed, Err: fmt.Errorf("%w: %v", ErrMalformedOutput, err)}
	}

	result := &RecipeResult{
		Title:        strings.TrimSpace(tr.Title),
		Description:  strings.TrimSpace(tr.Description),
		Portions:     tr.Portions,
		Ingredients:  compactLines(tr.Ingredients),
		Instructions: compactLines(tr.Instructions),
	}
	if result.Portions < 0 {
		result.Portions = 0
	}
	for _, s := range tr.Substitutions {
		if strings.TrimSpace(s.Original) == "" || strings.TrimSpace(s.Replacement) == "" {
			continue
		}
		result.Substitutions = append(result.Substitutions, s)
	}

	switch {
	case result.Title == "":
		return nil, &ExtractionError{Kind: ExtractionMalformed, Err: fmt.Errorf("%w: missing title", ErrMalformedOutput)}
	case len(result.Ingredients) == 0:
		return nil, &ExtractionError{Kind: ExtractionMalformed, Err: fmt.Errorf("%w: missing ingredients", ErrMalformedOutput)}
	case len(result.Instructions) == 0:
		return nil, &ExtractionError{Kind: ExtractionMalformed, Err: fmt.Errorf("%w: missing instructions", ErrMalformedOutput)}
	}

	return result, nil
}

// substitutionToolResult is the JSON structure returned by the
// substitute_ingredients tool call.
type substitutionToolResult struct {
	Ingredients   []string       `json:"ingredients"`
	Instructions  []string       `json:"instructions"`
	Substitutions []Substitution `json:"substitutions"`
}

func decodeSubstitution(raw []byte) (*SubstitutionResult, error) {
	var tr substitutionToolResult
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	ingredients := compactLines(tr.Ingredients)
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("%w: substitution returned no ingredients", ErrMalformedOutput)
	}
	return &SubstitutionResult{
		Ingredients:   ingredients,
		Instructions:  compactLines(tr.Instructions),
		Substitutions: tr.Substitutions,
	}, nil
}

func decodeIntent(raw []byte) (*Intent, error) {
	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	intent.Dish = strings.TrimSpace(intent.Dish)
	intent.SearchQuery = strings.TrimSpace(intent.SearchQuery)
	if intent.OnTopic && intent.SearchQuery == "" {
		intent.SearchQuery = intent.Dish
	}
	if intent.SearchQuery == "" {
		intent.OnTopic = false
	}
	return &intent, nil
}

func compactLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
