package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/safety"
	"github.com/windoze95/saltybytes-resolver/internal/scraper"
	"go.uber.org/zap"
)

// State is a step of the failover state machine.
type State int

// State enum values.
const (
	StateSearching State = iota
	StateTryingCandidate
	StateNextCandidate
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateTryingCandidate:
		return "trying_candidate"
	case StateNextCandidate:
		return "next_candidate"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProgressEvent is emitted on every state transition.
type ProgressEvent struct {
	State   State  `json:"state"`
	Attempt int    `json:"attempt,omitempty"` // 1-based candidate index
	Total   int    `json:"total,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Stage   Stage  `json:"stage,omitempty"` // failed stage on next_candidate
}

// ProgressNotifier receives progress events. Notify must not block.
type ProgressNotifier interface {
	Notify(event ProgressEvent)
}

// ProgressFunc adapts a function to ProgressNotifier.
type ProgressFunc func(event ProgressEvent)

// Notify calls f(event).
func (f ProgressFunc) Notify(event ProgressEvent) {
	f(event)
}

// PageFetcher downloads and reduces a recipe page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*scraper.ScrapeResult, error)
}

// CandidateSearcher finds recipe candidates for a query.
type CandidateSearcher interface {
	Search(ctx context.Context, query string, profile models.SafetyProfile, relaxed bool) ([]models.RecipeCandidate, error)
}

// Outcome is the result of one orchestrator run. State is StateSuccess or
// StateExhausted; AttemptedURLs is recorded for both.
type Outcome struct {
	State         State
	Recipe        *models.RecipeData
	SourceURL     string
	Candidate     *models.RecipeCandidate
	LastError     error
	AttemptedURLs []string
}

// Err returns an *ExhaustedError for an exhausted outcome and nil otherwise.
func (o *Outcome) Err() error {
	if o.State == StateSuccess {
		return nil
	}
	return &ExhaustedError{LastError: o.LastError, AttemptedURLs: o.AttemptedURLs}
}

// Orchestrator tries candidates in rank order until one yields a safe recipe.
type Orchestrator struct {
	Search        CandidateSearcher
	Fetcher       PageFetcher
	Formatter     ai.RecipeFormatter
	Chain         *safety.Chain
	FormatTimeout time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(search CandidateSearcher, fetcher PageFetcher, formatter ai.RecipeFormatter, chain *safety.Chain, formatTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Search:        search,
		Fetcher:       fetcher,
		Formatter:     formatter,
		Chain:         chain,
		FormatTimeout: formatTimeout,
	}
}

// Run searches for candidates and tries them in order. A search that finds
// nothing returns an error wrapping ErrNoCandidates and no Outcome.
// notify may be nil.
func (o *Orchestrator) Run(ctx context.Context, query string, profile models.SafetyProfile, relaxed bool, notify ProgressNotifier) (*Outcome, error) {
	emit(notify, ProgressEvent{State: StateSearching})

	candidates, err := o.Search.Search(ctx, query, profile, relaxed)
	if err != nil {
		return nil, err
	}

	return o.RunCandidates(ctx, candidates, profile, notify), nil
}

// RunCandidates runs the failover loop over a fixed candidate list. At most
// one candidate succeeds; cancellation is observed between candidates.
func (o *Orchestrator) RunCandidates(ctx context.Context, candidates []models.RecipeCandidate, profile models.SafetyProfile, notify ProgressNotifier) *Outcome {
	out := &Outcome{State: StateExhausted}

	for i := range candidates {
		c := candidates[i]
		if ctx.Err() != nil {
			break
		}

		emit(notify, ProgressEvent{State: StateTryingCandidate, Attempt: i + 1, Total: len(candidates), URL: c.URL, Title: c.Title})
		out.AttemptedURLs = append(out.AttemptedURLs, c.URL)

		recipe, err := o.tryCandidate(ctx, c, profile)
		if err == nil {
			out.State = StateSuccess
			out.Recipe = recipe
			out.SourceURL = c.URL
			out.Candidate = &c
			emit(notify, ProgressEvent{State: StateSuccess, Attempt: i + 1, Total: len(candidates), URL: c.URL, Title: recipe.Title})
			return out
		}

		out.LastError = err
		var stage Stage
		var candErr *CandidateError
		if errors.As(err, &candErr) {
			stage = candErr.Stage
		}
		logger.Get().Warn("recipe candidate failed",
			zap.String("url", c.URL),
			zap.String("stage", string(stage)),
			zap.Int("attempt", i+1),
			zap.Bool("salvaged", c.Salvaged),
			zap.Error(err))
		emit(notify, ProgressEvent{State: StateNextCandidate, Attempt: i + 1, Total: len(candidates), URL: c.URL, Stage: stage})
	}

	if err := ctx.Err(); err != nil {
		out.LastError = fmt.Errorf("%w: %v", ErrResolutionTimeout, err)
	}
	emit(notify, ProgressEvent{State: StateExhausted, Total: len(candidates)})
	return out
}

// tryCandidate runs fetch, format, convert and the safety chain for one
// candidate. Every failure is a *CandidateError.
func (o *Orchestrator) tryCandidate(ctx context.Context, c models.RecipeCandidate, profile models.SafetyProfile) (*models.RecipeData, error) {
	page, err := o.Fetcher.Fetch(ctx, c.URL)
	if err != nil {
		return nil, &CandidateError{Stage: StageAcquisition, URL: c.URL, Err: err}
	}

	formatCtx := ctx
	if o.FormatTimeout > 0 {
		var cancel context.CancelFunc
		formatCtx, cancel = context.WithTimeout(ctx, o.FormatTimeout)
		defer cancel()
	}
	result, err := o.Formatter.FormatRecipe(formatCtx, ai.FormatRequest{
		SourceURL:            c.URL,
		Dish:                 c.Title,
		Content:              page.Content,
		Constraints:          profile.DietaryConstraints(),
		UnavailableEquipment: profile.UnavailableEquipment,
	})
	if err != nil {
		return nil, &CandidateError{Stage: StageExtraction, URL: c.URL, Err: ai.ClassifyExtractionError(err)}
	}

	recipe, err := o.Chain.Apply(ctx, toRecipeData(result, page.ImageURL), profile)
	if err != nil {
		stage := StageIngredient
		var equipErr *safety.EquipmentViolation
		if errors.As(err, &equipErr) {
			stage = StageEquipment
		}
		return nil, &CandidateError{Stage: stage, URL: c.URL, Err: err}
	}

	return recipe, nil
}

// toRecipeData converts formatter output, keeping any substitutions the
// formatter already applied.
func toRecipeData(r *ai.RecipeResult, imageURL string) *models.RecipeData {
	recipe := &models.RecipeData{
		Title:        r.Title,
		Description:  r.Description,
		Portions:     r.Portions,
		Ingredients:  pq.StringArray(append([]string(nil), r.Ingredients...)),
		Instructions: pq.StringArray(append([]string(nil), r.Instructions...)),
		ImageURL:     imageURL,
	}
	for _, s := range r.Substitutions {
		recipe.Substitutions = append(recipe.Substitutions, models.SubstitutionRecord{
			Original:    s.Original,
			Replacement: s.Replacement,
			Reason:      s.Reason,
		})
	}
	return recipe
}

func emit(notify ProgressNotifier, event ProgressEvent) {
	if notify != nil {
		notify.Notify(event)
	}
}
