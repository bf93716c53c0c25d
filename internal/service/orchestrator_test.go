package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/safety"
	"github.com/windoze95/saltybytes-resolver/internal/scraper"
	"github.com/windoze95/saltybytes-resolver/internal/testutil"
)

const (
	url1 = "https://one.example.com/kimchi-stew"
	url2 = "https://two.example.com/kimchi-jjigae"
	url3 = "https://three.example.com/kimchi-soup"
)

func candidates(urls ...string) []models.RecipeCandidate {
	out := make([]models.RecipeCandidate, len(urls))
	for i, u := range urls {
		out[i] = models.RecipeCandidate{Title: "Kimchi Stew", URL: u}
	}
	return out
}

func newTestOrchestrator(search CandidateSearcher, fetcher PageFetcher, formatter ai.RecipeFormatter, subs ...safety.IngredientSubstituter) *Orchestrator {
	return NewOrchestrator(search, fetcher, formatter, safety.NewChain(safety.NewDetector(), subs...), time.Second)
}

// formatterByURL returns a formatter that serves fixed results per source URL.
func formatterByURL(results map[string]*ai.RecipeResult) *testutil.MockRecipeFormatter {
	return &testutil.MockRecipeFormatter{
		FormatRecipeFunc: func(ctx context.Context, req ai.FormatRequest) (*ai.RecipeResult, error) {
			if r, ok := results[req.SourceURL]; ok {
				return r, nil
			}
			return nil, errors.New("unexpected url " + req.SourceURL)
		},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) Notify(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, len(l.events))
	for i, e := range l.events {
		out[i] = e.State
	}
	return out
}

func TestRunCandidates_KimchiStew(t *testing.T) {
	fetcher := testutil.NewMockPageFetcher()
	fetcher.Pages[url1] = testutil.TestPage("kimchi stew with salted shrimp")
	fetcher.Errors[url2] = &scraper.HTTPStatusError{URL: url2, StatusCode: 403}
	fetcher.Pages[url3] = testutil.TestPage("kimchi stew with mushroom broth")

	formatter := formatterByURL(map[string]*ai.RecipeResult{
		url1: testutil.KimchiStewWithShrimp(),
		url3: testutil.KimchiStewVegetarianBroth(),
	})

	// The model claims a substitution but leaves the shrimp in place.
	substituter := &testutil.MockSubstituter{
		SubstituteIngredientsFunc: func(ctx context.Context, req ai.SubstitutionRequest) (*ai.SubstitutionResult, error) {
			return &ai.SubstitutionResult{
				Ingredients:   req.Ingredients,
				Instructions:  req.Instructions,
				Substitutions: []ai.Substitution{{Original: "shrimp", Replacement: "mushroom", Reason: "shellfish"}},
			}, nil
		},
	}

	o := newTestOrchestrator(nil, fetcher, formatter, NewAISubstituter(substituter))
	profile := models.NewSafetyProfile([]string{"shellfish"}, nil, nil, true, 0)
	events := &eventLog{}

	out := o.RunCandidates(context.Background(), candidates(url1, url2, url3), profile, events)

	if out.State != StateSuccess {
		t.Fatalf("State = %v, want success (last error: %v)", out.State, out.LastError)
	}
	if out.SourceURL != url3 {
		t.Errorf("SourceURL = %q, want %q", out.SourceURL, url3)
	}
	if out.Candidate == nil || out.Candidate.URL != url3 {
		t.Errorf("Candidate = %+v, want url3", out.Candidate)
	}
	if got := strings.Join(out.AttemptedURLs, ","); got != strings.Join([]string{url1, url2, url3}, ",") {
		t.Errorf("AttemptedURLs = %v", out.AttemptedURLs)
	}
	if out.Recipe.Title != "Kimchi Stew with Mushroom Broth" {
		t.Errorf("Recipe.Title = %q", out.Recipe.Title)
	}
	if out.Recipe.ImageURL == "" {
		t.Error("Recipe.ImageURL should carry the scraped image")
	}
	if v := safety.NewDetector().Detect(out.Recipe.Ingredients, []string{"shellfish"}); len(v) != 0 {
		t.Errorf("accepted recipe still contains shellfish: %+v", v)
	}
	if out.Err() != nil {
		t.Errorf("Err() = %v, want nil", out.Err())
	}

	want := []State{StateTryingCandidate, StateNextCandidate, StateTryingCandidate, StateNextCandidate, StateTryingCandidate, StateSuccess}
	got := events.states()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
	if events.events[1].Stage != StageIngredient {
		t.Errorf("first failure stage = %q, want ingredient", events.events[1].Stage)
	}
	if events.events[3].Stage != StageAcquisition {
		t.Errorf("second failure stage = %q, want acquisition", events.events[3].Stage)
	}
}

func TestRunCandidates_Exhausted(t *testing.T) {
	fetcher := testutil.NewMockPageFetcher()
	for _, u := range []string{url1, url2, url3} {
		fetcher.Errors[u] = errors.New("dial tcp: connection refused")
	}
	o := newTestOrchestrator(nil, fetcher, &testutil.MockRecipeFormatter{})

	out := o.RunCandidates(context.Background(), candidates(url1, url2, url3), models.SafetyProfile{}, nil)

	if out.State != StateExhausted {
		t.Fatalf("State = %v, want exhausted", out.State)
	}
	if len(out.AttemptedURLs) != 3 {
		t.Errorf("AttemptedURLs = %v, want 3 entries", out.AttemptedURLs)
	}
	if out.LastError == nil {
		t.Fatal("LastError is nil")
	}

	var exhausted *ExhaustedError
	if !errors.As(out.Err(), &exhausted) {
		t.Fatalf("Err() = %T, want *ExhaustedError", out.Err())
	}
	var candErr *CandidateError
	if !errors.As(exhausted, &candErr) || candErr.Stage != StageAcquisition || candErr.URL != url3 {
		t.Errorf("last error = %v, want acquisition failure for url3", exhausted.LastError)
	}
	if msg := UserFacingMessage(exhausted.LastError); !strings.Contains(msg, "couldn't reach") {
		t.Errorf("UserFacingMessage = %q", msg)
	}
}

func TestRunCandidates_AtMostOneSuccess(t *testing.T) {
	fetcher := testutil.NewMockPageFetcher()
	for _, u := range []string{url1, url2, url3} {
		fetcher.Pages[u] = testutil.TestPage("kimchi stew")
	}
	calls := 0
	formatter := &testutil.MockRecipeFormatter{
		FormatRecipeFunc: func(ctx context.Context, req ai.FormatRequest) (*ai.RecipeResult, error) {
			calls++
			return testutil.KimchiStewVegetarianBroth(), nil
		},
	}
	o := newTestOrchestrator(nil, fetcher, formatter)

	out := o.RunCandidates(context.Background(), candidates(url1, url2, url3), models.SafetyProfile{}, nil)

	if out.State != StateSuccess || out.SourceURL != url1 {
		t.Fatalf("outcome = %v %q, want success on url1", out.State, out.SourceURL)
	}
	if len(fetcher.Fetched) != 1 || calls != 1 {
		t.Errorf("fetched %v and formatted %d times, want only the first candidate", fetcher.Fetched, calls)
	}
	if len(out.AttemptedURLs) != 1 {
		t.Errorf("AttemptedURLs = %v", out.AttemptedURLs)
	}
}

func TestRunCandidates_NonPremiumSkipsIngredientGate(t *testing.T) {
	fetcher := testutil.NewMockPageFetcher()
	fetcher.Pages[url1] = testutil.TestPage("kimchi stew with salted shrimp")
	formatter := formatterByURL(map[string]*ai.RecipeResult{url1: testutil.KimchiStewWithShrimp()})
	o := newTestOrchestrator(nil, fetcher, formatter)

	profile := models.NewSafetyProfile([]string{"shellfish"}, nil, nil, false, 0)
	out := o.RunCandidates(context.Background(), candidates(url1), profile, nil)

	if out.State != StateSuccess {
		t.Fatalf("State = %v, want success (last error: %v)", out.State, out.LastError)
	}
	if len(out.Recipe.Substitutions) != 0 {
		t.Errorf("Substitutions = %v, want none for non-premium", out.Recipe.Substitutions)
	}
	found := false
	for _, ing := range out.Recipe.Ingredients {
		if strings.Contains(ing, "saeujeot") {
			found = true
		}
	}
	if !found {
		t.Error("non-premium recipe should keep its original ingredients")
	}
}

func TestRunCandidates_EquipmentRejected(t *testing.T) {
	fetcher := testutil.NewMockPageFetcher()
	fetcher.Pages[url1] = testutil.TestPage("instant pot kimchi stew")
	fetcher.Pages[url2] = testutil.TestPage("stovetop kimchi stew")

	pressure := testutil.KimchiStewVegetarianBroth()
	pressure.Instructions = []string{"Add everything to the Instant Pot and cook on high pressure for 10 minutes."}
	formatter := formatterByURL(map[string]*ai.RecipeResult{
		url1: pressure,
		url2: testutil.KimchiStewVegetarianBroth(),
	})
	o := newTestOrchestrator(nil, fetcher, formatter)
	events := &eventLog{}

	// Equipment applies to free users too.
	profile := models.NewSafetyProfile(nil, nil, []string{"pressure cooker"}, false, 0)
	out := o.RunCandidates(context.Background(), candidates(url1, url2), profile, events)

	if out.State != StateSuccess || out.SourceURL != url2 {
		t.Fatalf("outcome = %v %q, want success on url2", out.State, out.SourceURL)
	}
	if events.events[1].Stage != StageEquipment {
		t.Errorf("failure stage = %q, want equipment", events.events[1].Stage)
	}
}

func TestRunCandidates_FormatTimeout(t *testing.T) {
	fetcher := testutil.NewMockPageFetcher()
	fetcher.Pages[url1] = testutil.TestPage("kimchi stew")
	formatter := &testutil.MockRecipeFormatter{
		FormatRecipeFunc: func(ctx context.Context, req ai.FormatRequest) (*ai.RecipeResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := newTestOrchestrator(nil, fetcher, formatter)
	o.FormatTimeout = 10 * time.Millisecond

	out := o.RunCandidates(context.Background(), candidates(url1), models.SafetyProfile{}, nil)

	if out.State != StateExhausted {
		t.Fatalf("State = %v, want exhausted", out.State)
	}
	var extErr *ai.ExtractionError
	if !errors.As(out.LastError, &extErr) || extErr.Kind != ai.ExtractionTimeout {
		t.Errorf("LastError = %v, want extraction timeout", out.LastError)
	}
}

func TestRunCandidates_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := testutil.NewMockPageFetcher()
	fetcher.FetchFunc = func(ctx context.Context, pageURL string) (*scraper.ScrapeResult, error) {
		cancel()
		return nil, ctx.Err()
	}
	o := newTestOrchestrator(nil, fetcher, &testutil.MockRecipeFormatter{})

	out := o.RunCandidates(ctx, candidates(url1, url2, url3), models.SafetyProfile{}, nil)

	if out.State != StateExhausted {
		t.Fatalf("State = %v, want exhausted", out.State)
	}
	if len(out.AttemptedURLs) != 1 {
		t.Errorf("AttemptedURLs = %v, want only the first candidate", out.AttemptedURLs)
	}
	if !errors.Is(out.LastError, ErrResolutionTimeout) {
		t.Errorf("LastError = %v, want ErrResolutionTimeout", out.LastError)
	}
	if !errors.Is(out.Err(), ErrResolutionTimeout) {
		t.Errorf("Err() = %v, want to wrap ErrResolutionTimeout", out.Err())
	}
}

func TestRun_NoCandidates(t *testing.T) {
	provider := &testutil.MockSearchProvider{
		SearchRecipesFunc: func(ctx context.Context, q ai.SearchQuery) ([]ai.SearchResult, error) {
			return nil, nil
		},
	}
	search := &CandidateSearch{Provider: provider, Detector: safety.NewDetector(), MaxCandidates: 5}
	o := newTestOrchestrator(search, testutil.NewMockPageFetcher(), &testutil.MockRecipeFormatter{})
	events := &eventLog{}

	out, err := o.Run(context.Background(), "kimchi stew", models.SafetyProfile{}, false, events)

	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("Run() error = %v, want ErrNoCandidates", err)
	}
	if out != nil {
		t.Errorf("Run() outcome = %+v, want nil", out)
	}
	if states := events.states(); len(states) != 1 || states[0] != StateSearching {
		t.Errorf("events = %v, want [searching]", states)
	}
}

func TestRun_SearchesThenTriesCandidates(t *testing.T) {
	provider := &testutil.MockSearchProvider{
		SearchRecipesFunc: func(ctx context.Context, q ai.SearchQuery) ([]ai.SearchResult, error) {
			return testutil.SearchResults(url1, url2), nil
		},
	}
	search := &CandidateSearch{Provider: provider, Detector: safety.NewDetector(), MaxCandidates: 5}
	fetcher := testutil.NewMockPageFetcher()
	fetcher.Pages[url2] = testutil.TestPage("kimchi stew")
	formatter := formatterByURL(map[string]*ai.RecipeResult{url2: testutil.KimchiStewVegetarianBroth()})
	o := newTestOrchestrator(search, fetcher, formatter)

	out, err := o.Run(context.Background(), "kimchi stew", models.SafetyProfile{}, false, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.State != StateSuccess || out.SourceURL != url2 {
		t.Errorf("outcome = %v %q, want success on url2", out.State, out.SourceURL)
	}
}

func TestStateString(t *testing.T) {
	text, err := StateNextCandidate.MarshalText()
	if err != nil || string(text) != "next_candidate" {
		t.Errorf("MarshalText() = %q, %v", text, err)
	}
}
