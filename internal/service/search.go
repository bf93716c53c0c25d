package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/safety"
	"go.uber.org/zap"
)

const (
	// maxExclusionTerms keeps provider queries under their length limits.
	maxExclusionTerms = 12
	// maxSearchResults is the most results one provider call returns.
	maxSearchResults = 10
)

// CandidateSearch turns a query and a safety profile into ranked recipe
// candidates.
type CandidateSearch struct {
	Provider      ai.SearchProvider
	Detector      *safety.Detector
	Denylist      []string
	MaxCandidates int
	Timeout       time.Duration
}

// NewCandidateSearch creates a CandidateSearch from the application config.
func NewCandidateSearch(cfg *config.Config, provider ai.SearchProvider, detector *safety.Detector) *CandidateSearch {
	denylist := make([]string, 0, len(cfg.EnvVars.SearchDenylist))
	for _, d := range cfg.EnvVars.SearchDenylist {
		if d = normalizeDomain(d); d != "" {
			denylist = append(denylist, d)
		}
	}
	return &CandidateSearch{
		Provider:      provider,
		Detector:      detector,
		Denylist:      denylist,
		MaxCandidates: cfg.EnvVars.MaxCandidates,
		Timeout:       cfg.EnvVars.SearchTimeout,
	}
}

// TuneQuery adjusts a search query to the user's cooking proficiency.
func TuneQuery(query string, proficiency int) string {
	query = strings.TrimSpace(query)
	switch {
	case proficiency == 0:
		return query
	case proficiency <= 2:
		return query + " easy simple few ingredients"
	case proficiency >= 4:
		return query + " advanced technique"
	default:
		return query
	}
}

// Search returns up to MaxCandidates candidates from distinct domains in rank
// order. A strict search excludes the profile's disallowed ingredients; a
// relaxed one only excludes denylisted domains and unavailable equipment.
// It returns an error wrapping ErrNoCandidates when nothing usable is found,
// and one wrapping ErrSearchUnavailable when the provider itself failed.
func (s *CandidateSearch) Search(ctx context.Context, query string, profile models.SafetyProfile, relaxed bool) ([]models.RecipeCandidate, error) {
	strict := !relaxed && profile.HasDietaryConstraints()
	constraints := profile.DietaryConstraints()

	q := ai.SearchQuery{
		Query:          query,
		ExcludeDomains: s.Denylist,
		Count:          s.resultCount(),
	}
	if strict {
		q.ExcludeTerms = s.Detector.SearchExclusions(constraints, maxExclusionTerms)
	}
	q.ExcludeTerms = append(q.ExcludeTerms, profile.UnavailableEquipment...)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	results, err := s.Provider.SearchRecipes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	var (
		candidates []models.RecipeCandidate
		seen       = make(map[string]bool)
		gate       safety.EquipmentGate
	)
	for _, r := range results {
		if len(candidates) >= s.MaxCandidates {
			break
		}
		domain, ok := candidateDomain(r.URL)
		if !ok || seen[domain] || s.denied(domain) {
			continue
		}
		text := r.Title + "\n" + r.Description
		if gate.Check([]string{text}, profile.UnavailableEquipment) != nil {
			continue
		}
		if strict {
			if term := s.Detector.Mentions(text, constraints); term != "" {
				logger.Get().Debug("dropping candidate", zap.String("url", r.URL), zap.String("term", term))
				continue
			}
		}
		seen[domain] = true
		candidates = append(candidates, models.RecipeCandidate{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Description,
			Domain:   domain,
			Salvaged: r.Salvaged,
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	return candidates, nil
}

func (s *CandidateSearch) resultCount() int {
	n := s.MaxCandidates * 2
	if n > maxSearchResults {
		n = maxSearchResults
	}
	return n
}

func (s *CandidateSearch) denied(domain string) bool {
	for _, d := range s.Denylist {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// candidateDomain validates a result URL and returns its normalized host.
func candidateDomain(rawURL string) (string, bool) {
	if !govalidator.IsURL(rawURL) {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	domain := normalizeDomain(u.Hostname())
	return domain, domain != ""
}

func normalizeDomain(d string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
}

// isNoCandidates reports whether err means the search found nothing.
func isNoCandidates(err error) bool {
	return errors.Is(err, ErrNoCandidates)
}
