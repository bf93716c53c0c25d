package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/safety"
	"github.com/windoze95/saltybytes-resolver/internal/scraper"
)

var (
	// ErrNoCandidates is returned when a search yields no usable candidate.
	ErrNoCandidates = errors.New("no recipe candidates found")
	// ErrPersistence wraps storage failures while saving a resolved recipe.
	ErrPersistence = errors.New("recipe storage unavailable")
	// ErrOffTopic is returned when no cooking intent can be derived.
	ErrOffTopic = errors.New("request is not about a recipe")
	// ErrResolutionTimeout is the last error of a resolution cut short by its
	// deadline or by cancellation.
	ErrResolutionTimeout = errors.New("recipe resolution timed out")
	// ErrSearchUnavailable is returned when every search provider failed, as
	// opposed to answering with no results.
	ErrSearchUnavailable = errors.New("recipe search unavailable")
)

// Stage is the candidate processing step that failed.
type Stage string

// Stage enum values.
const (
	StageAcquisition Stage = "acquisition"
	StageExtraction  Stage = "extraction"
	StageEquipment   Stage = "equipment"
	StageIngredient  Stage = "ingredient"
)

// CandidateError is a non-fatal failure of one candidate.
type CandidateError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every candidate failed.
type ExhaustedError struct {
	LastError     error
	AttemptedURLs []string
}

func (e *ExhaustedError) Error() string {
	if e.LastError == nil {
		return fmt.Sprintf("all %d recipe candidates failed", len(e.AttemptedURLs))
	}
	return fmt.Sprintf("all %d recipe candidates failed, last error: %v", len(e.AttemptedURLs), e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// User-facing messages, one per failure class.
const (
	msgGeneric     = "We couldn't find a recipe that fits your needs. Please try a different dish."
	msgTimedOut    = "Finding a recipe took too long. Please try again."
	msgSlowSites   = "Recipe sites took too long to respond. Please try again."
	msgBlocked     = "The recipe sites we found blocked access. Please try a different dish."
	msgUnreachable = "We couldn't reach the recipe sites. Please check back shortly."
	msgGone        = "The recipes we found are no longer available. Please try a different dish."
	msgSearchDown  = "Recipe search is unavailable right now. Please try again shortly."
)

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// UserFacingMessage describes a terminal resolution error without leaking
// internals. Typed errors decide the message; text is only consulted for
// untyped errors, with any URLs removed first.
func UserFacingMessage(err error) string {
	if err == nil {
		return msgGeneric
	}
	if errors.Is(err, ErrResolutionTimeout) {
		return msgTimedOut
	}
	if errors.Is(err, ErrSearchUnavailable) {
		return msgSearchDown
	}

	var candErr *CandidateError
	if errors.As(err, &candErr) {
		switch candErr.Stage {
		case StageEquipment, StageIngredient:
			return msgGeneric
		}
		if candErr.Err == nil {
			return msgGeneric
		}
		err = candErr.Err
	}

	var statusErr *scraper.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return msgBlocked
		case http.StatusNotFound, http.StatusGone:
			return msgGone
		default:
			return msgGeneric
		}
	}
	var extractErr *ai.ExtractionError
	if errors.As(err, &extractErr) {
		if extractErr.Kind == ai.ExtractionTimeout {
			return msgSlowSites
		}
		return msgGeneric
	}
	var equipErr *safety.EquipmentViolation
	var ingErr *safety.IngredientViolation
	if errors.As(err, &equipErr) || errors.As(err, &ingErr) {
		return msgGeneric
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgSlowSites
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return msgSlowSites
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return msgUnreachable
	}

	return messageFromText(err)
}

func messageFromText(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	text := strings.ToLower(urlPattern.ReplaceAllString(err.Error(), ""))
	switch {
	case strings.Contains(text, "timeout") || strings.Contains(text, "deadline exceeded") || strings.Contains(text, "timed out"):
		return msgSlowSites
	case strings.Contains(text, "forbidden") || strings.Contains(text, "status 403"):
		return msgBlocked
	case strings.Contains(text, "connection refused") || strings.Contains(text, "no such host") ||
		strings.Contains(text, "connection reset") || strings.Contains(text, "network is unreachable"):
		return msgUnreachable
	case strings.Contains(text, "status 404"):
		return msgGone
	default:
		return msgGeneric
	}
}
