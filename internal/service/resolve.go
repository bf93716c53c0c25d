package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"go.uber.org/zap"
)

const maxIntentLength = 200

// ResolveRequest asks for a recipe for a conversation. Dish and SearchQuery
// override intent extraction when set.
type ResolveRequest struct {
	UserID         uint
	ConversationID uint
	Dish           string
	SearchQuery    string
}

// ResolveResult is a successfully resolved and stored recipe.
type ResolveResult struct {
	Recipe        *models.StoredRecipe
	Intent        ai.Intent
	Candidate     models.RecipeCandidate
	AttemptedURLs []string
	Relaxed       bool
}

// ResolveService resolves a cooking intent into one stored, safe recipe.
type ResolveService struct {
	Cfg           *config.Config
	Users         repository.UserRepo
	Conversations repository.ConversationRepo
	Intents       ai.IntentExtractor
	Orchestrator  *Orchestrator
	Results       *ResultResolver
	Now           func() time.Time
}

// NewResolveService creates a ResolveService.
func NewResolveService(cfg *config.Config, users repository.UserRepo, conversations repository.ConversationRepo, intents ai.IntentExtractor, orchestrator *Orchestrator, results *ResultResolver) *ResolveService {
	return &ResolveService{
		Cfg:           cfg,
		Users:         users,
		Conversations: conversations,
		Intents:       intents,
		Orchestrator:  orchestrator,
		Results:       results,
		Now:           time.Now,
	}
}

// Resolve runs one resolution. Errors reaching the caller are
// repository.NotFoundError, ErrOffTopic, ErrNoCandidates, ErrSearchUnavailable,
// *ExhaustedError or ErrPersistence, possibly wrapped. notify may be nil.
func (s *ResolveService) Resolve(ctx context.Context, req ResolveRequest, notify ProgressNotifier) (*ResolveResult, error) {
	log := logger.With(zap.Uint("user_id", req.UserID), zap.Uint("conversation_id", req.ConversationID))

	user, err := s.Users.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, repoError(err)
	}
	profile := user.SafetyProfile(s.Now())

	convo, err := s.Conversations.GetConversationByID(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, repoError(err)
	}

	intent, err := s.intent(ctx, req, convo)
	if err != nil {
		return nil, err
	}

	query := TuneQuery(intent.SearchQuery, profile.CookingProficiency)
	log.Info("resolving recipe", zap.String("dish", intent.Dish), zap.String("query", query))

	relaxed := false
	outcome, err := s.Orchestrator.Run(ctx, query, profile, false, notify)
	if isNoCandidates(err) && profile.HasDietaryConstraints() {
		log.Info("strict search found nothing, relaxing", zap.Error(err))
		relaxed = true
		outcome, err = s.Orchestrator.Run(ctx, query, profile, true, notify)
	}
	if err != nil {
		return nil, err
	}
	if err := outcome.Err(); err != nil {
		log.Warn("recipe resolution exhausted", zap.Strings("attempted", outcome.AttemptedURLs), zap.Error(err))
		return nil, err
	}

	convoID := req.ConversationID
	stored, err := s.Results.Resolve(ctx, req.UserID, outcome.SourceURL, outcome.Recipe, &convoID)
	if err != nil {
		return nil, err
	}

	return &ResolveResult{
		Recipe:        stored,
		Intent:        *intent,
		Candidate:     *outcome.Candidate,
		AttemptedURLs: outcome.AttemptedURLs,
		Relaxed:       relaxed,
	}, nil
}

// intent uses the explicit request fields or extracts the dish from the
// conversation.
func (s *ResolveService) intent(ctx context.Context, req ResolveRequest, convo *models.Conversation) (*ai.Intent, error) {
	var intent *ai.Intent
	if strings.TrimSpace(req.Dish) != "" || strings.TrimSpace(req.SearchQuery) != "" {
		intent = &ai.Intent{Dish: req.Dish, SearchQuery: req.SearchQuery, OnTopic: true}
	} else {
		messages := make([]ai.Message, 0, len(convo.Messages))
		for _, m := range convo.Messages {
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			messages = append(messages, ai.Message{Role: string(m.Role), Content: m.Content})
		}
		if len(messages) == 0 {
			return nil, ErrOffTopic
		}

		extracted, err := s.Intents.ExtractIntent(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("failed to extract intent: %w", err)
		}
		intent = extracted
	}

	return validateIntent(intent)
}

// validateIntent fills in defaults and rejects off-topic or profane intents.
func validateIntent(intent *ai.Intent) (*ai.Intent, error) {
	out := *intent
	out.Dish = strings.TrimSpace(out.Dish)
	out.SearchQuery = strings.TrimSpace(out.SearchQuery)
	if out.SearchQuery == "" {
		out.SearchQuery = out.Dish
	}
	if out.Dish == "" {
		out.Dish = out.SearchQuery
	}
	if !out.OnTopic || out.SearchQuery == "" {
		return nil, ErrOffTopic
	}
	if len(out.SearchQuery) > maxIntentLength || len(out.Dish) > maxIntentLength {
		return nil, fmt.Errorf("%w: request too long", ErrOffTopic)
	}

	profanityDetector := goaway.NewProfanityDetector().WithSanitizeLeetSpeak(true).WithSanitizeSpecialCharacters(true).WithSanitizeAccents(false)
	if profanityDetector.IsProfane(out.Dish) || profanityDetector.IsProfane(out.SearchQuery) {
		return nil, fmt.Errorf("%w: inappropriate language", ErrOffTopic)
	}

	return &out, nil
}

// repoError keeps not-found errors and maps everything else to
// ErrPersistence.
func repoError(err error) error {
	if isNotFound(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
