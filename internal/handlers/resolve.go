package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"github.com/windoze95/saltybytes-resolver/internal/service"
	"github.com/windoze95/saltybytes-resolver/internal/util"
	"go.uber.org/zap"
)

// Error codes returned alongside the error message.
const (
	codeOffTopic            = "off_topic"
	codeNoCandidates        = "no_candidates"
	codeSearchUnavailable   = "search_unavailable"
	codeExhausted           = "exhausted"
	codeNotFound            = "not_found"
	codeDatabaseUnavailable = "database_unavailable"
	codeInternal            = "internal_error"
)

// ProgressPublisher hands out progress notifiers per conversation.
type ProgressPublisher interface {
	NotifierFor(conversationID uint) service.ProgressNotifier
}

// ResolveHandler is the handler for recipe resolution requests.
type ResolveHandler struct {
	Service  *service.ResolveService
	Progress ProgressPublisher
	Timeout  time.Duration
}

// NewResolveHandler creates a ResolveHandler. progress may be nil.
func NewResolveHandler(resolveService *service.ResolveService, progress ProgressPublisher, timeout time.Duration) *ResolveHandler {
	return &ResolveHandler{Service: resolveService, Progress: progress, Timeout: timeout}
}

type resolveRequest struct {
	Dish        string `json:"dish"`
	SearchQuery string `json:"search_query"`
}

type intentResponse struct {
	Dish        string `json:"dish"`
	SearchQuery string `json:"search_query"`
}

// ResolveRecipe finds, vets and stores one recipe for a conversation.
func (h *ResolveHandler) ResolveRecipe(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conversationID, err := parseUintParam(c.Param("conversation_id"))
	if err != nil || conversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	// The body is optional
	var body resolveRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	var notify service.ProgressNotifier
	if h.Progress != nil {
		notify = h.Progress.NotifierFor(conversationID)
	}

	result, err := h.Service.Resolve(ctx, service.ResolveRequest{
		UserID:         userID,
		ConversationID: conversationID,
		Dish:           body.Dish,
		SearchQuery:    body.SearchQuery,
	}, notify)
	if err != nil {
		status, resp := resolveErrorResponse(err)
		log := logger.FromGin(c).With(zap.Uint("conversation_id", conversationID), zap.Error(err))
		if status >= http.StatusInternalServerError {
			log.Error("recipe resolution failed")
		} else {
			log.Info("recipe resolution rejected", zap.Int("status", status))
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"recipe": service.ToRecipeResponse(result.Recipe),
		"intent": intentResponse{
			Dish:        result.Intent.Dish,
			SearchQuery: result.Intent.SearchQuery,
		},
		"candidate": result.Candidate,
	})
}

// resolveErrorResponse maps a resolution error to its HTTP status and body.
func resolveErrorResponse(err error) (int, gin.H) {
	var exhausted *service.ExhaustedError
	var nf repository.NotFoundError

	switch {
	case errors.Is(err, service.ErrOffTopic):
		return http.StatusBadRequest, gin.H{
			"error": "I can only look up recipes. Tell me which dish you'd like to cook.",
			"code":  codeOffTopic,
		}
	case errors.As(err, &exhausted):
		return http.StatusUnprocessableEntity, gin.H{
			"error":     service.UserFacingMessage(exhausted.LastError),
			"code":      codeExhausted,
			"attempted": len(exhausted.AttemptedURLs),
		}
	case errors.Is(err, service.ErrNoCandidates):
		return http.StatusNotFound, gin.H{
			"error": "I couldn't find any recipes for that dish. Try describing it differently.",
			"code":  codeNoCandidates,
		}
	case errors.Is(err, service.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, gin.H{
			"error": service.UserFacingMessage(err),
			"code":  codeSearchUnavailable,
		}
	case errors.As(err, &nf):
		return http.StatusNotFound, gin.H{"error": nf.Error(), "code": codeNotFound}
	case errors.Is(err, service.ErrPersistence):
		return http.StatusServiceUnavailable, gin.H{
			"error": "Recipes are temporarily unavailable. Please try again shortly.",
			"code":  codeDatabaseUnavailable,
		}
	default:
		return http.StatusInternalServerError, gin.H{"error": "failed to resolve recipe", "code": codeInternal}
	}
}
