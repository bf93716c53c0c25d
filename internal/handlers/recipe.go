package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"github.com/windoze95/saltybytes-resolver/internal/service"
	"github.com/windoze95/saltybytes-resolver/internal/util"
	"go.uber.org/zap"
)

// RecipeHandler is the handler for recipe-related requests.
type RecipeHandler struct {
	Service *service.RecipeService
}

// NewRecipeHandler is the constructor function for initializing a new RecipeHandler.
func NewRecipeHandler(recipeService *service.RecipeService) *RecipeHandler {
	return &RecipeHandler{Service: recipeService}
}

// GetRecipe returns one of the authenticated user's recipes by ID.
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeIDStr := c.Param("recipe_id")
	recipeID, err := parseUintParam(recipeIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	recipeResponse, err := h.Service.GetRecipeByID(c.Request.Context(), recipeID, userID)
	if err != nil {
		var nf repository.NotFoundError
		if errors.As(err, &nf) {
			c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
			return
		}
		logger.FromGin(c).Error("failed to get recipe", zap.String("recipe_id", recipeIDStr), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to load recipe", "code": codeDatabaseUnavailable})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}
