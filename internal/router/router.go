package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/windoze95/saltybytes-resolver/internal/ai"
	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/handlers"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/middleware"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"github.com/windoze95/saltybytes-resolver/internal/s3"
	"github.com/windoze95/saltybytes-resolver/internal/safety"
	"github.com/windoze95/saltybytes-resolver/internal/scraper"
	"github.com/windoze95/saltybytes-resolver/internal/service"
	"github.com/windoze95/saltybytes-resolver/internal/ws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterExpiration      = 30 * time.Minute
	wsConnectsPerSecond    = 2
	startupDialTimeout     = 10 * time.Second
)

// SetupRouter sets up the Gin router.
func SetupRouter(cfg *config.Config, database *gorm.DB) *gin.Engine {
	// Create default Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	corsConfig.AllowOrigins = []string{
		"https://api.saltybytes.ai",
		"https://www.api.saltybytes.ai",
		"https://saltybytes.ai",
		"https://www.saltybytes.ai",
	}
	r.Use(cors.New(corsConfig))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Ping route for testing
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Repositories
	userRepo := repository.NewUserRepository(database)
	conversationRepo := repository.NewConversationRepository(database)
	recipeRepo := repository.NewRecipeRepository(database)

	// Progress streaming
	hub := ws.NewHub()
	go hub.Run()

	// Recipe resolution pipeline
	resolveService := newResolveService(cfg, userRepo, conversationRepo, recipeRepo)
	resolveHandler := handlers.NewResolveHandler(resolveService, hub, cfg.EnvVars.ResolveTimeout)

	recipeService := service.NewRecipeService(recipeRepo)
	recipeHandler := handlers.NewRecipeHandler(recipeService)

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.VerifyTokenMiddleware(cfg))

		// Resolve a recipe for the dish discussed in a conversation
		apiProtected.POST("/conversations/:conversation_id/recipe",
			middleware.RateLimitByUser(cfg.EnvVars.ResolveRatePerMinute, limiterCleanupInterval, limiterExpiration),
			resolveHandler.ResolveRecipe)

		// Get a single resolved recipe by it's ID
		apiProtected.GET("/recipes/:recipe_id", recipeHandler.GetRecipe)
	}

	// WebSocket routes (authenticated via query param token)
	progressHandler := ws.NewProgressHandler(hub, cfg.EnvVars.JwtSecretKey, conversationRepo)
	r.GET("/v1/ws/conversations/:conversation_id/progress",
		middleware.RateLimitByIP(wsConnectsPerSecond, limiterCleanupInterval, limiterExpiration),
		progressHandler.HandleProgress)

	return r
}

// newResolveService wires search, acquisition, formatting, the safety chain
// and persistence into a ResolveService.
func newResolveService(cfg *config.Config, users repository.UserRepo, conversations repository.ConversationRepo, recipes repository.RecipeRepo) *service.ResolveService {
	log := logger.Get()

	// AI provider setup
	lightProvider := ai.NewAnthropicLightProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	var formatter ai.RecipeFormatter
	switch cfg.EnvVars.FormatterProvider {
	case config.ProviderOpenAI:
		formatter = ai.NewOpenAIFormatter(cfg.EnvVars.OpenAIAPIKey, cfg.Prompts)
	default:
		formatter = ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	}

	// Content acquisition, with an optional scrape cache
	var fetcherOpts []scraper.Option
	if cfg.EnvVars.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), startupDialTimeout)
		cache, err := scraper.NewRedisCache(ctx, cfg.EnvVars.RedisURL, scraper.DefaultCacheTTL)
		cancel()
		if err != nil {
			log.Warn("scrape cache disabled", zap.Error(err))
		} else {
			fetcherOpts = append(fetcherOpts, scraper.WithCache(cache))
		}
	}
	fetcher := scraper.NewFetcher(cfg.EnvVars.FetchTimeout, cfg.EnvVars.FetchRetries, fetcherOpts...)

	// Image mirroring is best effort
	var images service.ImageMirror
	ctx, cancel := context.WithTimeout(context.Background(), startupDialTimeout)
	mirror, err := s3.NewImageMirror(ctx, cfg)
	cancel()
	if err != nil {
		log.Warn("recipe image mirroring disabled", zap.Error(err))
	} else {
		images = mirror
	}

	detector := safety.NewDetector()
	chain := safety.NewChain(detector,
		service.NewAISubstituter(lightProvider),
		safety.NewRuleSubstituter(detector),
	)

	searchProvider := ai.NewWebSearchProvider(cfg.EnvVars.GoogleSearchKey, cfg.EnvVars.GoogleSearchCX, cfg.EnvVars.BraveSearchKey)
	search := service.NewCandidateSearch(cfg, searchProvider, detector)
	orchestrator := service.NewOrchestrator(search, fetcher, formatter, chain, cfg.EnvVars.FormatTimeout)

	return service.NewResolveService(cfg, users, conversations, lightProvider, orchestrator,
		service.NewResultResolver(recipes, images))
}
