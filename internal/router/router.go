package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/handlers"
	"github.com/windoze95/manas-api/internal/integrations"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/metrics"
	"github.com/windoze95/manas-api/internal/middleware"
	"github.com/windoze95/manas-api/internal/repository"
	"github.com/windoze95/manas-api/internal/s3"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/ws"
	"gorm.io/gorm"
)

// App holds the router and the long-lived pieces main shuts down.
type App struct {
	Engine    *gin.Engine
	Assistant *service.AssistantService
	Redis     *cache.RedisCache // nil without REDIS_URL
}

// Close waits for background work and releases connections.
func (a *App) Close() {
	a.Assistant.Wait()
	if a.Redis != nil {
		a.Redis.Close()
	}
}

// SetupRouter sets up the Gin router.
func SetupRouter(cfg *config.Config, database *gorm.DB, hub *ws.Hub) (*App, error) {
	log := logger.Get()

	// Create default Gin router
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = []string{cfg.EnvVars.FrontendURL}
	corsConfig.AddAllowHeaders("Authorization", "X-Request-ID")
	corsConfig.AddExposeHeaders("X-Request-ID")
	r.Use(cors.New(corsConfig))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())
	r.Use(metrics.Middleware())

	// Cache and conversation history live in Redis when configured
	app := &App{Engine: r}
	var (
		sharedCache cache.Cache
		history     cache.HistoryStore
	)
	if cfg.EnvVars.RedisUrl != "" {
		rc, err := cache.NewRedisCache(cfg.EnvVars.RedisUrl)
		if err != nil {
			return nil, err
		}
		app.Redis = rc
		sharedCache = rc
		history = cache.NewRedisHistory(rc.Client())
	} else {
		log.Warn("REDIS_URL not set, using in-process cache and history")
		sharedCache = cache.NewMemoryCache()
		history = cache.NewMemoryHistory()
	}

	// Object storage for uploads
	storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := s3.NewStore(storeCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 store: %w", err)
	}

	// AI provider setup
	textProvider := ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	speechProvider := ai.NewWhisperProvider(cfg.EnvVars.OpenAIAPIKey)
	synthesizer := ai.NewSpeechSynthesizer(cfg.EnvVars.ElevenLabsAPIKey, cfg.EnvVars.OpenAIAPIKey)
	searchProvider := ai.NewWebSearchProvider(cfg.EnvVars.GoogleSearchKey, cfg.EnvVars.GoogleSearchCX, cfg.EnvVars.BraveSearchKey)
	embedProvider := ai.NewEmbeddingProvider(cfg.EnvVars.OpenAIAPIKey)

	// Repositories and services
	taskRepo := repository.NewTaskRepository(database)
	profileRepo := repository.NewProfileRepository(database)
	integrationRepo := repository.NewIntegrationRepository(database)

	taskService := service.NewTaskService(taskRepo)
	profileService := service.NewProfileService(profileRepo, integrationRepo, textProvider)
	memoryService := service.NewMemoryService(repository.NewMemoryRepository(database), embedProvider)
	fileService := service.NewFileService(repository.NewAttachmentRepository(database), store)
	integrationService, err := service.NewIntegrationService(cfg, integrationRepo, sharedCache)
	if err != nil {
		return nil, err
	}

	assistantService, err := service.NewAssistantService(service.AssistantDeps{
		Text:        textProvider,
		Speech:      speechProvider,
		Synthesis:   synthesizer,
		Search:      searchProvider,
		Tasks:       taskService,
		Profiles:    profileService,
		Memories:    memoryService,
		Files:       fileService,
		Connectors:  integrationService,
		Weather:     integrations.NewWeatherClient(sharedCache),
		News:        integrations.NewNewsClient(cfg.EnvVars.NewsAPIKey, sharedCache),
		Restaurants: integrations.NewYelpClient(cfg.EnvVars.YelpAPIKey),
		History:     history,
		Cache:       sharedCache,
	})
	if err != nil {
		return nil, err
	}
	app.Assistant = assistantService

	assistantHandler := handlers.NewAssistantHandler(assistantService)
	taskHandler := handlers.NewTaskHandler(taskService)
	profileHandler := handlers.NewProfileHandler(profileService)
	integrationHandler := handlers.NewIntegrationHandler(integrationService)
	fileHandler := handlers.NewFileHandler(fileService)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		"cache": sharedCache,
	})

	// Liveness, health and metrics
	r.GET("/ping", healthHandler.Ping)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", metrics.Handler())

	voiceLimit := middleware.RateLimitByIP(cfg.EnvVars.VoiceRateLimit, time.Minute, 10*time.Minute)

	// Group for API routes that don't require token verification
	apiPublic := r.Group("/v1")
	{
		// List the available synthesis voices
		apiPublic.GET("/profile/voices", profileHandler.ListVoices)
		// OAuth provider redirect target
		apiPublic.GET("/auth/callback", integrationHandler.Callback)
	}

	// Group for routes that serve the default user without a token
	apiOptional := r.Group("/v1")
	{
		apiOptional.Use(middleware.OptionalAuth(cfg))

		// Assistant turns
		apiOptional.POST("/voice/ingest", voiceLimit, assistantHandler.IngestVoice)
		apiOptional.POST("/chat/send", voiceLimit, assistantHandler.SendChat)

		// Get or create the caller's profile
		apiOptional.GET("/profile", middleware.AttachProfileToContext(profileService), profileHandler.GetProfile)
	}

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.RequireAuth(cfg))

		// Task routes
		apiProtected.GET("/tasks", taskHandler.ListTasks)
		apiProtected.GET("/tasks/:task_id", taskHandler.GetTask)
		apiProtected.POST("/tasks", taskHandler.CreateTask)
		apiProtected.PATCH("/tasks/:task_id", taskHandler.UpdateTask)
		apiProtected.DELETE("/tasks/:task_id", taskHandler.DeleteTask)

		// Profile routes
		apiProtected.PUT("/profile", middleware.AttachProfileToContext(profileService), profileHandler.UpdateProfile)
		apiProtected.POST("/profile/extract", profileHandler.ExtractProfile)
		apiProtected.DELETE("/profile/field/:field", profileHandler.ClearField)

		// Attachments for document analysis
		apiProtected.POST("/files/upload", fileHandler.UploadFile)

		// Third-party integrations
		apiProtected.GET("/auth/:provider/connect", integrationHandler.Connect)
		apiProtected.GET("/auth/:provider/status", integrationHandler.Status)
		apiProtected.DELETE("/auth/:provider", integrationHandler.Disconnect)
	}

	// WebSocket routes (authenticated via query param token)
	voiceHandler := ws.NewVoiceHandler(hub, cfg.EnvVars.JwtSecretKey, cfg.EnvVars.FrontendURL, assistantService)
	r.GET("/v1/ws/voice", voiceHandler.HandleVoiceSession)

	return app, nil
}
