package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/db"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/repository"
	"github.com/windoze95/manas-api/internal/router"
	"github.com/windoze95/manas-api/internal/scheduler"
	"github.com/windoze95/manas-api/internal/ws"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// init is called before the main function.
func init() {
	// Initialize structured logger (dev mode if GIN_MODE != release)
	isDev := os.Getenv("GIN_MODE") != "release"
	logger.Init(isDev)

	// Configure the runtime
	ConfigureRuntime()
}

// Entry point for the API.
func main() {
	defer logger.Sync()
	log := logger.Get()

	// Load the config
	var cfg *config.Config
	if c, err := config.LoadConfig(); err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	} else {
		cfg = c
	}

	// Check that all ENV variables are set
	if err := cfg.CheckConfigEnvFields(); err != nil {
		log.Fatal("missing required config fields", zap.Error(err))
	}

	// Load prompts from YAML
	prompts, err := config.LoadPrompts("configs/prompts.yaml")
	if err != nil {
		log.Fatal("failed to load prompts", zap.Error(err))
	}
	cfg.Prompts = prompts

	// Connect to the database
	database, err := db.New(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Fatal("failed to get underlying sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	hub := ws.NewHub()
	go hub.Run()

	// Create a new gin router
	gin.SetMode(gin.ReleaseMode)
	app, err := router.SetupRouter(cfg, database, hub)
	if err != nil {
		log.Fatal("failed to set up router", zap.Error(err))
	}
	defer app.Close()

	// Start the reminder sweep
	reminders, err := scheduler.New(cfg.EnvVars.ReminderSchedule, cfg.EnvVars.ReminderWindow,
		repository.NewTaskRepository(database), hub)
	if err != nil {
		log.Fatal("failed to create reminder scheduler", zap.Error(err))
	}
	reminders.Start()
	defer reminders.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.EnvVars.Port,
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run the server
	go func() {
		log.Info("starting server", zap.String("port", cfg.EnvVars.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// ConfigureRuntime sets the number of operating system threads.
func ConfigureRuntime() {
	nuCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(nuCPU)
	logger.Get().Info("runtime configured", zap.Int("cpus", nuCPU))
}
