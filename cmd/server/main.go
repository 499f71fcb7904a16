// A2S Gestion - business backend for prospects, installations and subscriptions
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a2s-dz/gestion/internal/ai"
	"github.com/a2s-dz/gestion/internal/api"
	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/billing"
	"github.com/a2s-dz/gestion/internal/config"
	"github.com/a2s-dz/gestion/internal/database"
	"github.com/a2s-dz/gestion/internal/logging"
	"github.com/a2s-dz/gestion/internal/scheduler"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "a2s-gestion",
	Short:   "A2S Gestion - prospects, installations, subscriptions and payments",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(permissionCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs once configuration is loaded
type app struct {
	cfg *config.Config
	db  *gorm.DB
	svc *services.Services
}

// bootstrap loads the configuration, initializes logging and connects to
// the database. Missing configuration is fatal.
func bootstrap(migrate bool) (*app, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Format:    cfg.Log.Format,
		Level:     cfg.Log.Level,
		Component: "a2s-gestion",
	})

	db, err := database.Connect(cfg.Database.URL, database.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info().Str("dialect", string(database.DialectOf(db))).Msg("Database connected")

	if migrate {
		if err := database.RunMigrations(db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		log.Info().Msg("Migrations complete")
	}

	rules := billing.Rules{
		AlertWindowDays: cfg.Billing.AlertWindowDays,
		Location:        cfg.Billing.Location(),
	}
	return &app{cfg: cfg, db: db, svc: services.New(store.New(db), rules)}, nil
}

func runServer() error {
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	cfg := a.cfg
	gin.SetMode(cfg.Server.Mode)
	api.Version = Version

	st := a.svc.Store
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry)
	permissionService := auth.NewPermissionService(st)

	provider, err := ai.NewProvider(cfg.AI)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		log.Info().Msg("AI provider not configured, insights use the local fallback")
	case err != nil:
		log.Warn().Err(err).Msg("AI provider unavailable, insights use the local fallback")
	default:
		log.Info().Str("provider", provider.Name()).Msg("AI insights enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := api.NewRateLimiter(cfg.AI.RateInterval, cfg.AI.RateBurst)
	go limiter.Run(ctx)
	go scheduler.Run(ctx, a.svc.Subscriptions, cfg.Billing.ReconcileInterval)

	handler := api.NewHandler(a.svc, permissionService, jwtService, ai.NewInsightService(provider))
	router := api.SetupRouter(handler, api.RouterOptions{
		CORS:           cfg.CORS,
		MetricsEnabled: cfg.Metrics.Enabled,
		InsightLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("version", Version).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("Server stopped")
	return nil
}
