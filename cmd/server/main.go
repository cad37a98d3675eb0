package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"task-notifications/internal/auth"
	"task-notifications/internal/config"
	"task-notifications/internal/database"
	"task-notifications/internal/middleware"
	"task-notifications/internal/routes"
)

const limiterIdle = 10 * time.Minute

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "server").Logger()
	if lvl > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the task notifications API and live channel",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config.yaml")
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg.Server.LogLevel)

	auth.Configure(auth.Settings{
		Secret:   cfg.Server.JWTSecret,
		Issuer:   cfg.Server.JWTIssuer,
		Audience: cfg.Server.JWTAudience,
	})

	// Init database
	if err := database.InitDB(cfg.Server.DatabasePath); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go func() {
			ticker := time.NewTicker(limiterIdle)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := limiter.CleanupStale(limiterIdle); n > 0 {
						log.Debug().Int("removed", n).Msg("rate limiter cleanup")
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes.SetupRoutes(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Float64("rate_limit", cfg.Server.RateLimit).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
