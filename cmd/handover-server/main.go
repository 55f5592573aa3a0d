package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/handover/handover/internal/config"
	"github.com/handover/handover/internal/domain/handover"
	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/domain/priority"
	"github.com/handover/handover/internal/platform/db"
	"github.com/handover/handover/internal/platform/middleware"
	"github.com/handover/handover/internal/platform/vault"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "handover-server",
		Short: "Nursing handover de-identification pipeline and vault",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(purgeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotated)
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// newVault wires the configured storage backend. The returned cleanup
// closes whatever the backend opened.
func newVault(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*vault.Vault, func(), error) {
	var (
		storage vault.Storage
		cleanup = func() {}
	)
	switch cfg.VaultBackend {
	case config.VaultBackendSQLite:
		st, err := vault.OpenSQLite(cfg.VaultSQLitePath)
		if err != nil {
			return nil, nil, err
		}
		storage = st
		cleanup = func() { st.Close() }
	case config.VaultBackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		st, err := vault.NewPGStorage(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		storage = st
		cleanup = func() { pool.Close() }
	default:
		storage = vault.NewMemoryStorage()
	}

	v := vault.New(cfg.VaultRoot, cfg.VaultScope, storage, logger,
		vault.WithKeyStore(vault.NewMemoryKeyStore()))
	return v, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the handover API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			v, cleanup, err := newVault(ctx, cfg, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to initialize vault")
			}
			defer cleanup()

			lexicon := normalize.DefaultLexicon()
			svc := handover.NewService(lexicon, cfg.RulesetVersion, priority.DutyType(cfg.DutyType), logger)
			handler := handover.NewHandler(svc, v,
				cfg.LocalOnly, time.Duration(cfg.VaultDefaultTTL)*time.Millisecond)

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true

			e.Use(middleware.Recovery(logger))
			e.Use(middleware.RequestID())
			e.Use(middleware.Logger(logger))

			e.GET("/health", func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]string{
					"status":  "ok",
					"ruleset": cfg.RulesetVersion,
				})
			})

			apiV1 := e.Group("/api/v1")
			handler.RegisterRoutes(apiV1)

			// Graceful shutdown
			go func() {
				addr := ":" + cfg.Port
				logger.Info().Str("addr", addr).Msg("starting server")
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server error")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.Fatal().Err(err).Msg("server shutdown failed")
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired vault records and destroy their keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			v, cleanup, err := newVault(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			count := v.PurgeExpired(ctx)
			logger.Info().Int("purged", count).Msg("expired vault records removed")
			return nil
		},
	}
}
