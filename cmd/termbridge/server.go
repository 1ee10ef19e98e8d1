package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/termbridge/internal/config"
	"github.com/ehr/termbridge/internal/domain/conceptmap"
	"github.com/ehr/termbridge/internal/domain/history"
	"github.com/ehr/termbridge/internal/domain/identity"
	"github.com/ehr/termbridge/internal/domain/translation"
	"github.com/ehr/termbridge/internal/platform/auth"
	"github.com/ehr/termbridge/internal/platform/db"
	"github.com/ehr/termbridge/internal/platform/fhir"
	"github.com/ehr/termbridge/internal/platform/middleware"
)

const welcomeMessage = "Welcome to the NAMASTE ↔ ICD11 FHIR API"

// openLedger connects the configured history backend. The returned func
// releases its connections.
func openLedger(ctx context.Context, cfg *config.Config, autoMigrate bool) (history.Ledger, db.Probe, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, db.Probe{}, nil, err
		}
		if autoMigrate {
			if _, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(ctx); err != nil {
				pool.Close()
				return nil, db.Probe{}, nil, fmt.Errorf("migrate ledger schema: %w", err)
			}
		}
		return history.NewLedgerPG(pool), db.PoolProbe(pool), pool.Close, nil

	case config.LedgerRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, db.Probe{}, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, db.Probe{}, nil, fmt.Errorf("ping redis: %w", err)
		}
		probe := db.Probe{
			Backend: "redis",
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Details: func() interface{} { return client.PoolStats() },
		}
		return history.NewLedgerRedis(client, cfg.RedisLedgerKey), probe, func() { client.Close() }, nil

	default:
		ledger := history.NewFileLedger(cfg.HistoryFile)
		probe := db.Probe{
			Backend: "file",
			Ping: func(ctx context.Context) error {
				_, err := ledger.ListBy(ctx, "")
				return err
			},
			Details: func() interface{} { return map[string]string{"path": ledger.Path()} },
		}
		return ledger, probe, func() {}, nil
	}
}

// newServer loads the mapping table and user directory, opens the ledger and
// wires every route. The returned func must be called on shutdown.
func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, autoMigrate bool) (*echo.Echo, func(), error) {
	table, err := conceptmap.LoadFile(cfg.MappingFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int("rows", table.Len()).Str("file", cfg.MappingFile).Msg("mapping table loaded")

	users, err := identity.LoadCSV(cfg.UsersFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int("users", users.Len()).Msg("user directory loaded")

	ledger, probe, closeLedger, err := openLedger(ctx, cfg, autoMigrate)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("backend", probe.Backend).Msg("history ledger ready")

	verifier := auth.NewTokenVerifier([]byte(cfg.TokenSecret), cfg.TokenTTL)
	requireToken := auth.RequireToken(verifier)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = fhir.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders("/abha"))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": welcomeMessage})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"mappings": table.Len(),
			"users":    users.Len(),
			"ledger":   probe.Backend,
		})
	})
	e.GET("/health/ledger", db.HealthHandler(probe))

	abha := e.Group("/abha")
	identity.NewHandler(users, verifier).RegisterRoutes(abha, requireToken)
	history.NewHandler(ledger).RegisterRoutes(abha, requireToken)

	svc := translation.NewService(table, verifier, ledger, logger)
	translation.NewHandler(svc).RegisterRoutes(e.Group("/mapping"), e.Group("/fhir"))

	return e, closeLedger, nil
}
