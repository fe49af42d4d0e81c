package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"trailWatch/internal/api"
	"trailWatch/internal/api/handlers/http/incidents"
	"trailWatch/internal/api/handlers/http/users"
	"trailWatch/internal/config"
	"trailWatch/internal/scim"
	"trailWatch/internal/service"
	"trailWatch/internal/storage/postgres"
	"trailWatch/internal/storage/s3"
	"trailWatch/pkg/logger"
)

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	Postgres   *postgres.Postgres
	BlobStore  *s3.Store
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("Initializing Postgres")
	storage, err := postgres.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to init postgres", slog.Any("error", err))
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	logger.Info("Initializing object storage")
	blobStore, err := s3.NewStore(ctx, cfg, logger)
	if err != nil {
		storage.Pool.Close()
		return nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	incidentSvc := service.NewIncidentService(storage.Incidents(), blobStore, logger)
	svc := service.NewService(incidentSvc)

	incidentHandler := incidents.NewHandler(logger, svc.IncidentService)

	// the user directory client is rebuilt per request around the
	// caller's own token; nothing upstream-facing is shared
	userHandler := users.NewHandler(logger, func(token string) users.UserDirectory {
		return scim.NewClient(cfg.Scim, token, logger)
	})

	httpServer := api.NewServer(cfg, logger, incidentHandler, userHandler)
	logger.Info("Initialized server")

	return &Components{
		logger:     logger,
		HttpServer: httpServer,
		Postgres:   storage,
		BlobStore:  blobStore,
	}, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Shutting down components")

	c.Postgres.Pool.Close()

	c.logger.Info("All components stopped",
		slog.Duration("latency", time.Since(start)))
}
