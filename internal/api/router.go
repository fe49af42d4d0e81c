package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"trailWatch/internal/api/handlers/http/incidents"
	"trailWatch/internal/api/handlers/http/system"
	"trailWatch/internal/api/handlers/http/users"
	"trailWatch/internal/config"
	"trailWatch/internal/middleware"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

func NewServer(cfg *config.Config, logger *slog.Logger, incidentHandler *incidents.Handler, userHandler *users.Handler) *Server {
	systemHandler := system.NewHandler(logger)

	r := InitRouter(incidentHandler, userHandler, systemHandler, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(incidentHandler *incidents.Handler, userHandler *users.Handler, systemHandler *system.Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	r.Get("/health", systemHandler.SystemHealth)

	r.Route("/incidents", func(ir chi.Router) {
		ir.Get("/", incidentHandler.IncidentList)
		ir.Get("/stats", incidentHandler.IncidentStats)

		ir.Group(func(wr chi.Router) {
			wr.Use(middleware.Limit(10, 20, 10*time.Minute, logger))
			wr.Post("/", incidentHandler.IncidentCreate)
		})

		ir.Route("/{id}", func(rr chi.Router) {
			rr.Get("/", incidentHandler.IncidentGet)
			rr.Put("/", incidentHandler.IncidentUpdate)
			rr.Delete("/", incidentHandler.IncidentDelete)
		})
	})

	r.Route("/users", func(ur chi.Router) {
		ur.Use(middleware.Limit(10, 20, 10*time.Minute, logger))

		ur.Get("/", userHandler.UserList)
		ur.Post("/", userHandler.UserCreate)

		ur.Route("/{id}", func(rr chi.Router) {
			rr.Get("/", userHandler.UserGet)
			rr.Put("/", userHandler.UserUpdate)
			rr.Delete("/", userHandler.UserDelete)
		})
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
