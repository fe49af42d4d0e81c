package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
	"trailWatch/pkg/validator"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type UserDirectory interface {
	List(ctx context.Context, req domain.ListUsersRequest) (json.RawMessage, error)
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Create(ctx context.Context, req domain.CreateUserRequest) (json.RawMessage, error)
	Update(ctx context.Context, id string, req domain.UpdateUserRequest) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
}

// DirectoryFactory builds a fresh upstream client around the caller's
// token. Nothing is shared between requests.
type DirectoryFactory func(token string) UserDirectory

type Handler struct {
	logger       *slog.Logger
	newDirectory DirectoryFactory
}

func NewHandler(logger *slog.Logger, factory DirectoryFactory) *Handler {
	return &Handler{logger: logger, newDirectory: factory}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

// extractToken prefers the standard bearer header and falls back to
// X-Auth-Token. Empty means the request never reaches the upstream.
func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Auth-Token")
}

func (h *Handler) directory(w http.ResponseWriter, r *http.Request) (UserDirectory, bool) {
	token := extractToken(r)
	if token == "" {
		h.log(r).Warn("no access token in request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "authentication required",
			"message": "no access token provided",
		})
		return nil, false
	}
	return h.newDirectory(token), true
}

func (h *Handler) UserList(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("UserList", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	dir, ok := h.directory(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := domain.ListUsersRequest{
		StartIndex: q.Get("startIndex"),
		Count:      q.Get("count"),
		Filter:     q.Get("filter"),
	}

	users, err := dir.List(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeRaw(w, http.StatusOK, users)
}

func (h *Handler) UserGet(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("UserGet", slog.String("remote", r.RemoteAddr))

	dir, ok := h.directory(w, r)
	if !ok {
		return
	}

	user, err := dir.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeRaw(w, http.StatusOK, user)
}

func (h *Handler) UserCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("UserCreate", slog.String("remote", r.RemoteAddr))

	dir, ok := h.directory(w, r)
	if !ok {
		return
	}

	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		h.handleError(w, r, err)
		return
	}

	user, err := dir.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("user created upstream", slog.String("userName", req.UserName))
	h.writeRaw(w, http.StatusCreated, user)
}

func (h *Handler) UserUpdate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("UserUpdate", slog.String("remote", r.RemoteAddr))

	dir, ok := h.directory(w, r)
	if !ok {
		return
	}

	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		h.handleError(w, r, err)
		return
	}

	user, err := dir.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeRaw(w, http.StatusOK, user)
}

func (h *Handler) UserDelete(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("UserDelete", slog.String("remote", r.RemoteAddr))

	dir, ok := h.directory(w, r)
	if !ok {
		return
	}

	if err := dir.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	l := h.log(r)

	var verr *e.ValidationError
	if errors.As(err, &verr) {
		l.Warn("validation failed", slog.Any("fields", verr.Fields))
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}

	l.Error("handler error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)

	switch {
	case errors.Is(err, e.ErrAuthRequired):
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, e.ErrUpstream):
		// upstream detail stays in the server log
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "operation failed"})
	default:
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeRaw(w http.ResponseWriter, code int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
