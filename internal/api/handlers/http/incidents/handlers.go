package incidents

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
	"trailWatch/pkg/validator"
)

const (
	maxPhotos       = 5
	maxPhotoSize    = 5 << 20
	maxMultipartMem = 32 << 20
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Incidents interface {
	Create(ctx context.Context, req domain.CreateIncidentRequest, files []domain.Upload) (*domain.Incident, []e.Warning, error)
	List(ctx context.Context, req domain.ListIncidentsRequest) ([]*domain.Incident, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	Update(ctx context.Context, id uuid.UUID, req domain.UpdateIncidentRequest, files []domain.Upload) (*domain.Incident, []e.Warning, error)
	Delete(ctx context.Context, id uuid.UUID) ([]e.Warning, error)
	Stats(ctx context.Context) (*domain.IncidentStats, error)
}

type Handler struct {
	logger    *slog.Logger
	Incidents Incidents
}

func NewHandler(logger *slog.Logger, incidents Incidents) *Handler {
	return &Handler{logger: logger, Incidents: incidents}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) IncidentList(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("IncidentList", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	q := r.URL.Query()
	req := domain.ListIncidentsRequest{
		Severity:  q.Get("severity"),
		Type:      q.Get("type"),
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Page:      parseInt(q.Get("page"), 1),
		PerPage:   parseInt(q.Get("per_page"), 20),
	}

	incidents, total, err := h.Incidents.List(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("incidents listed", slog.Int("count", len(incidents)), slog.Int64("total", total))
	h.writeJSON(w, http.StatusOK, newListResponse(incidents, total, req))
}

func (h *Handler) IncidentStats(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("IncidentStats", slog.String("remote", r.RemoteAddr))

	stats, err := h.Incidents.Stats(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) IncidentCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("IncidentCreate", slog.String("remote", r.RemoteAddr))

	var req domain.CreateIncidentRequest
	files, closeFiles, err := h.parseWriteRequest(r, &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer closeFiles()

	if err := validator.ValidateStruct(req); err != nil {
		h.handleError(w, r, err)
		return
	}

	inc, warnings, err := h.Incidents.Create(r.Context(), req, files)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.logWarnings(l, warnings)

	l.Info("incident created", slog.String("id", inc.ID.String()), slog.Int("photos", len(inc.Photos)))
	h.writeJSON(w, http.StatusCreated, newIncidentResponse(inc))
}

func (h *Handler) IncidentGet(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("IncidentGet", slog.String("remote", r.RemoteAddr))

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	inc, err := h.Incidents.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newIncidentResponse(inc))
}

func (h *Handler) IncidentUpdate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("IncidentUpdate", slog.String("remote", r.RemoteAddr))

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateIncidentRequest
	files, closeFiles, err := h.parseWriteRequest(r, &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer closeFiles()

	if err := validator.ValidateStruct(req); err != nil {
		h.handleError(w, r, err)
		return
	}

	inc, warnings, err := h.Incidents.Update(r.Context(), id, req, files)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.logWarnings(l, warnings)

	l.Info("incident updated", slog.String("id", inc.ID.String()))
	h.writeJSON(w, http.StatusOK, newIncidentResponse(inc))
}

func (h *Handler) IncidentDelete(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("IncidentDelete", slog.String("remote", r.RemoteAddr))

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	warnings, err := h.Incidents.Delete(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.logWarnings(l, warnings)

	l.Info("incident deleted", slog.String("id", id.String()))
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "incident deleted"})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log(r).Warn("invalid id", slog.String("id", idStr), slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// parseWriteRequest decodes a create/update body. Multipart requests carry
// form fields plus up to five photo files; anything else is decoded as
// plain JSON with no attachments.
func (h *Handler) parseWriteRequest(r *http.Request, target any) ([]domain.Upload, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(target); err != nil {
			return nil, noop, e.Wrap("decode json body", e.ErrInvalidInput)
		}
		return nil, noop, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		return nil, noop, e.Wrap("parse multipart form", e.ErrInvalidInput)
	}

	if err := bindForm(r.MultipartForm.Value, target); err != nil {
		return nil, noop, err
	}

	return openPhotos(r.MultipartForm.File["photos"])
}

// bindForm maps flat form fields onto the request struct through its JSON
// tags, so multipart and JSON bodies validate identically.
func bindForm(values map[string][]string, target any) error {
	flat := make(map[string]any, len(values))
	fields := map[string]string{}

	for key, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		switch key {
		case "latitude", "longitude":
			f, err := strconv.ParseFloat(vals[0], 64)
			if err != nil {
				fields[key] = "must be a number"
				continue
			}
			flat[key] = f
		default:
			flat[key] = vals[0]
		}
	}
	if len(fields) > 0 {
		return &e.ValidationError{Fields: fields}
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return e.Wrap("bind form", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return e.Wrap("bind form", e.ErrInvalidInput)
	}
	return nil
}

// openPhotos applies the file gate: at most five files, image types only,
// five megabytes each. Violations fail the whole request with field detail.
func openPhotos(headers []*multipart.FileHeader) ([]domain.Upload, func(), error) {
	noop := func() {}

	if len(headers) > maxPhotos {
		return nil, noop, e.NewValidationError("photos", "at most 5 photos allowed")
	}

	var uploads []domain.Upload
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, fh := range headers {
		if fh.Size > maxPhotoSize {
			closeAll()
			return nil, noop, e.NewValidationError("photos", "each photo must be at most 5MB")
		}
		contentType := fh.Header.Get("Content-Type")
		if !allowedPhotoTypes[contentType] {
			closeAll()
			return nil, noop, e.NewValidationError("photos", "photos must be jpeg, png or gif images")
		}

		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, e.Wrap("open uploaded file", err)
		}
		opened = append(opened, f)
		uploads = append(uploads, domain.Upload{
			Name:        fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Content:     f,
		})
	}

	return uploads, closeAll, nil
}

func (h *Handler) logWarnings(l *slog.Logger, warnings []e.Warning) {
	for _, w := range warnings {
		l.Warn("photo pipeline degraded",
			slog.String("op", w.Op),
			slog.String("key", w.Key),
			slog.String("reason", w.Reason),
		)
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
