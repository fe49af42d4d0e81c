package incidents

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
)

// IncidentResponse is the wire projection of an incident. photoUrl and
// photoKey are derived from photos[0] here rather than read back from
// their stored copies.
type IncidentResponse struct {
	ID           string                `json:"id"`
	Type         string                `json:"type"`
	Description  string                `json:"description"`
	Location     *string               `json:"location"`
	LocationText *string               `json:"locationText"`
	Latitude     *float64              `json:"latitude"`
	Longitude    *float64              `json:"longitude"`
	Severity     domain.Severity       `json:"severity"`
	Status       domain.IncidentStatus `json:"status"`
	Date         string                `json:"date"`
	Time         string                `json:"time"`
	Photos       []domain.Photo        `json:"photos"`
	PhotoURL     *string               `json:"photoUrl"`
	PhotoKey     *string               `json:"photoKey"`
	ReportedBy   *string               `json:"reportedBy"`
	CreatedAt    string                `json:"createdAt"`
	UpdatedAt    string                `json:"updatedAt"`
}

type ListResponse struct {
	Data    []IncidentResponse `json:"data"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"perPage"`
}

func newIncidentResponse(inc *domain.Incident) IncidentResponse {
	photos := inc.Photos
	if photos == nil {
		photos = []domain.Photo{}
	}

	var photoURL, photoKey *string
	if len(photos) > 0 {
		url, key := photos[0].URL, photos[0].Key
		photoURL, photoKey = &url, &key
	}

	return IncidentResponse{
		ID:           inc.ID.String(),
		Type:         inc.Type,
		Description:  inc.Description,
		Location:     inc.Location,
		LocationText: inc.LocationText,
		Latitude:     inc.Latitude,
		Longitude:    inc.Longitude,
		Severity:     inc.Severity,
		Status:       inc.Status,
		Date:         inc.Date,
		Time:         inc.Time,
		Photos:       photos,
		PhotoURL:     photoURL,
		PhotoKey:     photoKey,
		ReportedBy:   inc.ReportedBy,
		CreatedAt:    inc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    inc.UpdatedAt.Format(time.RFC3339),
	}
}

func newListResponse(incidents []*domain.Incident, total int64, req domain.ListIncidentsRequest) ListResponse {
	data := make([]IncidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		data = append(data, newIncidentResponse(inc))
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	return ListResponse{Data: data, Total: total, Page: page, PerPage: perPage}
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
	case errors.Is(err, e.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, e.ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid input"})
	default:
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
