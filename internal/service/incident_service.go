package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
)

type IncidentSvc struct {
	repo   IncidentRepository
	store  BlobStore
	logger *slog.Logger
	now    func() time.Time
}

func NewIncidentService(repo IncidentRepository, store BlobStore, logger *slog.Logger) *IncidentSvc {
	return &IncidentSvc{
		repo:   repo,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by tests to pin defaults.
func (s *IncidentSvc) WithClock(now func() time.Time) *IncidentSvc {
	s.now = now
	return s
}

func (s *IncidentSvc) Create(ctx context.Context, req domain.CreateIncidentRequest, files []domain.Upload) (*domain.Incident, []e.Warning, error) {
	now := s.now().UTC()

	inc := &domain.Incident{
		ID:           uuid.New(),
		Type:         req.Type,
		Description:  req.Description,
		Severity:     req.Severity,
		Status:       domain.StatusOpen,
		Location:     req.Location,
		LocationText: req.LocationText,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ReportedBy:   req.ReportedBy,
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04:05"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Date != nil {
		inc.Date = *req.Date
	}
	if req.Time != nil {
		inc.Time = *req.Time
	}

	photos, warnings := s.uploadAll(ctx, files)
	inc.Photos = photos
	inc.SyncPhotoRefs()

	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, warnings, err
	}

	return inc, warnings, nil
}

func (s *IncidentSvc) List(ctx context.Context, req domain.ListIncidentsRequest) ([]*domain.Incident, int64, error) {
	return s.repo.List(ctx, req)
}

func (s *IncidentSvc) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	return s.repo.Get(ctx, id)
}

func (s *IncidentSvc) Update(ctx context.Context, id uuid.UUID, req domain.UpdateIncidentRequest, files []domain.Upload) (*domain.Incident, []e.Warning, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var warnings []e.Warning

	// supplying files replaces the whole photo set: old blobs go first,
	// then the new uploads are attached (no merge)
	if len(files) > 0 {
		warnings = append(warnings, s.deleteAll(ctx, inc.Photos)...)

		photos, uploadWarnings := s.uploadAll(ctx, files)
		warnings = append(warnings, uploadWarnings...)
		inc.Photos = photos
		inc.SyncPhotoRefs()
	}

	if req.Type != nil {
		inc.Type = *req.Type
	}
	if req.Description != nil {
		inc.Description = *req.Description
	}
	if req.Severity != nil {
		inc.Severity = *req.Severity
	}
	if req.Status != nil {
		inc.Status = *req.Status
	}
	if req.Location != nil {
		inc.Location = req.Location
	}
	if req.LocationText != nil {
		inc.LocationText = req.LocationText
	}
	if req.Latitude != nil {
		inc.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		inc.Longitude = req.Longitude
	}
	if req.Date != nil {
		inc.Date = *req.Date
	}
	if req.Time != nil {
		inc.Time = *req.Time
	}
	if req.ReportedBy != nil {
		inc.ReportedBy = req.ReportedBy
	}
	inc.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, inc); err != nil {
		return nil, warnings, err
	}

	return inc, warnings, nil
}

func (s *IncidentSvc) Delete(ctx context.Context, id uuid.UUID) ([]e.Warning, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	warnings := s.deleteAll(ctx, inc.Photos)

	if err := s.repo.Delete(ctx, id); err != nil {
		return warnings, err
	}

	return warnings, nil
}

func (s *IncidentSvc) Stats(ctx context.Context) (*domain.IncidentStats, error) {
	return s.repo.Stats(ctx)
}

// uploadAll pushes each file to the object store under a namespaced key,
// preserving input order. A failed upload yields a warning and is skipped;
// the write as a whole still succeeds.
func (s *IncidentSvc) uploadAll(ctx context.Context, files []domain.Upload) ([]domain.Photo, []e.Warning) {
	var photos []domain.Photo
	var warnings []e.Warning

	for _, f := range files {
		key := fmt.Sprintf("incidents/%s%s", uuid.New().String(), filepath.Ext(f.Name))

		if err := s.store.Upload(ctx, key, f.Content, f.Size, f.ContentType); err != nil {
			s.logger.Error("photo upload failed",
				slog.String("name", f.Name),
				slog.String("key", key),
				slog.Any("error", err),
			)
			warnings = append(warnings, e.WarnUpload(f.Name, err.Error()))
			continue
		}

		photos = append(photos, domain.Photo{
			URL:  s.store.PublicURL(key),
			Key:  key,
			Name: f.Name,
		})
	}

	return photos, warnings
}

// deleteAll removes blobs best-effort: every failure is logged and
// collected as a warning, none blocks the caller.
func (s *IncidentSvc) deleteAll(ctx context.Context, photos []domain.Photo) []e.Warning {
	var warnings []e.Warning

	for _, p := range photos {
		if err := s.store.Delete(ctx, p.Key); err != nil {
			s.logger.Warn("photo delete failed",
				slog.String("key", p.Key),
				slog.Any("error", err),
			)
			warnings = append(warnings, e.WarnDelete(p.Key, err.Error()))
		}
	}

	return warnings
}
