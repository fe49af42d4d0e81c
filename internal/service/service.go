package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go
type IncidentService interface {
	Create(ctx context.Context, req domain.CreateIncidentRequest, files []domain.Upload) (*domain.Incident, []e.Warning, error)
	List(ctx context.Context, req domain.ListIncidentsRequest) ([]*domain.Incident, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	Update(ctx context.Context, id uuid.UUID, req domain.UpdateIncidentRequest, files []domain.Upload) (*domain.Incident, []e.Warning, error)
	Delete(ctx context.Context, id uuid.UUID) ([]e.Warning, error)
	Stats(ctx context.Context) (*domain.IncidentStats, error)
}

type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	List(ctx context.Context, req domain.ListIncidentsRequest) ([]*domain.Incident, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	Update(ctx context.Context, incident *domain.Incident) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*domain.IncidentStats, error)
}

type BlobStore interface {
	Upload(ctx context.Context, key string, content io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type Service struct {
	IncidentService IncidentService
}

func NewService(incidentService IncidentService) *Service {
	return &Service{IncidentService: incidentService}
}
