package postgres

import (
	"context"

	"github.com/google/uuid"

	"trailWatch/internal/domain"
)

type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	List(ctx context.Context, req domain.ListIncidentsRequest) ([]*domain.Incident, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	Update(ctx context.Context, incident *domain.Incident) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*domain.IncidentStats, error)
}

func (p *Postgres) Incidents() IncidentRepository { return p.Incident }
