package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
)

const incidentColumns = `id, type, description, location, "locationText", latitude, longitude,
	severity, status, date, time, "reportedBy", photos, "photoUrl", "photoKey", "createdAt", "updatedAt"`

// sortColumns whitelists sortable identifiers. Unknown identifiers fall
// back to the default ordering instead of failing the request.
var sortColumns = map[string]string{
	"id":           "id",
	"type":         "type",
	"description":  "description",
	"location":     "location",
	"locationText": `"locationText"`,
	"latitude":     "latitude",
	"longitude":    "longitude",
	"severity":     "severity",
	"status":       "status",
	"date":         "date",
	"time":         "time",
	"reportedBy":   `"reportedBy"`,
	"createdAt":    `"createdAt"`,
	"updatedAt":    `"updatedAt"`,
}

type IncidentRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewIncidentRepo(pool *pgxpool.Pool, logger *slog.Logger) *IncidentRepo {
	return &IncidentRepo{pool: pool, logger: logger}
}

func (p *IncidentRepo) Create(ctx context.Context, incident *domain.Incident) error {
	const op = "postgres.Incident.Create"

	const query = `
		INSERT INTO incidents (id, type, description, location, "locationText", latitude, longitude,
			severity, status, date, time, "reportedBy", photos, "photoUrl", "photoKey", "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	photos, err := json.Marshal(photosOrEmpty(incident.Photos))
	if err != nil {
		return e.Wrap(op, err)
	}

	_, err = p.pool.Exec(ctx, query,
		incident.ID,
		incident.Type,
		incident.Description,
		incident.Location,
		incident.LocationText,
		incident.Latitude,
		incident.Longitude,
		incident.Severity,
		incident.Status,
		incident.Date,
		incident.Time,
		incident.ReportedBy,
		photos,
		incident.PhotoURL,
		incident.PhotoKey,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}

	return nil
}

func (p *IncidentRepo) List(ctx context.Context, req domain.ListIncidentsRequest) ([]*domain.Incident, int64, error) {
	const op = "postgres.Incident.List"

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage <= 0 || req.PerPage > 100 {
		req.PerPage = 20
	}
	offset := (req.Page - 1) * req.PerPage

	where, args := buildFilters(req)

	var total int64
	countQuery := `SELECT COUNT(*) FROM incidents` + where
	if err := p.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		p.logger.Error("db count failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM incidents%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		incidentColumns, where, orderClause(req), len(args)+1, len(args)+2)
	args = append(args, req.PerPage, offset)

	rows, err := p.pool.Query(ctx, listQuery, args...)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	var incidents []*domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, 0, e.WrapError(ctx, op, err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	return incidents, total, nil
}

func (p *IncidentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "postgres.Incident.Get"

	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE id = $1`, incidentColumns)

	inc, err := scanIncident(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return nil, e.WrapError(ctx, op, err)
	}

	return inc, nil
}

func (p *IncidentRepo) Update(ctx context.Context, incident *domain.Incident) error {
	const op = "postgres.Incident.Update"

	const query = `
		UPDATE incidents
		SET type = $2, description = $3, location = $4, "locationText" = $5,
			latitude = $6, longitude = $7, severity = $8, status = $9,
			date = $10, time = $11, "reportedBy" = $12,
			photos = $13, "photoUrl" = $14, "photoKey" = $15, "updatedAt" = $16
		WHERE id = $1
	`

	photos, err := json.Marshal(photosOrEmpty(incident.Photos))
	if err != nil {
		return e.Wrap(op, err)
	}

	cmd, err := p.pool.Exec(ctx, query,
		incident.ID,
		incident.Type,
		incident.Description,
		incident.Location,
		incident.LocationText,
		incident.Latitude,
		incident.Longitude,
		incident.Severity,
		incident.Status,
		incident.Date,
		incident.Time,
		incident.ReportedBy,
		photos,
		incident.PhotoURL,
		incident.PhotoKey,
		incident.UpdatedAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", incident.ID.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	return nil
}

func (p *IncidentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.Incident.Delete"

	const query = `DELETE FROM incidents WHERE id = $1`

	cmd, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	return nil
}

func (p *IncidentRepo) Stats(ctx context.Context) (*domain.IncidentStats, error) {
	const op = "postgres.Incident.Stats"

	stats := &domain.IncidentStats{
		BySeverity: map[string]int64{},
		ByType:     map[string]int64{},
	}

	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&stats.Total); err != nil {
		p.logger.Error("db count failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	if err := p.groupCount(ctx, op, `SELECT severity, COUNT(*) FROM incidents GROUP BY severity`, stats.BySeverity); err != nil {
		return nil, err
	}
	if err := p.groupCount(ctx, op, `SELECT type, COUNT(*) FROM incidents GROUP BY type`, stats.ByType); err != nil {
		return nil, err
	}

	return stats, nil
}

func (p *IncidentRepo) groupCount(ctx context.Context, op, query string, dst map[string]int64) error {
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return e.WrapError(ctx, op, err)
		}
		dst[key] = count
	}
	return e.WrapError(ctx, op, rows.Err())
}

func buildFilters(req domain.ListIncidentsRequest) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if req.Severity != "" {
		add("severity = $%d", req.Severity)
	}
	if req.Type != "" {
		add("type = $%d", req.Type)
	}
	if req.Status != "" {
		add("status = $%d", req.Status)
	}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		clauses = append(clauses, fmt.Sprintf(`(description ILIKE $%d OR "locationText" ILIKE $%d)`, len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(req domain.ListIncidentsRequest) string {
	col, ok := sortColumns[req.SortBy]
	if !ok {
		return `"createdAt" DESC`
	}
	dir := "DESC"
	if strings.EqualFold(req.SortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

func photosOrEmpty(photos []domain.Photo) []domain.Photo {
	if photos == nil {
		return []domain.Photo{}
	}
	return photos
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*domain.Incident, error) {
	var inc domain.Incident
	var photos []byte

	if err := row.Scan(
		&inc.ID,
		&inc.Type,
		&inc.Description,
		&inc.Location,
		&inc.LocationText,
		&inc.Latitude,
		&inc.Longitude,
		&inc.Severity,
		&inc.Status,
		&inc.Date,
		&inc.Time,
		&inc.ReportedBy,
		&photos,
		&inc.PhotoURL,
		&inc.PhotoKey,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &inc.Photos); err != nil {
			return nil, err
		}
	}

	return &inc, nil
}
