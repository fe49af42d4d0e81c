package e

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAuthRequired    = errors.New("authentication required")
	ErrUpstream        = errors.New("upstream request failed")
	ErrInternal        = errors.New("internal error")
	ErrDeadline        = errors.New("deadline exceeded")
	ErrCanceled        = errors.New("context canceled")
	ErrUniqueViolation = errors.New("unique violation")
)

// ValidationError carries field-level detail for a rejected request.
// Fields maps a field path to the reason it was rejected.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(v.Fields))
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Warning is the non-fatal outcome of a degraded storage operation. The
// request that produced it still succeeds; callers log warnings and move on.
type Warning struct {
	Op     string `json:"op"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

func WarnUpload(name, reason string) Warning {
	return Warning{Op: "upload", Key: name, Reason: reason}
}

func WarnDelete(key, reason string) Warning {
	return Warning{Op: "delete", Key: key, Reason: reason}
}

func WrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrUniqueViolation)
		case "23503", "23514":
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		default:
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrInternal)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrInternal)
}
