package domain

import (
	"context"
	"errors"
	"time"
)

type CreateSourceRequest struct {
	Name        string `json:"name"`
	BaseLocator string `json:"base_locator"`
	Active      *bool  `json:"active"`
}

type Service interface {
	Create(ctx context.Context, req CreateSourceRequest) (Source, error)
	Get(ctx context.Context, id string) (Source, error)
	List(ctx context.Context, activeOnly bool) ([]Source, error)
	// MarkAttempt stamps last_attempted_at and the status string.
	MarkAttempt(ctx context.Context, id string, at time.Time, status string) error
	// MarkImported stamps last_imported_at on a successful run.
	MarkImported(ctx context.Context, id string, at time.Time) error
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidBaseLocator = errors.New("invalid_base_locator")
	ErrSourceNotFound     = errors.New("source_not_found")
	ErrInvalidSourceID    = errors.New("invalid_source_id")
)
