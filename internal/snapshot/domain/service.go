package domain

import (
	"context"
	"errors"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot_not_found")
	ErrInvalidSourceID  = errors.New("invalid_source_id")
)

// SnapshotDetail is a snapshot plus the number of line items it stores.
type SnapshotDetail struct {
	Snapshot
	LineItems int64 `json:"line_items"`
}

// Service exposes read access to snapshots. Writes happen only through the
// import pipeline.
type Service interface {
	Get(ctx context.Context, id int64) (*SnapshotDetail, error)
	List(ctx context.Context, limit int) ([]Snapshot, error)

	// LatestForSource returns the newest complete snapshot for a source,
	// newest meaning latest created_at with the snapshot id as tiebreak.
	LatestForSource(ctx context.Context, sourceID string) (*Snapshot, error)

	// ReportDates lists the distinct report dates of complete snapshots,
	// formatted as YYYY-MM-DD, most recent first.
	ReportDates(ctx context.Context) ([]string, error)
}
