// Package domain defines the import pipeline contract: a row stream feeds
// one import run which commits one immutable snapshot, tolerating bad rows
// and aborting only on stream or storage failure.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RawRow is one export row keyed by header name, values untyped strings.
type RawRow map[string]string

// RowStream yields export rows in order. Next returns io.EOF at the end of
// the stream; any other error is a mid-stream failure and is fatal to the
// run that consumes it. The importer owns the stream and closes it on every
// exit, drained or not; Close must tolerate being called more than once.
type RowStream interface {
	Next() (RawRow, error)
	Close() error
}

// RunStatus is the terminal outcome of one import call.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
	RunFailed    RunStatus = "failed"
	RunDryRun    RunStatus = "dry_run"
)

// RowError records one rejected row. Rejected rows never abort the run.
type RowError struct {
	Ordinal int    `json:"ordinal"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Ordinal, e.Field, e.Reason)
}

// FatalError wraps a stream or storage failure that aborted a run. The
// snapshot it was filling is marked failed and its rows stay invisible.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("import aborted during %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

type ImportRunRequest struct {
	// SourceID is empty for ad-hoc local imports; run id uniqueness is only
	// enforced per source.
	SourceID   string
	RunID      string
	ReportDate *time.Time
	FileName   string
	Rows       RowStream
	DryRun     bool
	Overwrite  bool
}

type ImportResult struct {
	SnapshotID int64      `json:"snapshot_id,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
	Imported   int        `json:"imported"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Errors     []RowError `json:"errors,omitempty"`
	Status     RunStatus  `json:"status"`
	Reason     string     `json:"reason,omitempty"`
}

var (
	ErrNilRowStream    = errors.New("nil_row_stream")
	ErrInvalidSourceID = errors.New("invalid_source_id")
)

// Service runs imports. A run either commits one complete snapshot, skips
// (duplicate run id), dry-runs with zero writes, or fails with a *FatalError
// leaving a failed snapshot behind.
type Service interface {
	ImportRun(ctx context.Context, req ImportRunRequest) (ImportResult, error)
}
