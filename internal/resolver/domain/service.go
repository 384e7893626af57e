// Package domain defines snapshot resolution: choosing, at query time, which
// snapshots are authoritative for a scope, over an append-only history of
// overlapping imports.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
)

// MissingSource reports an active source with no complete snapshot. It is
// information, not an error.
type MissingSource struct {
	SourceID snowflake.ID `json:"source_id"`
	Name     string       `json:"name"`
	Reason   string       `json:"reason"`
}

// Resolution is the latest-mode read scope: one snapshot per active source.
type Resolution struct {
	Snapshots []snapdomain.Snapshot `json:"snapshots"`
	Missing   []MissingSource       `json:"missing_sources,omitempty"`
}

// Selection pins one subscription on one date to one snapshot. Line items
// for that subscription and date in any other snapshot are out of scope.
type Selection struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	SnapshotID     int64        `json:"snapshot_id"`
}

type Service interface {
	// ResolveLatest picks, per active source, the most recently created
	// complete snapshot, newest created_at first and highest id on ties.
	ResolveLatest(ctx context.Context) (Resolution, error)

	// ResolveForDate works at (subscription, date) granularity: for each
	// subscription with complete-snapshot line items on the date, the
	// snapshot with the greatest id wins. Corrections for old dates arriving
	// in late snapshots supersede without suppressing other subscriptions'
	// older data.
	ResolveForDate(ctx context.Context, date time.Time) ([]Selection, error)

	// Scope returns a line-item query scope for the aggregation layer:
	// latest-mode when date is nil, per-subscription selections otherwise.
	Scope(ctx context.Context, date *time.Time) (func(*gorm.DB) *gorm.DB, error)
}
