// Package domain contains the immutable import snapshot and its cost line
// items. A snapshot and its rows are never mutated after finalization;
// corrections arrive as new snapshots and supersede older ones only at
// query time.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the snapshot lifecycle. Only complete snapshots are visible to
// queries; a failed run's committed rows stay orphaned behind the status gate.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Snapshot is one immutable unit of import.
//
// The primary key is a storage-assigned sequence, not a snowflake id: the
// resolver's supersession order is the commit order of snapshots, and the
// database sequence provides that total order without trusting wall clocks
// across import workers.
//
// (source_id, run_id) is indexed but deliberately not unique: overwrites and
// retries of failed attempts store additional snapshots under the same run id.
// Run dedup happens in the importer against complete snapshots only, and the
// resolver supersedes older snapshots by id.
type Snapshot struct {
	ID         int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID      *string       `json:"run_id" gorm:"type:text;index:ix_snapshots_source_run,priority:2"`
	ReportDate *time.Time    `json:"report_date" gorm:"type:date"`
	FileName   string        `json:"file_name" gorm:"type:text;not null"`
	SourceID   *snowflake.ID `json:"source_id" gorm:"index:ix_snapshots_source_run,priority:1"`
	Status     Status        `json:"status" gorm:"type:text;not null;default:pending;index:ix_snapshots_status"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Snapshot) TableName() string { return "snapshots" }

// CostLineItem is one billed fact owned by exactly one snapshot.
//
// The tuple uniqueness guards against literal duplicate rows inside a single
// export. It deliberately does not span snapshots: the same logical fact
// recurring across snapshots is the system's correction mechanism.
type CostLineItem struct {
	ID             int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	SnapshotID     int64        `json:"snapshot_id" gorm:"not null;uniqueIndex:ux_cost_line_items_tuple,priority:1"`
	Date           time.Time    `json:"date" gorm:"type:date;not null;index:ix_cost_line_items_date;uniqueIndex:ux_cost_line_items_tuple,priority:2;index:ix_cost_line_items_date_subscription,priority:1"`
	SubscriptionID snowflake.ID `json:"subscription_id" gorm:"not null;uniqueIndex:ux_cost_line_items_tuple,priority:3;index:ix_cost_line_items_date_subscription,priority:2"`
	ResourceID     snowflake.ID `json:"resource_id" gorm:"not null;uniqueIndex:ux_cost_line_items_tuple,priority:4"`
	MeterID        snowflake.ID `json:"meter_id" gorm:"not null;uniqueIndex:ux_cost_line_items_tuple,priority:5"`

	CostInUSD             decimal.Decimal     `json:"cost_in_usd" gorm:"type:numeric(12,4);not null"`
	CostInBillingCurrency decimal.NullDecimal `json:"cost_in_billing_currency" gorm:"type:numeric(12,4)"`
	BillingCurrency       string              `json:"billing_currency" gorm:"type:text"`
	Quantity              decimal.Decimal     `json:"quantity" gorm:"type:numeric(12,4);not null;uniqueIndex:ux_cost_line_items_tuple,priority:6"`
	UnitPrice             decimal.Decimal     `json:"unit_price" gorm:"type:numeric(12,6);not null;uniqueIndex:ux_cost_line_items_tuple,priority:7"`
	ListPrice             decimal.NullDecimal `json:"list_price" gorm:"type:numeric(12,6)"`

	PricingModel  string            `json:"pricing_model" gorm:"type:text"`
	ChargeType    string            `json:"charge_type" gorm:"type:text"`
	PublisherName string            `json:"publisher_name" gorm:"type:text"`
	CostCenter    string            `json:"cost_center" gorm:"type:text"`
	Tags          datatypes.JSONMap `json:"tags" gorm:"type:jsonb"`
}

// TableName sets the database table name.
func (CostLineItem) TableName() string { return "cost_line_items" }
