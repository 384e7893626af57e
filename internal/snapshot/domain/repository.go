package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateSnapshot(ctx context.Context, db *gorm.DB, s *Snapshot) error
	SetStatus(ctx context.Context, db *gorm.DB, id int64, status Status) error
	FindSnapshot(ctx context.Context, db *gorm.DB, id int64) (*Snapshot, error)
	FindByRunID(ctx context.Context, db *gorm.DB, sourceID *snowflake.ID, runID string, status Status) (*Snapshot, error)
	ListSnapshots(ctx context.Context, db *gorm.DB, limit int) ([]Snapshot, error)
	LatestCompleteForSource(ctx context.Context, db *gorm.DB, sourceID snowflake.ID) (*Snapshot, error)

	InsertLineItem(ctx context.Context, db *gorm.DB, item *CostLineItem) error
	CountLineItems(ctx context.Context, db *gorm.DB, snapshotID int64) (int64, error)
	ReportDates(ctx context.Context, db *gorm.DB) ([]time.Time, error)
}
