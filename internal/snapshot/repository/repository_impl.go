package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/snapshot/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateSnapshot(ctx context.Context, db *gorm.DB, s *domain.Snapshot) error {
	return db.WithContext(ctx).Create(s).Error
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id int64, status domain.Status) error {
	return db.WithContext(ctx).
		Model(&domain.Snapshot{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repo) FindSnapshot(ctx context.Context, db *gorm.DB, id int64) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) FindByRunID(ctx context.Context, db *gorm.DB, sourceID *snowflake.ID, runID string, status domain.Status) (*domain.Snapshot, error) {
	q := db.WithContext(ctx).Where("run_id = ?", runID)
	if sourceID != nil {
		q = q.Where("source_id = ?", *sourceID)
	} else {
		q = q.Where("source_id IS NULL")
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var s domain.Snapshot
	err := q.Order("id DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) ListSnapshots(ctx context.Context, db *gorm.DB, limit int) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot
	q := db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repo) LatestCompleteForSource(ctx context.Context, db *gorm.DB, sourceID snowflake.ID) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := db.WithContext(ctx).
		Where("source_id = ? AND status = ?", sourceID, domain.StatusComplete).
		Order("created_at DESC, id DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) InsertLineItem(ctx context.Context, db *gorm.DB, item *domain.CostLineItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) CountLineItems(ctx context.Context, db *gorm.DB, snapshotID int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.CostLineItem{}).
		Where("snapshot_id = ?", snapshotID).
		Count(&count).Error
	return count, err
}

func (r *repo) ReportDates(ctx context.Context, db *gorm.DB) ([]time.Time, error) {
	var dates []time.Time
	err := db.WithContext(ctx).
		Model(&domain.Snapshot{}).
		Where("status = ? AND report_date IS NOT NULL", domain.StatusComplete).
		Distinct("report_date").
		Order("report_date DESC").
		Pluck("report_date", &dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}
