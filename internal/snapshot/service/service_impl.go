package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/snapshot/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:   p.DB,
		log:  p.Log.Named("snapshot.service"),
		repo: p.Repo,
	}
}

func (s *service) Get(ctx context.Context, id int64) (*domain.SnapshotDetail, error) {
	snap, err := s.repo.FindSnapshot(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSnapshotNotFound
	}

	count, err := s.repo.CountLineItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &domain.SnapshotDetail{Snapshot: *snap, LineItems: count}, nil
}

func (s *service) List(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	return s.repo.ListSnapshots(ctx, s.db, limit)
}

func (s *service) LatestForSource(ctx context.Context, sourceID string) (*domain.Snapshot, error) {
	id, err := snowflake.ParseString(sourceID)
	if err != nil {
		return nil, domain.ErrInvalidSourceID
	}

	snap, err := s.repo.LatestCompleteForSource(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *service) ReportDates(ctx context.Context) ([]string, error) {
	dates, err := s.repo.ReportDates(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	return out, nil
}
