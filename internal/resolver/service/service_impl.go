package service

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/resolver/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Snapshots snapdomain.Repository
	Sources   srcdomain.Service
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	snapshots snapdomain.Repository
	sources   srcdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("resolver.service"),
		snapshots: p.Snapshots,
		sources:   p.Sources,
	}
}

func (s *service) ResolveLatest(ctx context.Context) (domain.Resolution, error) {
	var resolution domain.Resolution

	sources, err := s.sources.List(ctx, true)
	if err != nil {
		return resolution, err
	}

	for _, src := range sources {
		snap, err := s.snapshots.LatestCompleteForSource(ctx, s.db, src.ID)
		if err != nil {
			return resolution, err
		}
		if snap == nil {
			resolution.Missing = append(resolution.Missing, domain.MissingSource{
				SourceID: src.ID,
				Name:     src.Name,
				Reason:   "no complete snapshot",
			})
			continue
		}
		resolution.Snapshots = append(resolution.Snapshots, *snap)
	}
	return resolution, nil
}

func (s *service) ResolveForDate(ctx context.Context, date time.Time) ([]domain.Selection, error) {
	var selections []domain.Selection
	err := s.db.WithContext(ctx).Raw(`
		SELECT li.subscription_id AS subscription_id, MAX(li.snapshot_id) AS snapshot_id
		FROM cost_line_items li
		JOIN snapshots s ON s.id = li.snapshot_id
		WHERE li.date = ? AND s.status = ?
		GROUP BY li.subscription_id`,
		dateOnly(date), snapdomain.StatusComplete,
	).Scan(&selections).Error
	if err != nil {
		return nil, err
	}
	return selections, nil
}

func (s *service) Scope(ctx context.Context, date *time.Time) (func(*gorm.DB) *gorm.DB, error) {
	if date == nil {
		resolution, err := s.ResolveLatest(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(resolution.Snapshots))
		for _, snap := range resolution.Snapshots {
			ids = append(ids, snap.ID)
		}
		return func(q *gorm.DB) *gorm.DB {
			if len(ids) == 0 {
				return q.Where("1 = 0")
			}
			return q.Where("cost_line_items.snapshot_id IN ?", ids)
		}, nil
	}

	selections, err := s.ResolveForDate(ctx, *date)
	if err != nil {
		return nil, err
	}
	pairs := make([][]interface{}, 0, len(selections))
	for _, sel := range selections {
		pairs = append(pairs, []interface{}{sel.SubscriptionID, sel.SnapshotID})
	}
	day := dateOnly(*date)
	return func(q *gorm.DB) *gorm.DB {
		if len(pairs) == 0 {
			return q.Where("1 = 0")
		}
		return q.
			Where("cost_line_items.date = ?", day).
			Where("(cost_line_items.subscription_id, cost_line_items.snapshot_id) IN ?", pairs)
	}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
