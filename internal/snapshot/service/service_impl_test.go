package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/snapshot/domain"
	"github.com/cielolabs/costwatch/internal/snapshot/repository"
)

func newFixture(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Snapshot{}, &domain.CostLineItem{}))

	svc := New(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
	return db, svc
}

func addSnapshot(t *testing.T, db *gorm.DB, sourceID *snowflake.ID, status domain.Status, reportDate *time.Time, createdAt time.Time) *domain.Snapshot {
	t.Helper()
	runID := uuid.NewString()
	snap := &domain.Snapshot{
		RunID:      &runID,
		ReportDate: reportDate,
		FileName:   "export.csv",
		SourceID:   sourceID,
		Status:     status,
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(snap).Error)
	return snap
}

func TestGetNotFound(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestGetReportsLineItemCount(t *testing.T) {
	db, svc := newFixture(t)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	snap := addSnapshot(t, db, nil, domain.StatusComplete, nil, base)
	for i := 0; i < 3; i++ {
		item := &domain.CostLineItem{
			SnapshotID:     snap.ID,
			Date:           base,
			SubscriptionID: node.Generate(),
			ResourceID:     node.Generate(),
			MeterID:        node.Generate(),
			CostInUSD:      decimal.NewFromInt(1),
			Quantity:       decimal.NewFromInt(1),
			UnitPrice:      decimal.NewFromInt(1),
		}
		require.NoError(t, db.Create(item).Error)
	}

	detail, err := svc.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, detail.ID)
	assert.EqualValues(t, 3, detail.LineItems)
}

func TestListNewestFirst(t *testing.T) {
	db, svc := newFixture(t)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	first := addSnapshot(t, db, nil, domain.StatusComplete, nil, base)
	second := addSnapshot(t, db, nil, domain.StatusFailed, nil, base.Add(time.Hour))

	snaps, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, second.ID, snaps[0].ID)
	assert.Equal(t, first.ID, snaps[1].ID)

	limited, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestLatestForSourceSkipsUnfinished(t *testing.T) {
	db, svc := newFixture(t)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	sourceID := node.Generate()

	complete := addSnapshot(t, db, &sourceID, domain.StatusComplete, nil, base)
	addSnapshot(t, db, &sourceID, domain.StatusPending, nil, base.Add(time.Hour))
	addSnapshot(t, db, &sourceID, domain.StatusFailed, nil, base.Add(2*time.Hour))

	snap, err := svc.LatestForSource(context.Background(), sourceID.String())
	require.NoError(t, err)
	assert.Equal(t, complete.ID, snap.ID)

	_, err = svc.LatestForSource(context.Background(), "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidSourceID)

	other := node.Generate()
	_, err = svc.LatestForSource(context.Background(), other.String())
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestReportDatesCompleteOnly(t *testing.T) {
	db, svc := newFixture(t)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	feb2 := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	addSnapshot(t, db, nil, domain.StatusComplete, &feb1, base)
	addSnapshot(t, db, nil, domain.StatusComplete, &feb1, base.Add(time.Hour))
	addSnapshot(t, db, nil, domain.StatusComplete, &feb2, base.Add(2*time.Hour))
	addSnapshot(t, db, nil, domain.StatusFailed, &feb2, base.Add(3*time.Hour))

	dates, err := svc.ReportDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-02", "2024-02-01"}, dates)
}
