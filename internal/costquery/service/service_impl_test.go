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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/cache"
	"github.com/cielolabs/costwatch/internal/clock"
	"github.com/cielolabs/costwatch/internal/config"
	"github.com/cielolabs/costwatch/internal/costquery/domain"
	refdomain "github.com/cielolabs/costwatch/internal/reference/domain"
	resolverservice "github.com/cielolabs/costwatch/internal/resolver/service"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	snaprepo "github.com/cielolabs/costwatch/internal/snapshot/repository"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
	srcrepo "github.com/cielolabs/costwatch/internal/source/repository"
	srcservice "github.com/cielolabs/costwatch/internal/source/service"
)

var testDay = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service

	snapshotID int64
	subA, subB *refdomain.Subscription
}

func newFixture(t *testing.T, c cache.QueryCache) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&srcdomain.Source{},
		&refdomain.Customer{},
		&refdomain.Subscription{},
		&refdomain.Resource{},
		&refdomain.Meter{},
		&snapdomain.Snapshot{},
		&snapdomain.CostLineItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sources := srcservice.New(srcservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(testDay),
		Repo:  srcrepo.Provide(),
	})
	resolver := resolverservice.New(resolverservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		Snapshots: snaprepo.Provide(),
		Sources:   sources,
	})

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Config:   config.Config{Cache: config.CacheConfig{TTLSeconds: 60}},
		Cache:    c,
		Resolver: resolver,
	})

	return &fixture{db: db, node: node, svc: svc}
}

func (f *fixture) subscription(t *testing.T, key, name string) *refdomain.Subscription {
	t.Helper()
	customer := &refdomain.Customer{ID: f.node.Generate(), TenantID: "tenant-" + key}
	require.NoError(t, f.db.Create(customer).Error)
	sub := &refdomain.Subscription{
		ID:             f.node.Generate(),
		SubscriptionID: key,
		Name:           name,
		CustomerID:     customer.ID,
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func (f *fixture) resource(t *testing.T, group, location string) *refdomain.Resource {
	t.Helper()
	res := &refdomain.Resource{
		ID:            f.node.Generate(),
		ResourceID:    "/resources/" + uuid.NewString(),
		ResourceName:  "vm-" + group,
		ResourceGroup: group,
		Location:      location,
	}
	require.NoError(t, f.db.Create(res).Error)
	return res
}

func (f *fixture) meter(t *testing.T, category, family string) *refdomain.Meter {
	t.Helper()
	m := &refdomain.Meter{
		ID:            f.node.Generate(),
		MeterID:       uuid.NewString(),
		Category:      category,
		ServiceFamily: family,
	}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *fixture) snapshot(t *testing.T) int64 {
	t.Helper()
	runID := uuid.NewString()
	snap := &snapdomain.Snapshot{
		RunID:     &runID,
		FileName:  "export.csv",
		Status:    snapdomain.StatusComplete,
		CreatedAt: testDay,
	}
	require.NoError(t, f.db.Create(snap).Error)
	return snap.ID
}

type itemSpec struct {
	sub     *refdomain.Subscription
	res     *refdomain.Resource
	meter   *refdomain.Meter
	cost    string
	billing string
	tags    datatypes.JSONMap
}

func (f *fixture) item(t *testing.T, snapshotID int64, spec itemSpec) {
	t.Helper()
	usd := decimal.RequireFromString(spec.cost)
	item := &snapdomain.CostLineItem{
		SnapshotID:     snapshotID,
		Date:           testDay,
		SubscriptionID: spec.sub.ID,
		ResourceID:     spec.res.ID,
		MeterID:        spec.meter.ID,
		CostInUSD:      usd,
		Quantity:       decimal.NewFromInt(1),
		UnitPrice:      usd,
		Tags:           spec.tags,
	}
	if spec.billing != "" {
		item.CostInBillingCurrency = decimal.NewNullDecimal(decimal.RequireFromString(spec.billing))
	}
	require.NoError(t, f.db.Create(item).Error)
}

// seedTwoSubscriptions loads one complete snapshot with costs 10 + 5 on
// subscription A and 7 on subscription B.
func seedTwoSubscriptions(t *testing.T, f *fixture) {
	f.subA = f.subscription(t, "sub-a", "Subscription A")
	f.subB = f.subscription(t, "sub-b", "Subscription B")
	rg := f.resource(t, "rg-prod", "westeurope")
	m := f.meter(t, "Virtual Machines", "Compute")

	f.snapshotID = f.snapshot(t)
	f.item(t, f.snapshotID, itemSpec{sub: f.subA, res: rg, meter: m, cost: "10.00", billing: "9.25"})
	f.item(t, f.snapshotID, itemSpec{sub: f.subA, res: f.resource(t, "rg-prod", "westeurope"), meter: m, cost: "5.00", billing: "4.75"})
	f.item(t, f.snapshotID, itemSpec{sub: f.subB, res: f.resource(t, "rg-dev", "northeurope"), meter: m, cost: "7.00", billing: "6.50"})
}

func TestAggregateSumsPerGroup(t *testing.T) {
	f := newFixture(t, cache.NewNop())
	seedTwoSubscriptions(t, f)

	resp, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"subscription_name"},
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-02-01", resp.Date)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "Subscription A", resp.Rows[0].GroupKey["subscription_name"])
	assert.True(t, resp.Rows[0].TotalUSD.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, resp.Rows[0].TotalBillingCurrency.Equal(decimal.RequireFromString("14.00")))
	assert.Equal(t, "Subscription B", resp.Rows[1].GroupKey["subscription_name"])
	assert.True(t, resp.Rows[1].TotalUSD.Equal(decimal.RequireFromString("7.00")))
}

func TestAggregateMultipleDimensions(t *testing.T) {
	f := newFixture(t, cache.NewNop())
	seedTwoSubscriptions(t, f)

	resp, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"subscription_name", "resource_group"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "rg-prod", resp.Rows[0].GroupKey["resource_group"])
	assert.True(t, resp.Rows[0].TotalUSD.Equal(decimal.RequireFromString("15.00")))
	assert.Equal(t, "rg-dev", resp.Rows[1].GroupKey["resource_group"])
}

func TestAggregateRejectsUnknownDimension(t *testing.T) {
	f := newFixture(t, cache.NewNop())

	_, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		GroupBy: []string{"favorite_color"},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownDimension)

	_, err = f.svc.Aggregate(context.Background(), domain.AggregateRequest{})
	assert.ErrorIs(t, err, domain.ErrNoDimensions)
}

func TestAggregateCostRangeFilters(t *testing.T) {
	f := newFixture(t, cache.NewNop())
	seedTwoSubscriptions(t, f)

	min := decimal.RequireFromString("6.00")
	resp, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"subscription_name"},
		Filters: domain.Filters{MinCost: &min},
	})
	require.NoError(t, err)

	// Only the 10.00 and 7.00 line items cost at least 6.00.
	require.Len(t, resp.Rows, 2)
	assert.True(t, resp.Rows[0].TotalUSD.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, resp.Rows[1].TotalUSD.Equal(decimal.RequireFromString("7.00")))
}

func TestAggregateResourceGroupFilterFoldsCase(t *testing.T) {
	f := newFixture(t, cache.NewNop())
	seedTwoSubscriptions(t, f)

	resp, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"subscription_name"},
		Filters: domain.Filters{ResourceGroup: "RG-Prod"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Subscription A", resp.Rows[0].GroupKey["subscription_name"])
	assert.True(t, resp.Rows[0].TotalUSD.Equal(decimal.RequireFromString("15.00")))
}

func TestAggregateTagFilters(t *testing.T) {
	f := newFixture(t, cache.NewNop())
	sub := f.subscription(t, "sub-a", "Subscription A")
	rg := f.resource(t, "rg-prod", "westeurope")
	m := f.meter(t, "Virtual Machines", "Compute")
	snapID := f.snapshot(t)

	f.item(t, snapID, itemSpec{sub: sub, res: rg, meter: m, cost: "3.00",
		tags: datatypes.JSONMap{"env": "prod"}})
	f.item(t, snapID, itemSpec{sub: sub, res: f.resource(t, "rg-prod", "westeurope"), meter: m, cost: "4.00",
		tags: datatypes.JSONMap{"env": "dev"}})
	f.item(t, snapID, itemSpec{sub: sub, res: f.resource(t, "rg-prod", "westeurope"), meter: m, cost: "5.00"})

	byKey, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"subscription_name"},
		Filters: domain.Filters{TagKey: "env"},
	})
	require.NoError(t, err)
	require.Len(t, byKey.Rows, 1)
	assert.True(t, byKey.Rows[0].TotalUSD.Equal(decimal.RequireFromString("7.00")))

	byValue, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"subscription_name"},
		Filters: domain.Filters{TagKey: "env", TagValue: "prod"},
	})
	require.NoError(t, err)
	require.Len(t, byValue.Rows, 1)
	assert.True(t, byValue.Rows[0].TotalUSD.Equal(decimal.RequireFromString("3.00")))
}

func TestAggregateCachedResultMatchesFresh(t *testing.T) {
	f := newFixture(t, cache.NewMemory())
	seedTwoSubscriptions(t, f)

	req := domain.AggregateRequest{Date: &testDay, GroupBy: []string{"subscription_name"}}

	fresh, err := f.svc.Aggregate(context.Background(), req)
	require.NoError(t, err)

	// New rows after caching must not surface for the same request.
	f.item(t, f.snapshotID, itemSpec{sub: f.subB, res: f.resource(t, "rg-dev", "northeurope"),
		meter: f.meter(t, "Storage", "Storage"), cost: "99.00"})

	cached, err := f.svc.Aggregate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, cached.Rows, len(fresh.Rows))
	for i := range fresh.Rows {
		assert.Equal(t, fresh.Rows[i].GroupKey, cached.Rows[i].GroupKey)
		assert.True(t, fresh.Rows[i].TotalUSD.Equal(cached.Rows[i].TotalUSD))
	}

	// A different group-by is a different cache entry and sees the new row.
	other, err := f.svc.Aggregate(context.Background(), domain.AggregateRequest{
		Date:    &testDay,
		GroupBy: []string{"meter_category"},
	})
	require.NoError(t, err)
	assert.Len(t, other.Rows, 2)
}

func TestAvailableDates(t *testing.T) {
	f := newFixture(t, cache.NewNop())

	src, err := srcservice.New(srcservice.Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		GenID: f.node,
		Clock: clock.NewFakeClock(testDay),
		Repo:  srcrepo.Provide(),
	}).Create(context.Background(), srcdomain.CreateSourceRequest{
		Name:        "azure-prod",
		BaseLocator: "/exports/azure-prod",
	})
	require.NoError(t, err)

	runID := uuid.NewString()
	snap := &snapdomain.Snapshot{
		RunID:     &runID,
		FileName:  "export.csv",
		SourceID:  &src.ID,
		Status:    snapdomain.StatusComplete,
		CreatedAt: testDay,
	}
	require.NoError(t, f.db.Create(snap).Error)

	sub := f.subscription(t, "sub-a", "Subscription A")
	rg := f.resource(t, "rg-prod", "westeurope")
	m := f.meter(t, "Virtual Machines", "Compute")
	for _, day := range []time.Time{
		testDay.AddDate(0, 0, 2),
		testDay,
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), // outside the month
	} {
		item := &snapdomain.CostLineItem{
			SnapshotID:     snap.ID,
			Date:           day,
			SubscriptionID: sub.ID,
			ResourceID:     rg.ID,
			MeterID:        m.ID,
			CostInUSD:      decimal.NewFromInt(1),
			Quantity:       decimal.NewFromInt(1),
			UnitPrice:      decimal.NewFromInt(1),
		}
		require.NoError(t, f.db.Create(item).Error)
	}

	dates, err := f.svc.AvailableDates(context.Background(), "2024-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-01", "2024-02-03"}, dates)

	_, err = f.svc.AvailableDates(context.Background(), "February")
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
}
