package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/reference/domain"
	"github.com/cielolabs/costwatch/internal/reference/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Customer{},
		&domain.Subscription{},
		&domain.Resource{},
		&domain.Meter{},
	))
	return db
}

func newNormalizer(t *testing.T) domain.Normalizer {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func rawRow() domain.RawEntity {
	return domain.RawEntity{
		TenantID:         "tenant-1",
		SubscriptionID:   "sub-1",
		SubscriptionName: "Production",
		ResourceID:       "/subscriptions/sub-1/resourceGroups/RG-Prod/providers/Microsoft.Compute/virtualMachines/vm-01",
		ProductName:      "Virtual Machines",
		ResourceGroup:    "RG-Prod",
		Location:         "westeurope",
		MeterID:          "meter-1",
		MeterName:        "D2s v3",
		MeterCategory:    "Virtual Machines",
		ServiceFamily:    "Compute",
		Unit:             "1 Hour",
	}
}

func TestNormalizeCreatesEntitiesOnFirstSight(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)
	memo := domain.NewMemo()

	entities, err := n.Normalize(context.Background(), db, memo, rawRow())
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", entities.Customer.TenantID)
	assert.Equal(t, "sub-1", entities.Subscription.SubscriptionID)
	assert.Equal(t, entities.Customer.ID, entities.Subscription.CustomerID)
	assert.Equal(t, "vm-01", entities.Resource.ResourceName)
	assert.Equal(t, "rg-prod", entities.Resource.ResourceGroup)
	assert.Equal(t, "Compute", entities.Meter.ServiceFamily)

	var count int64
	require.NoError(t, db.Model(&domain.Customer{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNormalizeReusesExistingEntities(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	first, err := n.Normalize(context.Background(), db, domain.NewMemo(), rawRow())
	require.NoError(t, err)

	// Fresh memo, same storage: must hit the same rows, not create new ones.
	second, err := n.Normalize(context.Background(), db, domain.NewMemo(), rawRow())
	require.NoError(t, err)

	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
	assert.Equal(t, first.Resource.ID, second.Resource.ID)
	assert.Equal(t, first.Meter.ID, second.Meter.ID)

	var count int64
	require.NoError(t, db.Model(&domain.Resource{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNormalizeResourceGroupCaseFoldsToOneResource(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	upper := rawRow()
	upper.ResourceGroup = "RG-Prod"
	_, err := n.Normalize(context.Background(), db, domain.NewMemo(), upper)
	require.NoError(t, err)

	lower := rawRow()
	lower.ResourceGroup = "rg-prod"
	entities, err := n.Normalize(context.Background(), db, domain.NewMemo(), lower)
	require.NoError(t, err)

	assert.Equal(t, "rg-prod", entities.Resource.ResourceGroup)

	var count int64
	require.NoError(t, db.Model(&domain.Resource{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNormalizeRefreshesSubscriptionName(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	_, err := n.Normalize(context.Background(), db, domain.NewMemo(), rawRow())
	require.NoError(t, err)

	renamed := rawRow()
	renamed.SubscriptionName = "Production EU"
	entities, err := n.Normalize(context.Background(), db, domain.NewMemo(), renamed)
	require.NoError(t, err)
	assert.Equal(t, "Production EU", entities.Subscription.Name)

	var stored domain.Subscription
	require.NoError(t, db.Where("subscription_id = ?", "sub-1").First(&stored).Error)
	assert.Equal(t, "Production EU", stored.Name)
}

func TestNormalizeRefreshesMeterServiceFamily(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	first := rawRow()
	first.ServiceFamily = ""
	_, err := n.Normalize(context.Background(), db, domain.NewMemo(), first)
	require.NoError(t, err)

	second := rawRow()
	second.ServiceFamily = "Compute"
	entities, err := n.Normalize(context.Background(), db, domain.NewMemo(), second)
	require.NoError(t, err)
	assert.Equal(t, "Compute", entities.Meter.ServiceFamily)
}

func TestNormalizeMissingIdentifiers(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	noSub := rawRow()
	noSub.SubscriptionID = ""
	_, err := n.Normalize(context.Background(), db, domain.NewMemo(), noSub)
	assert.ErrorIs(t, err, domain.ErrMissingSubscriptionID)

	noRes := rawRow()
	noRes.ResourceID = ""
	_, err = n.Normalize(context.Background(), db, domain.NewMemo(), noRes)
	assert.ErrorIs(t, err, domain.ErrMissingResourceID)

	noMeter := rawRow()
	noMeter.MeterID = ""
	_, err = n.Normalize(context.Background(), db, domain.NewMemo(), noMeter)
	assert.ErrorIs(t, err, domain.ErrMissingMeterID)
}

func TestNormalizeBlankTenantMapsToSingleCustomer(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	first := rawRow()
	first.TenantID = ""
	a, err := n.Normalize(context.Background(), db, domain.NewMemo(), first)
	require.NoError(t, err)

	second := rawRow()
	second.TenantID = ""
	second.SubscriptionID = "sub-2"
	b, err := n.Normalize(context.Background(), db, domain.NewMemo(), second)
	require.NoError(t, err)

	assert.Equal(t, a.Customer.ID, b.Customer.ID)
}

func TestNormalizeBackfillsResourceNameOnly(t *testing.T) {
	db := newTestDB(t)
	n := newNormalizer(t)

	// Seed a resource with no resource_name, as older imports left them.
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	seeded := domain.Resource{
		ID:         node.Generate(),
		ResourceID: rawRow().ResourceID,
	}
	require.NoError(t, db.Create(&seeded).Error)

	entities, err := n.Normalize(context.Background(), db, domain.NewMemo(), rawRow())
	require.NoError(t, err)

	assert.Equal(t, seeded.ID, entities.Resource.ID)
	assert.Equal(t, "vm-01", entities.Resource.ResourceName)

	var stored domain.Resource
	require.NoError(t, db.Where("id = ?", seeded.ID).First(&stored).Error)
	assert.Equal(t, "vm-01", stored.ResourceName)
}
