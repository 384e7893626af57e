package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindCustomerByTenantID(ctx context.Context, db *gorm.DB, tenantID string) (*Customer, error)
	InsertCustomer(ctx context.Context, db *gorm.DB, customer *Customer) error

	FindSubscriptionByKey(ctx context.Context, db *gorm.DB, subscriptionID string) (*Subscription, error)
	InsertSubscription(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	UpdateSubscriptionName(ctx context.Context, db *gorm.DB, id snowflake.ID, name string) error

	FindResourceByKey(ctx context.Context, db *gorm.DB, resourceID string) (*Resource, error)
	InsertResource(ctx context.Context, db *gorm.DB, resource *Resource) error
	UpdateResourceFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error

	FindMeterByKey(ctx context.Context, db *gorm.DB, meterID string) (*Meter, error)
	InsertMeter(ctx context.Context, db *gorm.DB, meter *Meter) error
	UpdateMeterServiceFamily(ctx context.Context, db *gorm.DB, id snowflake.ID, serviceFamily string) error
}
