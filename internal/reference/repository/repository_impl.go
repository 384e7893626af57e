package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/cielolabs/costwatch/internal/reference/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindCustomerByTenantID(ctx context.Context, db *gorm.DB, tenantID string) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).First(&customer, "tenant_id = ?", tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repo) InsertCustomer(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindSubscriptionByKey(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).First(&subscription, "subscription_id = ?", subscriptionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) UpdateSubscriptionName(ctx context.Context, db *gorm.DB, id snowflake.ID, name string) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Update("name", name).Error
}

func (r *repo) FindResourceByKey(ctx context.Context, db *gorm.DB, resourceID string) (*domain.Resource, error) {
	var resource domain.Resource
	err := db.WithContext(ctx).First(&resource, "resource_id = ?", resourceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &resource, nil
}

func (r *repo) InsertResource(ctx context.Context, db *gorm.DB, resource *domain.Resource) error {
	return db.WithContext(ctx).Create(resource).Error
}

func (r *repo) UpdateResourceFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return db.WithContext(ctx).
		Model(&domain.Resource{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repo) FindMeterByKey(ctx context.Context, db *gorm.DB, meterID string) (*domain.Meter, error) {
	var meter domain.Meter
	err := db.WithContext(ctx).First(&meter, "meter_id = ?", meterID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meter, nil
}

func (r *repo) InsertMeter(ctx context.Context, db *gorm.DB, meter *domain.Meter) error {
	return db.WithContext(ctx).Create(meter).Error
}

func (r *repo) UpdateMeterServiceFamily(ctx context.Context, db *gorm.DB, id snowflake.ID, serviceFamily string) error {
	return db.WithContext(ctx).
		Model(&domain.Meter{}).
		Where("id = ?", id).
		Update("service_family", serviceFamily).Error
}
