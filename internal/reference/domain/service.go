package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// RawEntity carries the raw string fields of one export row that identify or
// describe reference entities. All fields are optional strings; the
// normalizer decides which absences are fatal.
type RawEntity struct {
	TenantID     string
	CustomerName string

	SubscriptionID   string
	SubscriptionName string

	ResourceID    string
	ProductName   string
	ResourceGroup string
	Location      string

	MeterID          string
	MeterName        string
	MeterCategory    string
	MeterSubcategory string
	ServiceFamily    string
	Unit             string
}

// Memo caches normalized entities for the duration of one import run so
// repeated sightings avoid storage round-trips. It is owned by a single
// import loop and is not safe for concurrent use; the storage uniqueness
// constraints remain the source of truth across runs.
type Memo struct {
	Customers     map[string]*Customer
	Subscriptions map[string]*Subscription
	Resources     map[string]*Resource
	Meters        map[string]*Meter
}

func NewMemo() *Memo {
	return &Memo{
		Customers:     make(map[string]*Customer),
		Subscriptions: make(map[string]*Subscription),
		Resources:     make(map[string]*Resource),
		Meters:        make(map[string]*Meter),
	}
}

// Normalizer resolves raw row fields into canonical reference entities,
// creating them on first sight with get-or-create semantics that are safe
// under concurrent imports of different runs.
type Normalizer interface {
	Normalize(ctx context.Context, tx *gorm.DB, memo *Memo, raw RawEntity) (Entities, error)
}

var (
	ErrMissingSubscriptionID = errors.New("missing_subscription_id")
	ErrMissingResourceID     = errors.New("missing_resource_id")
	ErrMissingMeterID        = errors.New("missing_meter_id")
)
