// Package domain contains the shared reference entities referenced by cost
// line items across snapshots. They are created lazily on first sighting and
// only ever have non-identifying fields refreshed afterwards.
package domain

import (
	"github.com/bwmarrin/snowflake"
)

// Customer is the owning tenant of one or more subscriptions.
type Customer struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	TenantID string       `json:"tenant_id" gorm:"type:text;not null;uniqueIndex:ux_customers_tenant_id"`
	Name     string       `json:"name" gorm:"type:text"`
}

func (Customer) TableName() string { return "customers" }

// Subscription belongs to exactly one customer. Its display name follows the
// most recent import (last write wins).
type Subscription struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	SubscriptionID string       `json:"subscription_id" gorm:"type:text;not null;uniqueIndex:ux_subscriptions_subscription_id"`
	Name           string       `json:"name" gorm:"type:text"`
	CustomerID     snowflake.ID `json:"customer_id" gorm:"not null;index"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Resource is a billed cloud resource. ResourceID is the full provider path
// and is not length limited. ResourceGroup is stored lowercased so grouping
// queries need no case-insensitive comparison.
type Resource struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ResourceID    string       `json:"resource_id" gorm:"type:text;not null;uniqueIndex:ux_resources_resource_id"`
	Name          string       `json:"name" gorm:"type:text"`
	ResourceName  string       `json:"resource_name" gorm:"type:text"`
	ResourceGroup string       `json:"resource_group" gorm:"type:text"`
	Location      string       `json:"location" gorm:"type:text"`
}

func (Resource) TableName() string { return "resources" }

// Meter is reference pricing metadata, not a cost fact.
type Meter struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	MeterID       string       `json:"meter_id" gorm:"type:text;not null;uniqueIndex:ux_meters_meter_id"`
	Name          string       `json:"name" gorm:"type:text"`
	Category      string       `json:"category" gorm:"type:text"`
	Subcategory   string       `json:"subcategory" gorm:"type:text"`
	ServiceFamily string       `json:"service_family" gorm:"type:text"`
	Unit          string       `json:"unit" gorm:"type:text"`
}

func (Meter) TableName() string { return "meters" }

// Entities bundles the normalized references for one raw row.
type Entities struct {
	Customer     *Customer
	Subscription *Subscription
	Resource     *Resource
	Meter        *Meter
}
