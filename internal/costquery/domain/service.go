// Package domain defines the aggregation query layer: grouped sums over the
// resolver's line-item scope.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Filters compose conjunctively. Zero values mean "not filtered".
type Filters struct {
	SubscriptionID   string           `json:"subscription_id,omitempty" form:"subscription_id"`
	SubscriptionName string           `json:"subscription_name,omitempty" form:"subscription_name"`
	ResourceGroup    string           `json:"resource_group,omitempty" form:"resource_group"`
	ResourceName     string           `json:"resource_name,omitempty" form:"resource_name"`
	Location         string           `json:"location,omitempty" form:"location"`
	MeterCategory    string           `json:"meter_category,omitempty" form:"meter_category"`
	MeterSubcategory string           `json:"meter_subcategory,omitempty" form:"meter_subcategory"`
	ServiceFamily    string           `json:"service_family,omitempty" form:"service_family"`
	PricingModel     string           `json:"pricing_model,omitempty" form:"pricing_model"`
	ChargeType       string           `json:"charge_type,omitempty" form:"charge_type"`
	PublisherName    string           `json:"publisher_name,omitempty" form:"publisher_name"`
	CostCenter       string           `json:"cost_center,omitempty" form:"cost_center"`
	SourceID         string           `json:"source_id,omitempty" form:"source_id"`
	TagKey           string           `json:"tag_key,omitempty" form:"tag_key"`
	TagValue         string           `json:"tag_value,omitempty" form:"tag_value"`
	MinCost          *decimal.Decimal `json:"min_cost,omitempty" form:"-"`
	MaxCost          *decimal.Decimal `json:"max_cost,omitempty" form:"-"`
}

type AggregateRequest struct {
	// Date nil means latest-mode resolution across active sources.
	Date    *time.Time
	GroupBy []string
	Filters Filters
}

type AggregateRow struct {
	GroupKey             map[string]string `json:"group_key"`
	TotalUSD             decimal.Decimal   `json:"total_usd"`
	TotalBillingCurrency decimal.Decimal   `json:"total_billing_currency"`
}

type AggregateResponse struct {
	Date    string         `json:"date,omitempty"`
	GroupBy []string       `json:"group_by"`
	Rows    []AggregateRow `json:"rows"`
}

var (
	ErrUnknownDimension = errors.New("unknown_dimension")
	ErrNoDimensions     = errors.New("no_dimensions")
	ErrInvalidMonth     = errors.New("invalid_month")
	ErrInvalidSourceID  = errors.New("invalid_source_id")
)

type Service interface {
	// Aggregate sums both monetary columns per distinct group key, ordered
	// by group key ascending. Results are identical with or without the
	// query cache.
	Aggregate(ctx context.Context, req AggregateRequest) (AggregateResponse, error)

	// AvailableDates lists the distinct line-item dates within a month
	// (YYYY-MM) across the latest-mode scope, ascending.
	AvailableDates(ctx context.Context, month string) ([]string, error)
}
