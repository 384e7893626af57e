package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/cache"
	"github.com/cielolabs/costwatch/internal/config"
	"github.com/cielolabs/costwatch/internal/costquery/domain"
	"github.com/cielolabs/costwatch/internal/observability/metrics"
	resolverdomain "github.com/cielolabs/costwatch/internal/resolver/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
)

// dimensions is the group-by allow-list: request dimension name to the SQL
// expression that selects it. Anything off this map is a request error.
var dimensions = map[string]string{
	"subscription_id":   "subscriptions.subscription_id",
	"subscription_name": "subscriptions.name",
	"resource_group":    "resources.resource_group",
	"resource_name":     "resources.resource_name",
	"location":          "resources.location",
	"meter_category":    "meters.category",
	"meter_subcategory": "meters.subcategory",
	"service_family":    "meters.service_family",
	"pricing_model":     "cost_line_items.pricing_model",
	"charge_type":       "cost_line_items.charge_type",
	"publisher_name":    "cost_line_items.publisher_name",
	"cost_center":       "cost_line_items.cost_center",
}

// aggRow receives one scanned result row; only the selected dimension
// columns are populated.
type aggRow struct {
	SubscriptionID   sql.NullString `gorm:"column:subscription_id"`
	SubscriptionName sql.NullString `gorm:"column:subscription_name"`
	ResourceGroup    sql.NullString `gorm:"column:resource_group"`
	ResourceName     sql.NullString `gorm:"column:resource_name"`
	Location         sql.NullString `gorm:"column:location"`
	MeterCategory    sql.NullString `gorm:"column:meter_category"`
	MeterSubcategory sql.NullString `gorm:"column:meter_subcategory"`
	ServiceFamily    sql.NullString `gorm:"column:service_family"`
	PricingModel     sql.NullString `gorm:"column:pricing_model"`
	ChargeType       sql.NullString `gorm:"column:charge_type"`
	PublisherName    sql.NullString `gorm:"column:publisher_name"`
	CostCenter       sql.NullString `gorm:"column:cost_center"`

	TotalUSD             decimal.Decimal     `gorm:"column:total_usd"`
	TotalBillingCurrency decimal.NullDecimal `gorm:"column:total_billing_currency"`
}

func (r aggRow) value(dimension string) string {
	var v sql.NullString
	switch dimension {
	case "subscription_id":
		v = r.SubscriptionID
	case "subscription_name":
		v = r.SubscriptionName
	case "resource_group":
		v = r.ResourceGroup
	case "resource_name":
		v = r.ResourceName
	case "location":
		v = r.Location
	case "meter_category":
		v = r.MeterCategory
	case "meter_subcategory":
		v = r.MeterSubcategory
	case "service_family":
		v = r.ServiceFamily
	case "pricing_model":
		v = r.PricingModel
	case "charge_type":
		v = r.ChargeType
	case "publisher_name":
		v = r.PublisherName
	case "cost_center":
		v = r.CostCenter
	}
	return v.String
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Cache    cache.QueryCache
	Metrics  *metrics.Metrics `optional:"true"`
	Resolver resolverdomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	cache    cache.QueryCache
	ttl      time.Duration
	metrics  *metrics.Metrics
	resolver resolverdomain.Service
}

func New(p Params) domain.Service {
	c := p.Cache
	if c == nil {
		c = cache.NewNop()
	}
	return &service{
		db:       p.DB,
		log:      p.Log.Named("costquery.service"),
		cache:    c,
		ttl:      time.Duration(p.Config.Cache.TTLSeconds) * time.Second,
		metrics:  p.Metrics,
		resolver: p.Resolver,
	}
}

func (s *service) Aggregate(ctx context.Context, req domain.AggregateRequest) (domain.AggregateResponse, error) {
	if len(req.GroupBy) == 0 {
		return domain.AggregateResponse{}, domain.ErrNoDimensions
	}
	for _, dim := range req.GroupBy {
		if _, ok := dimensions[dim]; !ok {
			return domain.AggregateResponse{}, fmt.Errorf("%w: %s", domain.ErrUnknownDimension, dim)
		}
	}
	if s.metrics != nil {
		s.metrics.AggregateCalls.Inc()
	}

	key := cacheKey("aggregate", req)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached domain.AggregateResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	resp, err := s.aggregate(ctx, req)
	if err != nil {
		return domain.AggregateResponse{}, err
	}

	if data, err := json.Marshal(resp); err == nil {
		s.cache.Set(ctx, key, data, s.ttl)
	}
	return resp, nil
}

func (s *service) aggregate(ctx context.Context, req domain.AggregateRequest) (domain.AggregateResponse, error) {
	resp := domain.AggregateResponse{GroupBy: req.GroupBy}
	if req.Date != nil {
		resp.Date = req.Date.Format("2006-01-02")
	}

	scope, err := s.resolver.Scope(ctx, req.Date)
	if err != nil {
		return resp, err
	}

	selects := make([]string, 0, len(req.GroupBy)+2)
	for _, dim := range req.GroupBy {
		selects = append(selects, fmt.Sprintf("%s AS %s", dimensions[dim], dim))
	}
	selects = append(selects,
		"SUM(cost_line_items.cost_in_usd) AS total_usd",
		"SUM(cost_line_items.cost_in_billing_currency) AS total_billing_currency")

	q := s.db.WithContext(ctx).
		Model(&snapdomain.CostLineItem{}).
		Joins("JOIN snapshots ON snapshots.id = cost_line_items.snapshot_id").
		Joins("JOIN subscriptions ON subscriptions.id = cost_line_items.subscription_id").
		Joins("JOIN resources ON resources.id = cost_line_items.resource_id").
		Joins("JOIN meters ON meters.id = cost_line_items.meter_id").
		Scopes(scope).
		Select(strings.Join(selects, ", "))

	q, err = applyFilters(q, req.Filters)
	if err != nil {
		return resp, err
	}

	groupExprs := make([]string, 0, len(req.GroupBy))
	for _, dim := range req.GroupBy {
		groupExprs = append(groupExprs, dimensions[dim])
	}
	q = q.Group(strings.Join(groupExprs, ", ")).Order(strings.Join(req.GroupBy, " ASC, ") + " ASC")

	var rows []aggRow
	if err := q.Scan(&rows).Error; err != nil {
		return resp, err
	}

	resp.Rows = make([]domain.AggregateRow, 0, len(rows))
	for _, row := range rows {
		out := domain.AggregateRow{
			GroupKey: make(map[string]string, len(req.GroupBy)),
			TotalUSD: row.TotalUSD,
		}
		if row.TotalBillingCurrency.Valid {
			out.TotalBillingCurrency = row.TotalBillingCurrency.Decimal
		}
		for _, dim := range req.GroupBy {
			out.GroupKey[dim] = row.value(dim)
		}
		resp.Rows = append(resp.Rows, out)
	}

	if len(resp.Rows) == 0 && req.Date != nil {
		s.warnIfInconsistent(ctx, *req.Date)
	}
	return resp, nil
}

// warnIfInconsistent logs when selections resolve for the date but the scoped
// query returned no rows. The caller still gets an empty result, never an error.
func (s *service) warnIfInconsistent(ctx context.Context, date time.Time) {
	selections, err := s.resolver.ResolveForDate(ctx, date)
	if err != nil || len(selections) == 0 {
		return
	}
	s.log.Warn("resolver selections exist but scoped query returned no rows",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("selections", len(selections)))
}

func applyFilters(q *gorm.DB, f domain.Filters) (*gorm.DB, error) {
	if f.SubscriptionID != "" {
		q = q.Where("subscriptions.subscription_id = ?", f.SubscriptionID)
	}
	if f.SubscriptionName != "" {
		q = q.Where("subscriptions.name = ?", f.SubscriptionName)
	}
	if f.ResourceGroup != "" {
		q = q.Where("resources.resource_group = ?", strings.ToLower(strings.TrimSpace(f.ResourceGroup)))
	}
	if f.ResourceName != "" {
		q = q.Where("resources.resource_name = ?", f.ResourceName)
	}
	if f.Location != "" {
		q = q.Where("resources.location = ?", f.Location)
	}
	if f.MeterCategory != "" {
		q = q.Where("meters.category = ?", f.MeterCategory)
	}
	if f.MeterSubcategory != "" {
		q = q.Where("meters.subcategory = ?", f.MeterSubcategory)
	}
	if f.ServiceFamily != "" {
		q = q.Where("meters.service_family = ?", f.ServiceFamily)
	}
	if f.PricingModel != "" {
		q = q.Where("cost_line_items.pricing_model = ?", f.PricingModel)
	}
	if f.ChargeType != "" {
		q = q.Where("cost_line_items.charge_type = ?", f.ChargeType)
	}
	if f.PublisherName != "" {
		q = q.Where("cost_line_items.publisher_name = ?", f.PublisherName)
	}
	if f.CostCenter != "" {
		q = q.Where("cost_line_items.cost_center = ?", f.CostCenter)
	}
	if f.MinCost != nil {
		q = q.Where("cost_line_items.cost_in_usd >= ?", *f.MinCost)
	}
	if f.MaxCost != nil {
		q = q.Where("cost_line_items.cost_in_usd <= ?", *f.MaxCost)
	}
	if f.SourceID != "" {
		id, err := snowflake.ParseString(f.SourceID)
		if err != nil {
			return nil, domain.ErrInvalidSourceID
		}
		q = q.Where("snapshots.source_id = ?", id)
	}
	if f.TagKey != "" {
		if f.TagValue != "" {
			q = q.Where(datatypes.JSONQuery("tags").Equals(f.TagValue, f.TagKey))
		} else {
			q = q.Where(datatypes.JSONQuery("tags").HasKey(f.TagKey))
		}
	}
	return q, nil
}

func (s *service) AvailableDates(ctx context.Context, month string) ([]string, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, domain.ErrInvalidMonth
	}
	end := start.AddDate(0, 1, 0)

	scope, err := s.resolver.Scope(ctx, nil)
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	err = s.db.WithContext(ctx).
		Model(&snapdomain.CostLineItem{}).
		Scopes(scope).
		Where("cost_line_items.date >= ? AND cost_line_items.date < ?", start, end).
		Distinct("cost_line_items.date").
		Order("cost_line_items.date ASC").
		Pluck("cost_line_items.date", &dates).Error
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	return out, nil
}

// cacheKey canonicalizes a request into path|date|sorted params so the same
// logical query always hits the same entry.
func cacheKey(path string, req domain.AggregateRequest) string {
	params := map[string]string{
		"group_by": strings.Join(req.GroupBy, ","),
	}
	addFilterParams(params, req.Filters)

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k+"="+v)
		}
	}
	sort.Strings(keys)

	date := ""
	if req.Date != nil {
		date = req.Date.Format("2006-01-02")
	}
	return path + "|" + date + "|" + strings.Join(keys, "|")
}

func addFilterParams(params map[string]string, f domain.Filters) {
	params["subscription_id"] = f.SubscriptionID
	params["subscription_name"] = f.SubscriptionName
	params["resource_group"] = f.ResourceGroup
	params["resource_name"] = f.ResourceName
	params["location"] = f.Location
	params["meter_category"] = f.MeterCategory
	params["meter_subcategory"] = f.MeterSubcategory
	params["service_family"] = f.ServiceFamily
	params["pricing_model"] = f.PricingModel
	params["charge_type"] = f.ChargeType
	params["publisher_name"] = f.PublisherName
	params["cost_center"] = f.CostCenter
	params["source_id"] = f.SourceID
	params["tag_key"] = f.TagKey
	params["tag_value"] = f.TagValue
	if f.MinCost != nil {
		params["min_cost"] = f.MinCost.String()
	}
	if f.MaxCost != nil {
		params["max_cost"] = f.MaxCost.String()
	}
}
