package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cielolabs/costwatch/internal/reference/domain"
	"github.com/cielolabs/costwatch/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Normalizer struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Normalizer {
	return &Normalizer{
		log:   p.Log.Named("reference.normalizer"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Normalize resolves one row's raw fields into reference entities. A missing
// subscription, resource or meter id is a hard failure for the row; a missing
// tenant id maps every such row onto a single blank-tenant customer, matching
// upstream exports that omit the column entirely.
func (n *Normalizer) Normalize(ctx context.Context, tx *gorm.DB, memo *domain.Memo, raw domain.RawEntity) (domain.Entities, error) {
	if strings.TrimSpace(raw.SubscriptionID) == "" {
		return domain.Entities{}, domain.ErrMissingSubscriptionID
	}
	if strings.TrimSpace(raw.ResourceID) == "" {
		return domain.Entities{}, domain.ErrMissingResourceID
	}
	if strings.TrimSpace(raw.MeterID) == "" {
		return domain.Entities{}, domain.ErrMissingMeterID
	}

	customer, err := n.ensureCustomer(ctx, tx, memo, raw)
	if err != nil {
		return domain.Entities{}, err
	}

	subscription, err := n.ensureSubscription(ctx, tx, memo, raw, customer)
	if err != nil {
		return domain.Entities{}, err
	}

	resource, err := n.ensureResource(ctx, tx, memo, raw)
	if err != nil {
		return domain.Entities{}, err
	}

	meter, err := n.ensureMeter(ctx, tx, memo, raw)
	if err != nil {
		return domain.Entities{}, err
	}

	return domain.Entities{
		Customer:     customer,
		Subscription: subscription,
		Resource:     resource,
		Meter:        meter,
	}, nil
}

func (n *Normalizer) ensureCustomer(ctx context.Context, tx *gorm.DB, memo *domain.Memo, raw domain.RawEntity) (*domain.Customer, error) {
	tenantID := strings.TrimSpace(raw.TenantID)
	if cached, ok := memo.Customers[tenantID]; ok {
		return cached, nil
	}

	customer, err := n.repo.FindCustomerByTenantID(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		candidate := &domain.Customer{
			ID:       n.genID.Generate(),
			TenantID: tenantID,
			Name:     strings.TrimSpace(raw.CustomerName),
		}
		if err := n.repo.InsertCustomer(ctx, tx, candidate); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			// Another run created it between our read and write.
			if customer, err = n.repo.FindCustomerByTenantID(ctx, tx, tenantID); err != nil {
				return nil, err
			}
		} else {
			customer = candidate
			n.log.Debug("created customer", zap.String("tenant_id", tenantID))
		}
	}

	memo.Customers[tenantID] = customer
	return customer, nil
}

func (n *Normalizer) ensureSubscription(ctx context.Context, tx *gorm.DB, memo *domain.Memo, raw domain.RawEntity, customer *domain.Customer) (*domain.Subscription, error) {
	key := strings.TrimSpace(raw.SubscriptionID)
	name := strings.TrimSpace(raw.SubscriptionName)

	subscription, ok := memo.Subscriptions[key]
	if !ok {
		var err error
		subscription, err = n.repo.FindSubscriptionByKey(ctx, tx, key)
		if err != nil {
			return nil, err
		}
	}
	if subscription == nil {
		candidate := &domain.Subscription{
			ID:             n.genID.Generate(),
			SubscriptionID: key,
			Name:           name,
			CustomerID:     customer.ID,
		}
		if err := n.repo.InsertSubscription(ctx, tx, candidate); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			if subscription, err = n.repo.FindSubscriptionByKey(ctx, tx, key); err != nil {
				return nil, err
			}
		} else {
			subscription = candidate
			n.log.Debug("created subscription", zap.String("subscription_id", key))
		}
	}

	// Display name follows the newest import.
	if name != "" && subscription.Name != name {
		if err := n.repo.UpdateSubscriptionName(ctx, tx, subscription.ID, name); err != nil {
			return nil, err
		}
		subscription.Name = name
	}

	memo.Subscriptions[key] = subscription
	return subscription, nil
}

func (n *Normalizer) ensureResource(ctx context.Context, tx *gorm.DB, memo *domain.Memo, raw domain.RawEntity) (*domain.Resource, error) {
	key := strings.TrimSpace(raw.ResourceID)
	resourceName := shortResourceName(key)
	resourceGroup := strings.ToLower(strings.TrimSpace(raw.ResourceGroup))

	resource, ok := memo.Resources[key]
	if !ok {
		var err error
		resource, err = n.repo.FindResourceByKey(ctx, tx, key)
		if err != nil {
			return nil, err
		}
	}
	if resource == nil {
		candidate := &domain.Resource{
			ID:            n.genID.Generate(),
			ResourceID:    key,
			Name:          strings.TrimSpace(raw.ProductName),
			ResourceName:  resourceName,
			ResourceGroup: resourceGroup,
			Location:      strings.TrimSpace(raw.Location),
		}
		if err := n.repo.InsertResource(ctx, tx, candidate); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			if resource, err = n.repo.FindResourceByKey(ctx, tx, key); err != nil {
				return nil, err
			}
		} else {
			resource = candidate
			n.log.Debug("created resource", zap.String("resource_id", key))
		}
	}

	fields := map[string]any{}
	if resourceName != "" && resource.ResourceName == "" {
		fields["resource_name"] = resourceName
		resource.ResourceName = resourceName
	}
	if resourceGroup != "" && resource.ResourceGroup != resourceGroup {
		fields["resource_group"] = resourceGroup
		resource.ResourceGroup = resourceGroup
	}
	if len(fields) > 0 {
		if err := n.repo.UpdateResourceFields(ctx, tx, resource.ID, fields); err != nil {
			return nil, err
		}
	}

	memo.Resources[key] = resource
	return resource, nil
}

func (n *Normalizer) ensureMeter(ctx context.Context, tx *gorm.DB, memo *domain.Memo, raw domain.RawEntity) (*domain.Meter, error) {
	key := strings.TrimSpace(raw.MeterID)
	serviceFamily := strings.TrimSpace(raw.ServiceFamily)

	meter, ok := memo.Meters[key]
	if !ok {
		var err error
		meter, err = n.repo.FindMeterByKey(ctx, tx, key)
		if err != nil {
			return nil, err
		}
	}
	if meter == nil {
		candidate := &domain.Meter{
			ID:            n.genID.Generate(),
			MeterID:       key,
			Name:          strings.TrimSpace(raw.MeterName),
			Category:      strings.TrimSpace(raw.MeterCategory),
			Subcategory:   strings.TrimSpace(raw.MeterSubcategory),
			ServiceFamily: serviceFamily,
			Unit:          strings.TrimSpace(raw.Unit),
		}
		if err := n.repo.InsertMeter(ctx, tx, candidate); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			if meter, err = n.repo.FindMeterByKey(ctx, tx, key); err != nil {
				return nil, err
			}
		} else {
			meter = candidate
			n.log.Debug("created meter", zap.String("meter_id", key))
		}
	}

	if serviceFamily != "" && meter.ServiceFamily != serviceFamily {
		if err := n.repo.UpdateMeterServiceFamily(ctx, tx, meter.ID, serviceFamily); err != nil {
			return nil, err
		}
		meter.ServiceFamily = serviceFamily
	}

	memo.Meters[key] = meter
	return meter, nil
}

// shortResourceName extracts the trailing path segment of a full resource id.
func shortResourceName(resourceID string) string {
	trimmed := strings.TrimRight(resourceID, "/")
	if trimmed == "" {
		return ""
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
