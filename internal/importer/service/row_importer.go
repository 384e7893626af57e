package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/cielolabs/costwatch/internal/importer/domain"
	refdomain "github.com/cielolabs/costwatch/internal/reference/domain"
)

// Column names of the export format.
const (
	colDate             = "date"
	colTenantID         = "customerTenantId"
	colCustomerName     = "customerName"
	colSubscriptionID   = "SubscriptionId"
	colSubscriptionName = "subscriptionName"
	colResourceID       = "ResourceId"
	colProductName      = "productOrderName"
	colResourceGroup    = "resourceGroupName"
	colLocation         = "resourceLocation"
	colMeterID          = "meterId"
	colMeterName        = "meterName"
	colMeterCategory    = "meterCategory"
	colMeterSubcategory = "meterSubCategory"
	colServiceFamily    = "serviceFamily"
	colUnit             = "unitOfMeasure"
	colCostInUSD        = "costInUsd"
	colCostInBilling    = "costInBillingCurrency"
	colBillingCurrency  = "billingCurrency"
	colQuantity         = "quantity"
	colUnitPrice        = "unitPrice"
	colListPrice        = "PayGPrice"
	colPricingModel     = "pricingModel"
	colChargeType       = "chargeType"
	colPublisherName    = "publisherName"
	colCostCenter       = "costCenter"
	colTags             = "tags"
)

// parsedRow is one validated export row, ready to be normalized and stored.
type parsedRow struct {
	entity refdomain.RawEntity

	date                  time.Time
	costInUSD             decimal.Decimal
	costInBillingCurrency decimal.Decimal
	billingCurrency       string
	quantity              decimal.Decimal
	unitPrice             decimal.Decimal
	listPrice             decimal.Decimal
	pricingModel          string
	chargeType            string
	publisherName         string
	costCenter            string
	tags                  datatypes.JSONMap
}

// tupleKey identifies a row inside one run, mirroring the storage uniqueness
// tuple so a dry run counts in-file duplicates the way a real run would.
func (p parsedRow) tupleKey() string {
	return strings.Join([]string{
		p.date.Format("2006-01-02"),
		p.entity.SubscriptionID,
		p.entity.ResourceID,
		p.entity.MeterID,
		p.quantity.String(),
		p.unitPrice.String(),
	}, "|")
}

// validateRow converts one raw row or rejects it with a RowError. Identifying
// fields and the date are hard requirements; numeric fields default to zero
// when absent or unparseable, matching the export producer's behavior.
func validateRow(ordinal int, row domain.RawRow) (parsedRow, error) {
	var p parsedRow

	p.entity = refdomain.RawEntity{
		TenantID:         strings.TrimSpace(row[colTenantID]),
		CustomerName:     strings.TrimSpace(row[colCustomerName]),
		SubscriptionID:   strings.TrimSpace(row[colSubscriptionID]),
		SubscriptionName: strings.TrimSpace(row[colSubscriptionName]),
		ResourceID:       strings.TrimSpace(row[colResourceID]),
		ProductName:      strings.TrimSpace(row[colProductName]),
		ResourceGroup:    row[colResourceGroup],
		Location:         strings.TrimSpace(row[colLocation]),
		MeterID:          strings.TrimSpace(row[colMeterID]),
		MeterName:        strings.TrimSpace(row[colMeterName]),
		MeterCategory:    strings.TrimSpace(row[colMeterCategory]),
		MeterSubcategory: strings.TrimSpace(row[colMeterSubcategory]),
		ServiceFamily:    strings.TrimSpace(row[colServiceFamily]),
		Unit:             strings.TrimSpace(row[colUnit]),
	}

	switch {
	case p.entity.SubscriptionID == "":
		return p, domain.RowError{Ordinal: ordinal, Field: colSubscriptionID, Reason: "missing subscription id"}
	case p.entity.ResourceID == "":
		return p, domain.RowError{Ordinal: ordinal, Field: colResourceID, Reason: "missing resource id"}
	case p.entity.MeterID == "":
		return p, domain.RowError{Ordinal: ordinal, Field: colMeterID, Reason: "missing meter id"}
	}

	date, err := parseRowDate(row[colDate])
	if err != nil {
		return p, domain.RowError{Ordinal: ordinal, Field: colDate, Reason: err.Error()}
	}
	p.date = date

	p.costInUSD = parseDecimal(row[colCostInUSD])
	p.costInBillingCurrency = parseDecimal(row[colCostInBilling])
	p.billingCurrency = strings.TrimSpace(row[colBillingCurrency])
	p.quantity = parseDecimal(row[colQuantity])
	p.unitPrice = parseDecimal(row[colUnitPrice])
	p.listPrice = parseDecimal(row[colListPrice])
	p.pricingModel = strings.TrimSpace(row[colPricingModel])
	p.chargeType = strings.TrimSpace(row[colChargeType])
	p.publisherName = strings.TrimSpace(row[colPublisherName])
	p.costCenter = strings.TrimSpace(row[colCostCenter])
	p.tags = parseTags(row[colTags])

	return p, nil
}

// parseRowDate accepts the export's native MM/DD/YYYY first, then ISO
// YYYY-MM-DD. The result is a bare UTC date.
func parseRowDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errDateMissing
	}
	for _, layout := range []string{"01/02/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errDateMalformed
}

// parseDecimal treats blanks and garbage as zero. Absent numeric fields
// import as zero, not as skipped rows.
func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseTags decodes the tags column. The export writes tags either as a JSON
// object or as a bare `"k": "v"` pair list without the outer braces; anything
// else is dropped rather than failing the row.
func parseTags(s string) datatypes.JSONMap {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		if err := json.Unmarshal([]byte("{"+s+"}"), &m); err != nil {
			return nil
		}
	}
	if len(m) == 0 {
		return nil
	}
	return datatypes.JSONMap(m)
}
