package services

import (
	"storefront/internal/models"
	"storefront/internal/validation"

	"github.com/shopspring/decimal"
)

// PricingPolicy computes order totals. Both order creation paths share it.
type PricingPolicy struct {
	TaxRate      decimal.Decimal
	ShippingFlat decimal.Decimal
	// HonorClientCharges uses client-supplied tax and shipping when present.
	HonorClientCharges bool
}

// Totals prices items. clientTax and clientShipping may be nil.
func (p PricingPolicy) Totals(items []models.OrderItem, clientTax, clientShipping *decimal.Decimal) (models.Amounts, error) {
	itemsTotal := decimal.Zero
	for _, item := range items {
		itemsTotal = itemsTotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := itemsTotal.Mul(p.TaxRate).Round(2)
	shipping := p.ShippingFlat
	if p.HonorClientCharges {
		if clientTax != nil {
			if clientTax.IsNegative() || !validation.IsMoney(*clientTax) {
				return models.Amounts{}, invalid("tax_price must be a non-negative amount in whole cents")
			}
			tax = *clientTax
		}
		if clientShipping != nil {
			if clientShipping.IsNegative() || !validation.IsMoney(*clientShipping) {
				return models.Amounts{}, invalid("shipping_price must be a non-negative amount in whole cents")
			}
			shipping = *clientShipping
		}
	}

	grand := itemsTotal.Add(tax).Add(shipping)
	if !validation.IsMoney(itemsTotal) || !validation.IsMoney(grand) {
		return models.Amounts{}, invalid("order total must be in whole cents and at most " + validation.MaxAmount.String())
	}
	return models.Amounts{
		ItemsTotal:    itemsTotal,
		TaxTotal:      tax,
		ShippingTotal: shipping,
		GrandTotal:    grand,
	}, nil
}
