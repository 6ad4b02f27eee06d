package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CartItem is a line of a client-submitted cart. Clients send the product reference
// either as "_id" (a populated product) or as "product_id" (a flat reference).
type CartItem struct {
	ID        string          `json:"_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"qty" validate:"gt=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0,money"`
	Image     string          `json:"image" validate:"omitempty,max=500"`
}

// ProductRef resolves the two reference shapes into one value.
func (c CartItem) ProductRef() string {
	if ref := strings.TrimSpace(c.ID); ref != "" {
		return ref
	}
	return strings.TrimSpace(c.ProductID)
}

// ToOrderItem snapshots the cart line onto an order.
func (c CartItem) ToOrderItem() OrderItem {
	return OrderItem{
		ProductRef: c.ProductRef(),
		Name:       c.Name,
		Quantity:   c.Quantity,
		UnitPrice:  c.Price,
		ImageRef:   c.Image,
	}
}

// CheckoutRequest is the body of a hosted-checkout request.
type CheckoutRequest struct {
	Items           []CartItem       `json:"items" validate:"min=1,dive"`
	ShippingAddress ShippingAddress  `json:"shipping_address"`
	TaxPrice        *decimal.Decimal `json:"tax_price,omitempty"`
	ShippingPrice   *decimal.Decimal `json:"shipping_price,omitempty"`
}

// DirectOrderRequest is the body of an order placed without a hosted checkout session.
type DirectOrderRequest struct {
	Items           []CartItem       `json:"order_items" validate:"min=1,dive"`
	ShippingAddress ShippingAddress  `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method" validate:"required,max=50"`
	TaxPrice        *decimal.Decimal `json:"tax_price,omitempty"`
	ShippingPrice   *decimal.Decimal `json:"shipping_price,omitempty"`
}
