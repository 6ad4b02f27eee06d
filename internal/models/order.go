package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentState tracks the payment axis of an order. It only moves pending -> paid.
type PaymentState string

const (
	PaymentPending PaymentState = "pending"
	PaymentPaid    PaymentState = "paid"
)

// DeliveryState tracks the fulfilment axis of an order. It only moves undelivered -> delivered.
type DeliveryState string

const (
	DeliveryUndelivered DeliveryState = "undelivered"
	DeliveryDelivered   DeliveryState = "delivered"
)

// OrderItem is a snapshot of a cart line taken when the order is placed.
type OrderItem struct {
	ProductRef string          `json:"product_ref"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ImageRef   string          `json:"image_ref,omitempty"`
}

// ShippingAddress is where the order is shipped.
type ShippingAddress struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// Amounts holds the money totals of an order. GrandTotal = ItemsTotal + TaxTotal + ShippingTotal.
type Amounts struct {
	ItemsTotal    decimal.Decimal `json:"items_total" gorm:"type:decimal(12,2);not null"`
	TaxTotal      decimal.Decimal `json:"tax_total" gorm:"type:decimal(12,2);not null"`
	ShippingTotal decimal.Decimal `json:"shipping_total" gorm:"type:decimal(12,2);not null"`
	GrandTotal    decimal.Decimal `json:"grand_total" gorm:"type:decimal(12,2);not null"`
}

// PaymentConfirmation is recorded once, on the pending -> paid transition.
type PaymentConfirmation struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	PayerEmail string `json:"payer_email"`
}

// Order represents one purchase attempt and its payment/delivery status.
type Order struct {
	ID                  string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID             string              `json:"owner_id" gorm:"type:varchar(36);not null;index"`
	Items               []OrderItem         `json:"items" gorm:"serializer:json;type:text"`
	ShippingAddress     ShippingAddress     `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod       string              `json:"payment_method"`
	Amounts             Amounts             `json:"amounts" gorm:"embedded"`
	PaymentSessionID    string              `json:"payment_session_id,omitempty" gorm:"type:varchar(255);uniqueIndex:idx_orders_payment_session,where:payment_session_id <> ''"`
	PaymentState        PaymentState        `json:"payment_state" gorm:"type:varchar(20);not null;index"`
	PaidAt              *time.Time          `json:"paid_at,omitempty"`
	PaymentConfirmation PaymentConfirmation `json:"payment_confirmation" gorm:"embedded;embeddedPrefix:confirmation_"`
	DeliveryState       DeliveryState       `json:"delivery_state" gorm:"type:varchar(20);not null"`
	DeliveredAt         *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// IsPaid reports whether the payment axis reached its terminal state.
func (o *Order) IsPaid() bool {
	return o.PaymentState == PaymentPaid
}

// IsDelivered reports whether the delivery axis reached its terminal state.
func (o *Order) IsDelivered() bool {
	return o.DeliveryState == DeliveryDelivered
}

// ItemSource says where a resolved item's display fields came from.
type ItemSource string

const (
	ItemSourcePopulated ItemSource = "populated"
	ItemSourceSnapshot  ItemSource = "snapshot"
)

// ResolvedItem is the single read view of an order line, built either from the live
// catalog product (populated) or from the snapshot stored on the order.
type ResolvedItem struct {
	Source     ItemSource      `json:"source"`
	ProductRef string          `json:"product_ref"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Product    *Product        `json:"product,omitempty"`
}

// OrderView is an order as returned to API callers, with items resolved.
type OrderView struct {
	Order
	Items []ResolvedItem `json:"items"`
}
