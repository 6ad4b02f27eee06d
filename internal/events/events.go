// Package events defines the order lifecycle events sent to the message broker.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
)

// Routing keys for order events.
const (
	OrderCreated   = "order.created"
	OrderPaid      = "order.paid"
	OrderDelivered = "order.delivered"
)

// OrderEvent is the JSON body published for each order lifecycle transition.
type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	OwnerID    string          `json:"owner_id"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	SessionID  string          `json:"session_id,omitempty"`
	PayerEmail string          `json:"payer_email,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewOrderEvent builds an event of the given type from an order snapshot.
func NewOrderEvent(eventType string, order *models.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		OwnerID:    order.OwnerID,
		GrandTotal: order.Amounts.GrandTotal,
		SessionID:  order.PaymentSessionID,
		PayerEmail: order.PaymentConfirmation.PayerEmail,
		OccurredAt: at,
	}
}

// Publisher sends order events somewhere.
type Publisher interface {
	PublishOrderEvent(evt OrderEvent) error
}

// RawPublisher is the broker primitive, satisfied by *rabbitmq.Client.
type RawPublisher interface {
	Publish(routingKey string, body []byte) error
}

// BrokerPublisher encodes events as JSON and routes them by event type.
type BrokerPublisher struct {
	raw RawPublisher
}

// NewBrokerPublisher creates a Publisher on top of a broker client.
func NewBrokerPublisher(raw RawPublisher) *BrokerPublisher {
	return &BrokerPublisher{raw: raw}
}

// PublishOrderEvent marshals and publishes evt with evt.Type as routing key.
func (p *BrokerPublisher) PublishOrderEvent(evt OrderEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}
	return p.raw.Publish(evt.Type, body)
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

// PublishOrderEvent logs evt.
func (LogPublisher) PublishOrderEvent(evt OrderEvent) error {
	log.Printf("event %s for order %s (broker disabled)", evt.Type, evt.OrderID)
	return nil
}

// Notifier consumes order events and dispatches customer notifications.
type Notifier struct {
	send func(evt OrderEvent) error
}

// NewNotifier creates a Notifier. A nil send logs the notification instead.
func NewNotifier(send func(evt OrderEvent) error) *Notifier {
	if send == nil {
		send = func(evt OrderEvent) error {
			switch evt.Type {
			case OrderPaid:
				log.Printf("Sending payment receipt for order %s to %s (total %s)", evt.OrderID, evt.PayerEmail, evt.GrandTotal)
			case OrderDelivered:
				log.Printf("Sending delivery notice for order %s to owner %s", evt.OrderID, evt.OwnerID)
			default:
				log.Printf("Order %s: %s", evt.OrderID, evt.Type)
			}
			return nil
		}
	}
	return &Notifier{send: send}
}

// HandleDelivery decodes a broker delivery and sends the notification.
// Malformed bodies are logged and dropped so they are not requeued forever.
func (n *Notifier) HandleDelivery(msg amqp.Delivery) error {
	var evt OrderEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		log.Printf("Dropping malformed order event (tag %d): %v", msg.DeliveryTag, err)
		return nil
	}
	return n.send(evt)
}
