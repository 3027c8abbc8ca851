package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/core2cover/api/internal/services"
)

// Event types carried in the "eventType" attribute.
const (
	EventOrderCreated  = "order.created"
	EventReturnUpdated = "return.updated"
)

// PubSubNotificationPublisher publishes order and return events to a Pub/Sub topic consumed by the
// email and dashboard workers.
type PubSubNotificationPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	now     func() time.Time
}

// NewPubSubNotificationPublisher constructs a publisher bound to topic.
func NewPubSubNotificationPublisher(topic *pubsub.Topic) (*PubSubNotificationPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub notification publisher: topic is required")
	}
	return &PubSubNotificationPublisher{
		topic:   topic,
		marshal: json.Marshal,
		now:     time.Now,
	}, nil
}

type orderCreatedPayload struct {
	OrderID     string    `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	SellerIDs   []string  `json:"sellerIds"`
	GrandTotal  string    `json:"grandTotal"`
	AmountDue   string    `json:"amountDue"`
	Currency    string    `json:"currency"`
	PublishedAt time.Time `json:"publishedAt"`
}

type returnUpdatedPayload struct {
	ReturnID    string    `json:"returnId"`
	OrderID     string    `json:"orderId"`
	OrderItemID string    `json:"orderItemId"`
	CustomerID  string    `json:"customerId"`
	SellerID    string    `json:"sellerId"`
	State       string    `json:"state"`
	Refund      string    `json:"refundStatus"`
	Action      string    `json:"action"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PublishOrderCreated emits an order.created message.
func (p *PubSubNotificationPublisher) PublishOrderCreated(ctx context.Context, event services.OrderCreatedEvent) error {
	payload := orderCreatedPayload{
		OrderID:     event.OrderID,
		CustomerID:  event.CustomerID,
		SellerIDs:   event.SellerIDs,
		GrandTotal:  event.GrandTotal.StringFixed(2),
		AmountDue:   event.AmountDue.StringFixed(2),
		Currency:    event.Currency,
		PublishedAt: p.now().UTC(),
	}
	attrs := map[string]string{"eventType": EventOrderCreated}
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "customerId", event.CustomerID)
	return p.publish(ctx, payload, attrs)
}

// PublishReturnUpdated emits a return.updated message.
func (p *PubSubNotificationPublisher) PublishReturnUpdated(ctx context.Context, event services.ReturnUpdatedEvent) error {
	payload := returnUpdatedPayload{
		ReturnID:    event.ReturnID,
		OrderID:     event.OrderID,
		OrderItemID: event.OrderItemID,
		CustomerID:  event.CustomerID,
		SellerID:    event.SellerID,
		State:       string(event.State),
		Refund:      string(event.Refund),
		Action:      event.Action,
		PublishedAt: p.now().UTC(),
	}
	attrs := map[string]string{"eventType": EventReturnUpdated}
	setAttr(attrs, "returnId", event.ReturnID)
	setAttr(attrs, "customerId", event.CustomerID)
	setAttr(attrs, "sellerId", event.SellerID)
	setAttr(attrs, "action", event.Action)
	return p.publish(ctx, payload, attrs)
}

func (p *PubSubNotificationPublisher) publish(ctx context.Context, payload any, attrs map[string]string) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub notification publisher: not initialised")
	}
	data, err := p.marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", attrs["eventType"], err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", attrs["eventType"], err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
