package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/JivkoJelev91/online-shop/internal/order"
)

const (
	OrderCreatedQueue       = "order.created"
	OrderStatusChangedQueue = "order.status_changed"
)

// Publisher emits order events to RabbitMQ. A nil *Publisher is a valid
// no-op, so callers never have to branch on whether messaging is configured.
type Publisher struct {
	ch *amqp.Channel
}

func Dial(url string) (*amqp.Connection, error) {
	return amqp.Dial(url)
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare queues so publish never fails due to missing infra
	for _, q := range []string{OrderCreatedQueue, OrderStatusChangedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}

	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.ch.Close()
}

type orderLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderCreated struct {
	EventType string          `json:"eventType"`
	OrderID   string          `json:"orderId"`
	UserID    string          `json:"userId"`
	Items     []orderLine     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

type orderStatusChanged struct {
	EventType string    `json:"eventType"`
	OrderID   string    `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	if p == nil {
		return nil
	}

	ev := orderCreated{
		EventType: "OrderCreated",
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Timestamp: time.Now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, orderLine{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated: %w", err)
	}
	return p.publishJSON(ctx, OrderCreatedQueue, body)
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, orderID string, from, to order.Status) error {
	if p == nil {
		return nil
	}

	ev := orderStatusChanged{
		EventType: "OrderStatusChanged",
		OrderID:   orderID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderStatusChanged: %w", err)
	}
	return p.publishJSON(ctx, OrderStatusChangedQueue, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",         // default exchange
		routingKey, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
