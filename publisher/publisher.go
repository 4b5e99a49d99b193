// Package publisher streams bill and payment lifecycle events to Kafka.
//
// It is a plugin: register it with till.WithPlugin and every committed sale,
// revision, deletion and payment event is written as one message. A failed
// write is logged by the registry and never undoes the commit.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/payment"
	"github.com/xraph/till/plugin"
)

// Event types carried in the envelope and the event_type header.
const (
	TypeSaleCompleted = "sale.completed"
	TypeBillRevised   = "bill.revised"
	TypeBillDeleted   = "bill.deleted"
	TypePayment       = "payment.received"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Publisher)(nil)
	_ plugin.OnSaleCompleted = (*Publisher)(nil)
	_ plugin.OnBillRevised   = (*Publisher)(nil)
	_ plugin.OnBillDeleted   = (*Publisher)(nil)
	_ plugin.OnPaymentEvent  = (*Publisher)(nil)
)

// Producer writes messages. *kafka.Writer satisfies it.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Envelope is the JSON body of every message.
type Envelope struct {
	Type          string         `json:"type"`
	BillID        string         `json:"bill_id,omitempty"`
	CustomerID    string         `json:"customer_id,omitempty"`
	TerminalID    string         `json:"terminal_id,omitempty"`
	Total         int64          `json:"total"`
	Revision      int            `json:"revision,omitempty"`
	PreviousTotal *int64         `json:"previous_total,omitempty"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	Payment       *payment.Event `json:"payment,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// Publisher is the Kafka plugin.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithClock overrides the time source used for occurred_at.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New creates a publisher writing to topic.
func New(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewWriter builds a kafka.Writer for brokers with acknowledgement from all
// in-sync replicas.
func NewWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "kafka-publisher" }

// OnSaleCompleted implements plugin.OnSaleCompleted.
func (p *Publisher) OnSaleCompleted(ctx context.Context, b *bill.Bill) error {
	env := p.billEnvelope(TypeSaleCompleted, b)
	return p.write(ctx, b.ID.String(), env)
}

// OnBillRevised implements plugin.OnBillRevised.
func (p *Publisher) OnBillRevised(ctx context.Context, prev, next *bill.Bill) error {
	env := p.billEnvelope(TypeBillRevised, next)
	previous := prev.Total.Int64()
	env.PreviousTotal = &previous
	return p.write(ctx, next.ID.String(), env)
}

// OnBillDeleted implements plugin.OnBillDeleted.
func (p *Publisher) OnBillDeleted(ctx context.Context, b *bill.Bill) error {
	env := p.billEnvelope(TypeBillDeleted, b)
	return p.write(ctx, b.ID.String(), env)
}

// OnPaymentEvent implements plugin.OnPaymentEvent.
func (p *Publisher) OnPaymentEvent(ctx context.Context, ev *payment.Event) error {
	env := Envelope{
		Type:       TypePayment,
		Total:      ev.Payload.Amount,
		Payment:    ev,
		OccurredAt: p.now().UTC(),
	}
	return p.write(ctx, ev.Payload.Reference(), env)
}

func (p *Publisher) billEnvelope(typ string, b *bill.Bill) Envelope {
	return Envelope{
		Type:          typ,
		BillID:        b.ID.String(),
		CustomerID:    b.CustomerID.String(),
		TerminalID:    b.TerminalID,
		Total:         b.Total.Int64(),
		Revision:      b.Revision,
		PaymentMethod: string(b.PaymentMethod),
		OccurredAt:    p.now().UTC(),
	}
}

func (p *Publisher) write(ctx context.Context, key string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("publisher: marshal %s: %w", env.Type, err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(env.Type)}}
	headers = injectTrace(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: headers,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed", "type", env.Type, "key", key, "error", err)
		return fmt.Errorf("publisher: write %s: %w", env.Type, err)
	}
	p.logger.Debug("published", "type", env.Type, "key", key)
	return nil
}

func injectTrace(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
