// Package observability provides a metrics extension for till that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/payment"
	"github.com/xraph/till/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                    = (*MetricsExtension)(nil)
	_ plugin.OnInit                    = (*MetricsExtension)(nil)
	_ plugin.OnCartEvent               = (*MetricsExtension)(nil)
	_ plugin.OnSaleCompleted           = (*MetricsExtension)(nil)
	_ plugin.OnSaleFailed              = (*MetricsExtension)(nil)
	_ plugin.OnBillRevised             = (*MetricsExtension)(nil)
	_ plugin.OnBillDeleted             = (*MetricsExtension)(nil)
	_ plugin.OnCustomerCreated         = (*MetricsExtension)(nil)
	_ plugin.OnPaymentEvent            = (*MetricsExtension)(nil)
	_ plugin.OnBookingConfirmationSent = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a till plugin to automatically track sales metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Cart metrics
	CartEvents Counter

	// Sale metrics
	SaleCompleted     Counter
	SaleComplimentary Counter
	SaleFailed        Counter
	SaleTotal         Histogram
	SalePlayMinutes   Histogram
	LoyaltyEarned     Counter
	LoyaltyRedeemed   Counter

	// Bill metrics
	BillRevised Counter
	BillDeleted Counter

	// Customer metrics
	CustomerCreated Counter

	// Integration metrics
	PaymentEvents    Counter
	PaymentFailures  Counter
	BookingConfirmed Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		CartEvents: factory.Counter("till.cart.events"),

		SaleCompleted:     factory.Counter("till.sale.completed"),
		SaleComplimentary: factory.Counter("till.sale.complimentary"),
		SaleFailed:        factory.Counter("till.sale.failed"),
		SaleTotal:         factory.Histogram("till.sale.total_amount"),
		SalePlayMinutes:   factory.Histogram("till.sale.play_minutes"),
		LoyaltyEarned:     factory.Counter("till.loyalty.earned"),
		LoyaltyRedeemed:   factory.Counter("till.loyalty.redeemed"),

		BillRevised: factory.Counter("till.bill.revised"),
		BillDeleted: factory.Counter("till.bill.deleted"),

		CustomerCreated: factory.Counter("till.customer.created"),

		PaymentEvents:    factory.Counter("till.payment.events"),
		PaymentFailures:  factory.Counter("till.payment.failures"),
		BookingConfirmed: factory.Counter("till.booking.confirmations"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnCartEvent implements plugin.OnCartEvent.
func (m *MetricsExtension) OnCartEvent(_ context.Context, _ cart.Event) error {
	m.CartEvents.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleCompleted implements plugin.OnSaleCompleted.
func (m *MetricsExtension) OnSaleCompleted(_ context.Context, b *bill.Bill) error {
	m.SaleCompleted.Inc()
	if b.Status == bill.StatusComplimentary {
		m.SaleComplimentary.Inc()
	}
	m.SaleTotal.Observe(float64(b.Total))
	if b.PlayMinutes > 0 {
		m.SalePlayMinutes.Observe(float64(b.PlayMinutes))
	}
	m.LoyaltyEarned.Add(float64(b.LoyaltyPointsEarned))
	m.LoyaltyRedeemed.Add(float64(b.LoyaltyPointsUsed))
	return nil
}

// OnSaleFailed implements plugin.OnSaleFailed.
func (m *MetricsExtension) OnSaleFailed(_ context.Context, _ string, _ error) error {
	m.SaleFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillRevised implements plugin.OnBillRevised.
func (m *MetricsExtension) OnBillRevised(_ context.Context, _, _ *bill.Bill) error {
	m.BillRevised.Inc()
	return nil
}

// OnBillDeleted implements plugin.OnBillDeleted.
func (m *MetricsExtension) OnBillDeleted(_ context.Context, _ *bill.Bill) error {
	m.BillDeleted.Inc()
	return nil
}

// OnCustomerCreated implements plugin.OnCustomerCreated.
func (m *MetricsExtension) OnCustomerCreated(_ context.Context, _ *customer.Customer) error {
	m.CustomerCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Integration hooks
// ──────────────────────────────────────────────────

// OnPaymentEvent implements plugin.OnPaymentEvent.
func (m *MetricsExtension) OnPaymentEvent(_ context.Context, ev *payment.Event) error {
	m.PaymentEvents.Inc()
	if ev.Type == payment.OrderFailed || ev.Type == payment.RefundFailed {
		m.PaymentFailures.Inc()
	}
	return nil
}

// OnBookingConfirmationSent implements plugin.OnBookingConfirmationSent.
func (m *MetricsExtension) OnBookingConfirmationSent(_ context.Context, _, _ string) error {
	m.BookingConfirmed.Inc()
	return nil
}
