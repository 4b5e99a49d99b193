// Package audithook bridges till lifecycle events to an audit trail backend.
//
// Backends are injected through the Recorder interface; cmd/tilld records
// to the structured log.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/payment"
	"github.com/xraph/till/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                    = (*Extension)(nil)
	_ plugin.OnSaleCompleted           = (*Extension)(nil)
	_ plugin.OnSaleFailed              = (*Extension)(nil)
	_ plugin.OnBillRevised             = (*Extension)(nil)
	_ plugin.OnBillDeleted             = (*Extension)(nil)
	_ plugin.OnCustomerCreated         = (*Extension)(nil)
	_ plugin.OnPaymentEvent            = (*Extension)(nil)
	_ plugin.OnBookingConfirmationSent = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges till lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleCompleted implements plugin.OnSaleCompleted.
func (e *Extension) OnSaleCompleted(ctx context.Context, b *bill.Bill) error {
	return e.record(ctx, ActionSaleCompleted, SeverityInfo, OutcomeSuccess,
		ResourceBill, b.ID.String(), CategoryBilling, nil,
		"customer_id", b.CustomerID.String(),
		"terminal_id", b.TerminalID,
		"total", int64(b.Total),
		"payment_method", string(b.PaymentMethod),
		"status", string(b.Status),
	)
}

// OnSaleFailed implements plugin.OnSaleFailed.
func (e *Extension) OnSaleFailed(ctx context.Context, terminalID string, err error) error {
	return e.record(ctx, ActionSaleFailed, SeverityWarning, OutcomeFailure,
		ResourceTerminal, terminalID, CategoryBilling, err,
		"terminal_id", terminalID,
	)
}

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillRevised implements plugin.OnBillRevised.
func (e *Extension) OnBillRevised(ctx context.Context, prev, next *bill.Bill) error {
	return e.record(ctx, ActionBillRevised, SeverityWarning, OutcomeSuccess,
		ResourceBill, next.ID.String(), CategoryBilling, nil,
		"revision", next.Revision,
		"previous_total", int64(prev.Total),
		"total", int64(next.Total),
		"previous_customer_id", prev.CustomerID.String(),
		"customer_id", next.CustomerID.String(),
	)
}

// OnBillDeleted implements plugin.OnBillDeleted.
func (e *Extension) OnBillDeleted(ctx context.Context, b *bill.Bill) error {
	return e.record(ctx, ActionBillDeleted, SeverityWarning, OutcomeSuccess,
		ResourceBill, b.ID.String(), CategoryBilling, nil,
		"customer_id", b.CustomerID.String(),
		"total", int64(b.Total),
	)
}

// OnCustomerCreated implements plugin.OnCustomerCreated.
func (e *Extension) OnCustomerCreated(ctx context.Context, c *customer.Customer) error {
	return e.record(ctx, ActionCustomerCreated, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, c.ID.String(), CategoryCustomer, nil,
		"member", c.IsMember,
	)
}

// ──────────────────────────────────────────────────
// Integration hooks
// ──────────────────────────────────────────────────

// OnPaymentEvent implements plugin.OnPaymentEvent.
func (e *Extension) OnPaymentEvent(ctx context.Context, ev *payment.Event) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	if ev.Type == payment.OrderFailed || ev.Type == payment.RefundFailed {
		severity, outcome = SeverityWarning, OutcomeFailure
	}
	return e.record(ctx, ActionPaymentReceived, severity, outcome,
		ResourcePayment, ev.Payload.Reference(), CategoryPayment, nil,
		"event", string(ev.Type),
		"state", ev.Payload.State,
		"amount", ev.Payload.Amount,
	)
}

// OnBookingConfirmationSent implements plugin.OnBookingConfirmationSent.
func (e *Extension) OnBookingConfirmationSent(ctx context.Context, bookingID, messageID string) error {
	return e.record(ctx, ActionBookingConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceBooking, bookingID, CategoryIntegration, nil,
		"message_id", messageID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
