// Package plugin provides an extensible plugin system for till.
// Plugins can hook into cart, sale and bill lifecycle events to extend
// functionality without gating the core flow.
package plugin

import (
	"context"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/payment"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. t is the *till.Till.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t any) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Cart hooks
// ──────────────────────────────────────────────────

// OnCartEvent receives operator notifications for cart mutations. Calls are
// asynchronous and may be dropped under load.
type OnCartEvent interface {
	Plugin
	OnCartEvent(ctx context.Context, ev cart.Event) error
}

// ──────────────────────────────────────────────────
// Sale and bill hooks
// ──────────────────────────────────────────────────

// OnSaleCompleted is called after a bill and its customer delta commit.
type OnSaleCompleted interface {
	Plugin
	OnSaleCompleted(ctx context.Context, b *bill.Bill) error
}

// OnSaleFailed is called when a checkout is rejected or fails to commit.
type OnSaleFailed interface {
	Plugin
	OnSaleFailed(ctx context.Context, terminalID string, err error) error
}

// OnBillRevised is called after a revision commits.
type OnBillRevised interface {
	Plugin
	OnBillRevised(ctx context.Context, prev, next *bill.Bill) error
}

// OnBillDeleted is called after a bill is removed and its contribution reversed.
type OnBillDeleted interface {
	Plugin
	OnBillDeleted(ctx context.Context, b *bill.Bill) error
}

// ──────────────────────────────────────────────────
// Customer hooks
// ──────────────────────────────────────────────────

// OnCustomerCreated is called when a customer is registered.
type OnCustomerCreated interface {
	Plugin
	OnCustomerCreated(ctx context.Context, c *customer.Customer) error
}

// ──────────────────────────────────────────────────
// External integration hooks
// ──────────────────────────────────────────────────

// OnPaymentEvent is called for each verified, first-seen gateway notification.
type OnPaymentEvent interface {
	Plugin
	OnPaymentEvent(ctx context.Context, ev *payment.Event) error
}

// OnBookingConfirmationSent is called after a booking email is accepted by
// the mail provider.
type OnBookingConfirmationSent interface {
	Plugin
	OnBookingConfirmationSent(ctx context.Context, bookingID, messageID string) error
}
