// Package store defines the persistence contract for till.
//
// Bills and customer aggregates are written together: every method that
// changes a bill also applies the matching customer deltas, and each
// backend commits the pair as one atomic unit.
package store

import (
	"context"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
)

// Store is the unified storage interface for all till entities.
type Store interface {
	// Customer methods
	CreateCustomer(ctx context.Context, c *customer.Customer) error
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error)
	ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error)
	UpdateCustomer(ctx context.Context, c *customer.Customer) error

	// Bill methods
	GetBill(ctx context.Context, billID id.BillID) (*bill.Bill, error)
	ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error)

	// CommitSale inserts b and applies d to b's customer.
	CommitSale(ctx context.Context, b *bill.Bill, d customer.Delta) error

	// ReviseBill replaces the stored bill with next, provided its revision
	// still equals prev.Revision, and applies every adjustment.
	ReviseBill(ctx context.Context, prev, next *bill.Bill, adjustments []customer.Adjustment) error

	// DeleteBill removes b, provided its revision still equals b.Revision,
	// and applies d to b's customer.
	DeleteBill(ctx context.Context, b *bill.Bill, d customer.Delta) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store satisfies the per-entity read interfaces.
var (
	_ customer.Store = Store(nil)
	_ bill.Store     = Store(nil)
)
