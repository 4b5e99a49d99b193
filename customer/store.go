// Package customer defines club customers and the aggregate deltas that
// bills apply to them.
package customer

import (
	"context"

	"github.com/xraph/till/id"
)

// Store persists customer profiles. Update never touches aggregates; those
// change only through the bill commit operations of store.Store.
type Store interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context, opts ListOpts) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
}

type ListOpts struct {
	Search  string
	Members bool
	Limit   int
	Offset  int
}
