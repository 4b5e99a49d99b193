// Package bill defines finalized sale records.
package bill

import (
	"context"
	"time"

	"github.com/xraph/till/id"
)

// Store reads bills. Writes go through the atomic commit operations of
// store.Store so that bill and customer aggregates never diverge.
type Store interface {
	GetBill(ctx context.Context, billID id.BillID) (*Bill, error)
	ListBills(ctx context.Context, opts ListOpts) ([]*Bill, error)
}

type ListOpts struct {
	CustomerID id.CustomerID
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}
