package cart

import (
	"context"
	"errors"
)

// ErrNoSnapshot is returned by LoadCart when a terminal has no saved cart.
var ErrNoSnapshot = errors.New("cart: no snapshot")

// SnapshotStore saves and restores carts per terminal so an in-progress sale
// survives a process restart.
type SnapshotStore interface {
	SaveCart(ctx context.Context, c *Cart) error
	LoadCart(ctx context.Context, terminalID string) (*Cart, error)
	DeleteCart(ctx context.Context, terminalID string) error
}
