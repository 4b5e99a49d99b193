// Package cart holds the unbilled working set of a terminal: line items plus
// the discount, loyalty redemption and split tender chosen for the sale.
//
// Cart methods never fail and never validate numbers; boundary validation is
// the caller's job. Every method reports the Event it produced and whether the
// cart actually changed.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

// New returns an empty cart for a terminal.
func New(terminalID string) *Cart {
	return &Cart{
		TerminalID: terminalID,
		Discount:   NoDiscount(),
	}
}

// AddItem adds item or merges it into an existing line with the same ID and
// kind. A session replaces the existing session outright; a product has its
// quantity summed and is re-priced at the existing unit price.
func (c *Cart) AddItem(item LineItem) (Event, bool) {
	if item.Kind == KindSession {
		item.Quantity = 1
	}

	for i, line := range c.Lines {
		if line.ID != item.ID || line.Kind != item.Kind {
			continue
		}

		if item.Kind == KindSession {
			item.Total = item.UnitPrice
			c.Lines[i] = item
			return c.event(EventItemUpdated, item.ID, "Updated %s", item.Name), true
		}

		line.Quantity += item.Quantity
		line.Total = line.UnitPrice.Mul(line.Quantity)
		c.Lines[i] = line
		return c.event(EventItemUpdated, line.ID, "Updated %s quantity to %d", line.Name, line.Quantity), true
	}

	item.Total = item.UnitPrice.Mul(item.Quantity)
	c.Lines = append(c.Lines, item)
	return c.event(EventItemAdded, item.ID, "Added %s to cart", item.Name), true
}

// RemoveItem deletes every line with the given ID, whatever its kind.
func (c *Cart) RemoveItem(itemID string) (Event, bool) {
	kept := c.Lines[:0]
	var removed *LineItem
	for _, line := range c.Lines {
		if line.ID == itemID {
			if removed == nil {
				l := line
				removed = &l
			}
			continue
		}
		kept = append(kept, line)
	}
	c.Lines = kept

	if removed == nil {
		return Event{}, false
	}
	return c.event(EventItemRemoved, itemID, "Removed %s from cart", removed.Name), true
}

// UpdateItemQuantity sets a product line's quantity. Session lines are left
// alone and a quantity of zero or less removes the item.
func (c *Cart) UpdateItemQuantity(itemID string, quantity int64) (Event, bool) {
	idx := c.findProduct(itemID)
	if idx < 0 {
		return Event{}, false
	}
	if quantity <= 0 {
		return c.RemoveItem(itemID)
	}

	line := c.Lines[idx]
	line.Quantity = quantity
	line.Total = line.UnitPrice.Mul(quantity)
	c.Lines[idx] = line
	return c.event(EventQuantityUpdated, itemID, "Updated %s quantity to %d", line.Name, quantity), true
}

// Clear empties the cart and resets discount, loyalty redemption and split
// tender. The selected customer is kept.
func (c *Cart) Clear() (Event, bool) {
	c.Lines = nil
	c.Discount = NoDiscount()
	c.LoyaltyPointsUsed = 0
	c.Split = SplitPayment{}
	return c.event(EventCartCleared, "", "Cart cleared"), true
}

// SetDiscount overwrites the discount selection.
func (c *Cart) SetDiscount(amount decimal.Decimal, kind DiscountKind) (Event, bool) {
	c.Discount = Discount{Amount: amount, Kind: kind}
	if kind == DiscountPercentage {
		return c.event(EventDiscountApplied, "", "Discount of %s%% applied", amount.String()), true
	}
	return c.event(EventDiscountApplied, "", "Discount of %s applied", amount.String()), true
}

// SetLoyaltyPointsUsed overwrites the loyalty redemption.
func (c *Cart) SetLoyaltyPointsUsed(points int64) (Event, bool) {
	c.LoyaltyPointsUsed = points
	return c.event(EventLoyaltyApplied, "", "%d loyalty points applied", points), true
}

// SetSplitPayment overwrites the split tender.
func (c *Cart) SetSplitPayment(split SplitPayment) (Event, bool) {
	c.Split = split
	if !split.Enabled {
		return c.event(EventSplitUpdated, "", "Split payment disabled"), true
	}
	return c.event(EventSplitUpdated, "", "Split payment set: cash %s, UPI %s", split.Cash, split.UPI), true
}

// SelectCustomer attaches a customer to the sale.
func (c *Cart) SelectCustomer(customerID id.CustomerID) (Event, bool) {
	c.CustomerID = customerID
	if customerID.IsNil() {
		return c.event(EventCustomerSelected, "", "Customer cleared"), true
	}
	return c.event(EventCustomerSelected, "", "Customer %s selected", customerID), true
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []LineItem {
	return append([]LineItem(nil), c.Lines...)
}

// Snapshot returns a deep copy of the cart.
func (c *Cart) Snapshot() *Cart {
	cp := *c
	cp.Lines = append([]LineItem(nil), c.Lines...)
	return &cp
}

// Subtotal sums the line totals.
func (c *Cart) Subtotal() types.Money {
	var total types.Money
	for _, line := range c.Lines {
		total = total.Add(line.Total)
	}
	return total
}

// findProduct returns the index of the non-session line with itemID, or -1.
func (c *Cart) findProduct(itemID string) int {
	for i, line := range c.Lines {
		if line.ID == itemID && line.Kind != KindSession {
			return i
		}
	}
	return -1
}

func (c *Cart) event(kind EventKind, itemID, format string, args ...any) Event {
	return Event{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		TerminalID: c.TerminalID,
		ItemID:     itemID,
	}
}
