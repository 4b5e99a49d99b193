package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

func TestBillModelRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	b := &bill.Bill{
		Entity:     types.Entity{CreatedAt: created, UpdatedAt: created},
		ID:         id.NewBillID(),
		CustomerID: id.NewCustomerID(),
		TerminalID: "t2",
		Items: []cart.LineItem{
			{ID: "cola", Kind: cart.KindProduct, Name: "Cola", UnitPrice: 50, Quantity: 2, Total: 100},
			{ID: "table-1", Kind: cart.KindSession, Name: "Table 1", UnitPrice: 200, Quantity: 1, Total: 200, PlayMinutes: 45},
		},
		Subtotal:            300,
		DiscountAmount:      30,
		DiscountKind:        cart.DiscountPercentage,
		DiscountRate:        decimal.NewFromInt(10),
		Total:               270,
		PaymentMethod:       bill.PaymentSplit,
		Status:              bill.StatusCompleted,
		IsSplit:             true,
		SplitCash:           170,
		SplitUPI:            100,
		PlayMinutes:         45,
		MembershipHoursUsed: decimal.RequireFromString("0.75"),
	}

	m, err := toBillModel(b)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fromBillModel(m)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != b.ID || got.CustomerID != b.CustomerID || got.Total != 270 {
		t.Errorf("identity or totals lost: %+v", got)
	}
	if len(got.Items) != 2 || got.Items[1].PlayMinutes != 45 || got.Items[0].Kind != cart.KindProduct {
		t.Errorf("items lost: %+v", got.Items)
	}
	if !got.DiscountRate.Equal(b.DiscountRate) || !got.MembershipHoursUsed.Equal(b.MembershipHoursUsed) {
		t.Errorf("decimals lost: rate %s hours %s", got.DiscountRate, got.MembershipHoursUsed)
	}
	if !got.IsSplit || got.SplitCash+got.SplitUPI != got.Total {
		t.Errorf("split lost: %+v", got)
	}
}

func TestCustomerModelZeroHours(t *testing.T) {
	c := &customer.Customer{ID: id.NewCustomerID(), Name: "Asha"}
	m, err := toCustomerModel(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fromCustomerModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if !got.MembershipHoursLeft.IsZero() {
		t.Errorf("hours = %s, want 0", got.MembershipHoursLeft)
	}
}

func TestIncUpdate(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	doc, err := incUpdate(customer.Delta{
		LoyaltyPoints:   -3,
		TotalSpent:      -120,
		PlayMinutes:     30,
		MembershipHours: decimal.RequireFromString("-0.5"),
	}, at)
	if err != nil {
		t.Fatal(err)
	}

	inc, ok := doc["$inc"].(bson.M)
	if !ok {
		t.Fatalf("missing $inc: %v", doc)
	}
	if inc["loyalty_points"] != int64(-3) || inc["total_spent"] != int64(-120) || inc["total_play_minutes"] != int64(30) {
		t.Errorf("unexpected $inc: %v", inc)
	}
	hours, ok := inc["membership_hours_left"].(bson.Decimal128)
	if !ok || hours.String() != "-0.5" {
		t.Errorf("hours = %v", inc["membership_hours_left"])
	}
	if set := doc["$set"].(bson.M); set["updated_at"] != at {
		t.Errorf("updated_at not set")
	}
}
