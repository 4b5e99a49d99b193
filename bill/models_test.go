package bill

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestContribution(t *testing.T) {
	b := &Bill{
		Total:               175,
		LoyaltyPointsUsed:   5,
		LoyaltyPointsEarned: 17,
		PlayMinutes:         90,
		MembershipHoursUsed: decimal.RequireFromString("1.5"),
	}

	d := b.Contribution()
	if d.LoyaltyPoints != 12 || d.TotalSpent != 175 || d.PlayMinutes != 90 {
		t.Errorf("unexpected delta %+v", d)
	}
	if !d.MembershipHours.Equal(decimal.RequireFromString("-1.5")) {
		t.Errorf("membership hours: %s", d.MembershipHours)
	}
}

func TestPaymentMethodValid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentCash, PaymentUPI, PaymentSplit, PaymentCredit, PaymentComplimentary} {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if PaymentMethod("cheque").Valid() {
		t.Error("cheque should be invalid")
	}
}
