package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/types"
)

func TestRate(t *testing.T) {
	tests := []struct {
		name  string
		rate  Rate
		total types.Money
		want  int64
	}{
		{"One per hundred", Rate{Points: 1, Per: 100}, 175, 1},
		{"Exact multiple", Rate{Points: 2, Per: 50}, 200, 8},
		{"Below threshold", Rate{Points: 1, Per: 100}, 99, 0},
		{"Zero total", Rate{Points: 1, Per: 100}, 0, 0},
		{"Unconfigured", Rate{}, 10_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.PointsEarned(tt.total); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNoEarnAndNoDeduction(t *testing.T) {
	if NoEarn.PointsEarned(1_000_000) != 0 {
		t.Error("NoEarn awarded points")
	}
	if !NoDeduction.HoursFor(600).IsZero() {
		t.Error("NoDeduction charged hours")
	}
}

func TestProportional(t *testing.T) {
	p := Proportional{Ratio: decimal.NewFromInt(1)}
	if got := p.HoursFor(90); !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("90 minutes: got %s", got)
	}
	if got := p.HoursFor(50); !got.Equal(decimal.RequireFromString("0.83")) {
		t.Errorf("50 minutes: got %s", got)
	}

	double := Proportional{Ratio: decimal.NewFromInt(2)}
	if got := double.HoursFor(30); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("ratio 2: got %s", got)
	}
}

func TestDeductCapsAtBalance(t *testing.T) {
	p := Proportional{Ratio: decimal.NewFromInt(1)}

	if got := Deduct(p, 120, decimal.NewFromInt(5)); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("got %s, want 2", got)
	}
	if got := Deduct(p, 120, decimal.RequireFromString("0.5")); !got.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("got %s, want 0.5", got)
	}
	if got := Deduct(p, 120, decimal.Zero); !got.IsZero() {
		t.Errorf("empty balance: got %s", got)
	}
}
