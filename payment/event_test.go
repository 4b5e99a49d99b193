package payment

import "testing"

func TestDedupeKey(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"Merchant order", Event{Type: OrderCompleted, Payload: Payload{MerchantOrderID: "M-1", OrderID: "O-1", State: "COMPLETED"}}, "checkout.order.completed:M-1:COMPLETED"},
		{"Gateway order", Event{Type: RefundFailed, Payload: Payload{OrderID: "O-1", State: "FAILED"}}, "pg.refund.failed:O-1:FAILED"},
		{"No order", Event{Type: RefundFailed, Payload: Payload{State: "FAILED"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.DedupeKey(); got != tt.want {
				t.Errorf("DedupeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
