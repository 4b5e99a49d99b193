package till

import (
	"context"

	"github.com/xraph/till/cart"
)

// notify queues ev for OnCartEvent plugins without blocking the caller.
// Events are dropped, with a warning, when the queue is full.
func (t *Till) notify(ev cart.Event) {
	if !t.plugins.HasCartListeners() {
		return
	}
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("cart event dropped: notify buffer full",
			"terminal", ev.TerminalID,
			"kind", ev.Kind,
		)
	}
}

// notifyWorker delivers queued cart events until Stop, then drains what is
// left.
func (t *Till) notifyWorker(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopChan:
			for {
				select {
				case ev := <-t.events:
					t.plugins.EmitCartEvent(ctx, ev)
				default:
					return
				}
			}

		case ev := <-t.events:
			t.plugins.EmitCartEvent(ctx, ev)
		}
	}
}
