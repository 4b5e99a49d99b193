// Package notify turns cart events into operator-facing messages.
package notify

import (
	"context"
	"log/slog"

	"github.com/xraph/till/cart"
	"github.com/xraph/till/plugin"
)

var (
	_ plugin.Plugin      = (*LogNotifier)(nil)
	_ plugin.OnCartEvent = (*LogNotifier)(nil)
)

// LogNotifier writes every cart event to a logger.
type LogNotifier struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogNotifier creates a notifier logging at level. A nil logger uses
// slog.Default.
func NewLogNotifier(logger *slog.Logger, level slog.Level) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "cart-notify"), level: level}
}

// Name implements plugin.Plugin.
func (n *LogNotifier) Name() string { return "log-notifier" }

// OnCartEvent implements plugin.OnCartEvent.
func (n *LogNotifier) OnCartEvent(ctx context.Context, ev cart.Event) error {
	attrs := []any{"terminal", ev.TerminalID, "kind", string(ev.Kind)}
	if ev.ItemID != "" {
		attrs = append(attrs, "item", ev.ItemID)
	}
	n.logger.Log(ctx, n.level, ev.Message, attrs...)
	return nil
}
