package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till/cart"
)

func TestLogNotifierWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLogNotifier(logger, slog.LevelInfo)

	err := n.OnCartEvent(context.Background(), cart.Event{
		Kind:       cart.EventItemAdded,
		Message:    "Coke added to cart",
		TerminalID: "t1",
		ItemID:     "coke",
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Coke added to cart", line["msg"])
	assert.Equal(t, "t1", line["terminal"])
	assert.Equal(t, "item_added", line["kind"])
	assert.Equal(t, "coke", line["item"])
	assert.Equal(t, "cart-notify", line["component"])
}

func TestLogNotifierRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	n := NewLogNotifier(logger, slog.LevelDebug)

	require.NoError(t, n.OnCartEvent(context.Background(), cart.Event{Kind: cart.EventCartCleared, Message: "Cart cleared"}))
	assert.Empty(t, buf.String())
}
