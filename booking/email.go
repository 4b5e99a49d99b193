package booking

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
)

//go:generate templ generate -f email.templ

// Render returns the email HTML for c.
func Render(ctx context.Context, c Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := Email(c).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("booking: render email: %w", err)
	}
	return buf.String(), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
