package shop

import (
	"context"
	"strings"
	"time"

	"shop_assistant/internal/applog"
)

// TrackAssistantTurn records assistant usage on the user-history resource.
//
// This is a non-critical side effect: it is dispatched on its own goroutine
// so the turn state machine never blocks on it, and a failure is swallowed
// after a debug log. Callers get no error channel on purpose.
func (c *Client) TrackAssistantTurn(kind string, hidden bool) {
	if c == nil || strings.TrimSpace(c.UserID) == "" {
		return
	}
	payload := map[string]any{
		"user_id":    c.UserID,
		"event_type": "assistant_turn",
		"detail": map[string]any{
			"kind":   strings.TrimSpace(kind),
			"hidden": hidden,
		},
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.doJSON(ctx, "POST", "/api/v1/user-history", payload, nil); err != nil {
			c.Logger.Logf(applog.KindDebug, "history tracking skipped: %v", err)
		}
	}()
}
