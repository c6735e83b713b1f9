package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Discord sends notifications to a Discord webhook as a single embed. The
// embed color tracks the risk level and each driving component becomes an
// inline field.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	embed := map[string]any{
		"title": "⚠️ " + n.Title(),
		"description": fmt.Sprintf("**Score:** %.0f (threshold %.0f) | **Level:** %s\n\n%s",
			n.Score, n.Threshold, n.Level, n.Body),
		"color":     levelColor(n.Level),
		"timestamp": n.At.UTC().Format(time.RFC3339),
		"footer":    map[string]any{"text": "repradar"},
	}

	if len(n.Drivers) > 0 {
		fields := make([]map[string]any, 0, len(n.Drivers))
		for _, dr := range n.Drivers {
			fields = append(fields, map[string]any{
				"name":   dr.Name,
				"value":  fmt.Sprintf("%.1f", dr.Score),
				"inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]any{"embeds": []map[string]any{embed}}
	return postJSON(ctx, d.client, "discord webhook", d.webhookURL, payload, nil)
}

func levelColor(level string) int {
	switch level {
	case "high":
		return 0xCC2936
	case "medium":
		return 0xFF6600
	default:
		return 0xF5C518
	}
}
