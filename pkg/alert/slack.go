package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Slack sends notifications to a Slack incoming webhook as a Block Kit
// message: a header naming the bank, a section with score, threshold and
// level, and a context row listing the driving components.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": "⚠️ " + n.Title(),
			},
		},
		{
			"type": "section",
			"text": mrkdwn(fmt.Sprintf("*Score:* %.0f (threshold %.0f) | *Level:* %s\n%s",
				n.Score, n.Threshold, n.Level, n.Body)),
		},
	}

	if len(n.Drivers) > 0 {
		elements := make([]map[string]any, 0, len(n.Drivers))
		for _, d := range n.Drivers {
			elements = append(elements, mrkdwn(fmt.Sprintf("*%s:* %.1f", d.Name, d.Score)))
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}

	payload := map[string]any{"blocks": blocks}
	return postJSON(ctx, s.client, "slack webhook", s.webhookURL, payload, nil)
}

func mrkdwn(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}
