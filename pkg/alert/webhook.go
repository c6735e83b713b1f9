package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Webhook delivers the raw Notification JSON to an operator-supplied
// endpoint, for wiring alerts into ticketing or paging systems the chat
// senders do not cover. With a secret configured, each delivery carries an
// HMAC-SHA256 signature the receiver verifies by recomputing it over the
// exact request body.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

// NewWebhook creates a generic webhook notifier. An empty secret disables
// signing.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Send posts the notification. Receivers dispatch on the X-RepRadar-Event
// header and can deduplicate redeliveries on the delivery id.
func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	return postJSON(ctx, w.client, "webhook", w.url, n, func(req *http.Request, body []byte) {
		req.Header.Set("User-Agent", "repradar/1.0")
		req.Header.Set("X-RepRadar-Event", "risk_alert")
		req.Header.Set("X-RepRadar-Delivery", uuid.NewString())
		if w.secret != "" {
			req.Header.Set("X-Signature-256", "sha256="+w.sign(body))
		}
	})
}

func (w *Webhook) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
