// Package alert fans threshold notifications out to chat and webhook
// destinations. Senders are fire-and-forget: delivery state lives with the
// caller, which marks a score row alerted only after Broadcast succeeds.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/repradar/pkg/bank"
)

// Driver is one scoring component named in an alert, highest first.
type Driver struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Notification describes one bank crossing its alert threshold.
type Notification struct {
	Bank      bank.Bank `json:"bank"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
	Level     string    `json:"level"`
	Drivers   []Driver  `json:"drivers"`
	Body      string    `json:"body"`
	At        time.Time `json:"at"`
}

// Title renders the one-line headline the chat senders share.
func (n *Notification) Title() string {
	return fmt.Sprintf("Risk alert: %s (%s)", n.Bank.Name, n.Bank.Ticker)
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers. Failures
// are joined so one bad destination does not mask the others.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// postJSON marshals payload and POSTs it to url, treating any 2xx status as
// delivered. dest names the destination in error messages. decorate, when
// non-nil, runs before the request is sent and receives the marshaled body
// so senders can sign or header-stamp the exact bytes on the wire.
func postJSON(ctx context.Context, client *http.Client, dest, url string, payload any, decorate func(*http.Request, []byte)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", dest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", dest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req, body)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", dest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", dest, resp.StatusCode)
	}
	return nil
}
