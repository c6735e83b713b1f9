package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/repradar/pkg/bank"
)

func testNotification() *Notification {
	return &Notification{
		Bank:      bank.Bank{ID: 2, Name: "First National", Ticker: "FNB"},
		Score:     82,
		Threshold: 75,
		Level:     "high",
		Drivers: []Driver{
			{Name: "Regulatory", Score: 91.2},
			{Name: "Media Sentiment", Score: 88},
		},
		Body: "Composite 82 crossed the 75 alert threshold.",
		At:   time.Date(2026, 2, 15, 6, 0, 0, 0, time.UTC),
	}
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(ctx context.Context, n *Notification) error {
	s.calls++
	return s.err
}

func TestManager_HasNotifiers(t *testing.T) {
	assert.False(t, NewManager(nil).HasNotifiers())
	assert.True(t, NewManager([]Notifier{&stubNotifier{name: "x"}}).HasNotifiers())
}

func TestNotificationTitle(t *testing.T) {
	assert.Equal(t, "Risk alert: First National (FNB)", testNotification().Title())
}

func TestManager_Broadcast_JoinsFailures(t *testing.T) {
	bad := &stubNotifier{name: "bad", err: errors.New("boom")}
	good := &stubNotifier{name: "good"}

	m := NewManager([]Notifier{bad, good})
	err := m.Broadcast(context.Background(), testNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, bad.err)
	assert.Contains(t, err.Error(), "bad: boom")

	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls, "one failing destination must not stop the rest")
}

func TestManager_Broadcast_AllDelivered(t *testing.T) {
	a := &stubNotifier{name: "a"}
	b := &stubNotifier{name: "b"}

	m := NewManager([]Notifier{a, b})
	require.NoError(t, m.Broadcast(context.Background(), testNotification()))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestWebhook_Send_Signed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "repradar/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "risk_alert", r.Header.Get("X-RepRadar-Event"))
		_, parseErr := uuid.Parse(r.Header.Get("X-RepRadar-Delivery"))
		assert.NoError(t, parseErr, "delivery id is a uuid")

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		mac := hmac.New(sha256.New, []byte("s3cret"))
		mac.Write(body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, r.Header.Get("X-Signature-256"))

		var n Notification
		assert.NoError(t, json.Unmarshal(body, &n))
		assert.Equal(t, "First National", n.Bank.Name)
		assert.Equal(t, 82.0, n.Score)
		assert.Len(t, n.Drivers, 2)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "s3cret")
	require.NoError(t, wh.Send(context.Background(), testNotification()))
}

func TestWebhook_Send_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Signature-256"))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	require.NoError(t, wh.Send(context.Background(), testNotification()))
}

func TestWebhook_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	err := wh.Send(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook status 500")
}

func TestSlack_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Blocks []struct {
				Type string `json:"type"`
				Text struct {
					Text string `json:"text"`
				} `json:"text"`
				Elements []struct {
					Text string `json:"text"`
				} `json:"elements"`
			} `json:"blocks"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if assert.Len(t, payload.Blocks, 3) {
			assert.Equal(t, "header", payload.Blocks[0].Type)
			assert.Contains(t, payload.Blocks[0].Text.Text, "First National")

			assert.Equal(t, "section", payload.Blocks[1].Type)
			assert.Contains(t, payload.Blocks[1].Text.Text, "*Score:* 82 (threshold 75)")
			assert.Contains(t, payload.Blocks[1].Text.Text, "*Level:* high")

			assert.Equal(t, "context", payload.Blocks[2].Type)
			if assert.Len(t, payload.Blocks[2].Elements, 2) {
				assert.Equal(t, "*Regulatory:* 91.2", payload.Blocks[2].Elements[0].Text)
			}
		}
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	require.NoError(t, s.Send(context.Background(), testNotification()))
}

func TestSlack_Send_NoDriversSkipsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Blocks []json.RawMessage `json:"blocks"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Len(t, payload.Blocks, 2)
	}))
	defer srv.Close()

	n := testNotification()
	n.Drivers = nil

	s := NewSlack(srv.URL)
	require.NoError(t, s.Send(context.Background(), n))
}

func TestSlack_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	err := s.Send(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack webhook status 404")
}

func TestDiscord_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Embeds []struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				Color       int    `json:"color"`
				Timestamp   string `json:"timestamp"`
				Fields      []struct {
					Name   string `json:"name"`
					Value  string `json:"value"`
					Inline bool   `json:"inline"`
				} `json:"fields"`
			} `json:"embeds"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if assert.Len(t, payload.Embeds, 1) {
			embed := payload.Embeds[0]
			assert.Contains(t, embed.Title, "First National")
			assert.Contains(t, embed.Description, "**Score:** 82 (threshold 75)")
			assert.Equal(t, 0xCC2936, embed.Color)
			assert.Equal(t, "2026-02-15T06:00:00Z", embed.Timestamp,
				"embed timestamp is the evaluation time, not the send time")
			if assert.Len(t, embed.Fields, 2) {
				assert.Equal(t, "Regulatory", embed.Fields[0].Name)
				assert.Equal(t, "91.2", embed.Fields[0].Value)
				assert.True(t, embed.Fields[0].Inline)
			}
		}
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	require.NoError(t, d.Send(context.Background(), testNotification()))
}

func TestLevelColor(t *testing.T) {
	assert.Equal(t, 0xCC2936, levelColor("high"))
	assert.Equal(t, 0xFF6600, levelColor("medium"))
	assert.Equal(t, 0xF5C518, levelColor("low"))
	assert.Equal(t, 0xF5C518, levelColor(""))
}
