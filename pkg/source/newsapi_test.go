package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/repradar/pkg/bank"
)

func TestNewsAPI_Collect_NoKey(t *testing.T) {
	n := NewNewsAPI("", 0, 0)
	_, err := n.Collect(context.Background(), bank.Bank{ID: 1, Name: "First National"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no API key")
}

func TestNewsAPI_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/everything", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, `"First National" OR "FNB" bank`, q.Get("q"))
		assert.Equal(t, "2026-02-08", q.Get("from"))
		assert.Equal(t, "publishedAt", q.Get("sortBy"))
		assert.Equal(t, "50", q.Get("pageSize"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "test-key", q.Get("apiKey"))

		fmt.Fprint(w, `{"status": "ok", "articles": [
			{"title": "First National posts record profit", "description": "Strong growth reported", "url": "https://example.com/a", "publishedAt": "2026-02-14T08:00:00Z"},
			{"title": "No link here", "description": "dropped"},
			{"title": "First National branch notes", "url": "https://example.com/c"}
		]}`)
	}))
	defer srv.Close()

	n := NewNewsAPI("test-key", 0, 0)
	n.client = redirectClient(t, srv)
	n.now = func() time.Time { return time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC) }

	batch, err := n.Collect(context.Background(), bank.Bank{ID: 3, Name: "First National", Ticker: "FNB"})
	require.NoError(t, err)
	require.Len(t, batch.Signals, 2, "the article without a URL is dropped")

	first := batch.Signals[0]
	assert.Equal(t, int64(3), first.BankID)
	assert.Equal(t, SignalNews, first.Source)
	assert.Equal(t, "First National posts record profit", first.Title)
	assert.Equal(t, "Strong growth reported", first.Content)
	assert.Equal(t, "https://example.com/a", first.URL)
	assert.Equal(t, time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC), first.PublishedAt)
	require.NotNil(t, first.SentimentScore)
	assert.InDelta(t, 0.6, *first.SentimentScore, 1e-9, "profit, strong and growth each count")
	assert.Equal(t, "positive", first.SentimentLabel)
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), first.CollectedAt)

	second := batch.Signals[1]
	assert.Equal(t, second.CollectedAt, second.PublishedAt, "missing timestamp falls back to now")
	require.NotNil(t, second.SentimentScore)
	assert.Zero(t, *second.SentimentScore)
	assert.Equal(t, "neutral", second.SentimentLabel)
}

func TestNewsAPI_Collect_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status": "error", "code": "apiKeyInvalid", "message": "Your API key is invalid"}`)
	}))
	defer srv.Close()

	n := NewNewsAPI("bad-key", 0, 0)
	n.client = redirectClient(t, srv)

	_, err := n.Collect(context.Background(), bank.Bank{ID: 1, Name: "First National", Ticker: "FNB"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newsapi status 401")
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}
