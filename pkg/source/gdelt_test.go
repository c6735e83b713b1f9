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

func TestGDELT_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, `"First National" bank sourcelang:english`, q.Get("query"))
		assert.Equal(t, "ArtList", q.Get("mode"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "50", q.Get("maxrecords"))
		assert.Equal(t, "7d", q.Get("timespan"))

		fmt.Fprint(w, `{"articles": [
			{"url": "https://example.com/a", "title": "First National fraud investigation widens", "seendate": "20260213T100000Z", "domain": "example.com"},
			{"url": "https://example.com/b", "title": "", "seendate": "20260213T110000Z"},
			{"url": "", "title": "No link"},
			{"url": "https://example.com/d", "title": "First National opens new branch", "seendate": "not-a-date"}
		]}`)
	}))
	defer srv.Close()

	g := NewGDELT(0, 0)
	g.client = redirectClient(t, srv)
	g.now = func() time.Time { return time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC) }

	batch, err := g.Collect(context.Background(), bank.Bank{ID: 2, Name: "First National"})
	require.NoError(t, err)
	require.Len(t, batch.Signals, 2, "entries without a title or URL are dropped")

	first := batch.Signals[0]
	assert.Equal(t, int64(2), first.BankID)
	assert.Equal(t, SignalNews, first.Source)
	assert.Equal(t, "First National fraud investigation widens", first.Title)
	assert.Equal(t, "https://example.com/a", first.URL)
	assert.Equal(t, time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	require.NotNil(t, first.SentimentScore)
	assert.InDelta(t, -0.4, *first.SentimentScore, 1e-9)
	assert.Equal(t, "negative", first.SentimentLabel)

	second := batch.Signals[1]
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), second.PublishedAt,
		"bad seendate falls back to now")
}

func TestGDELT_Collect_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGDELT(0, 0)
	g.client = redirectClient(t, srv)

	_, err := g.Collect(context.Background(), bank.Bank{ID: 1, Name: "First National"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gdelt status 503")
}
