package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/sentiment"
)

const gdeltDocURL = "https://api.gdeltproject.org/api/v2/doc/doc"

// GDELT collects global press coverage from the GDELT 2.0 document API.
// No API key required, so it keeps the media component fed when NewsAPI
// is not configured.
type GDELT struct {
	client     *http.Client
	maxRecords int
	daysBack   int
	now        func() time.Time
}

// NewGDELT creates a GDELT collector.
func NewGDELT(maxRecords, daysBack int) *GDELT {
	if maxRecords <= 0 {
		maxRecords = 50
	}
	if daysBack <= 0 {
		daysBack = 7
	}
	return &GDELT{
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRecords: maxRecords,
		daysBack:   daysBack,
		now:        time.Now,
	}
}

func (g *GDELT) Name() Kind { return KindGDELT }

// Collect fetches articles mentioning the bank and scores their titles.
func (g *GDELT) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	articles, err := g.fetchArticles(ctx, fmt.Sprintf("%q bank", bk.Name))
	if err != nil {
		return Batch{}, err
	}

	now := g.now().UTC()
	var batch Batch
	for _, a := range articles {
		if a.URL == "" || a.Title == "" {
			continue
		}

		res := sentiment.Estimate(a.Title)

		published := now
		if t, err := time.Parse("20060102T150405Z", a.SeenDate); err == nil {
			published = t.UTC()
		}

		batch.Signals = append(batch.Signals, Signal{
			BankID:         bk.ID,
			Source:         SignalNews,
			Title:          a.Title,
			URL:            a.URL,
			PublishedAt:    published,
			SentimentScore: &res.Polarity,
			SentimentLabel: string(res.Label),
			CollectedAt:    now,
		})
	}
	return batch, nil
}

type gdeltArticle struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	SeenDate string `json:"seendate"`
	Domain   string `json:"domain"`
}

func (g *GDELT) fetchArticles(ctx context.Context, query string) ([]gdeltArticle, error) {
	params := url.Values{}
	params.Set("query", query+" sourcelang:english")
	params.Set("mode", "ArtList")
	params.Set("format", "json")
	params.Set("maxrecords", strconv.Itoa(g.maxRecords))
	params.Set("timespan", fmt.Sprintf("%dd", g.daysBack))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gdeltDocURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create gdelt request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch gdelt articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gdelt status %d", resp.StatusCode)
	}

	var result struct {
		Articles []gdeltArticle `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode gdelt response: %w", err)
	}
	return result.Articles, nil
}
