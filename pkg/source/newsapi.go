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

const newsAPIURL = "https://newsapi.org/v2/everything"

// NewsAPI collects press coverage from the NewsAPI everything endpoint.
// Requires an API key.
type NewsAPI struct {
	client   *http.Client
	apiKey   string
	pageSize int
	daysBack int
	now      func() time.Time
}

// NewNewsAPI creates a NewsAPI collector.
func NewNewsAPI(apiKey string, pageSize, daysBack int) *NewsAPI {
	if pageSize <= 0 {
		pageSize = 50
	}
	if daysBack <= 0 {
		daysBack = 7
	}
	return &NewsAPI{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiKey:   apiKey,
		pageSize: pageSize,
		daysBack: daysBack,
		now:      time.Now,
	}
}

func (n *NewsAPI) Name() Kind { return KindNewsAPI }

// Collect fetches recent articles mentioning the bank and scores each one.
func (n *NewsAPI) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	if n.apiKey == "" {
		return Batch{}, fmt.Errorf("newsapi: no API key configured: %w", ErrUnavailable)
	}

	query := fmt.Sprintf("%q OR %q bank", bk.Name, bk.Ticker)
	articles, err := n.fetchArticles(ctx, query)
	if err != nil {
		return Batch{}, err
	}

	now := n.now().UTC()
	var batch Batch
	for _, a := range articles {
		if a.URL == "" {
			continue
		}

		text := a.Title
		if a.Description != "" {
			text = a.Title + ". " + a.Description
		}
		res := sentiment.Estimate(text)

		published := a.PublishedAt
		if published.IsZero() {
			published = now
		}

		batch.Signals = append(batch.Signals, Signal{
			BankID:         bk.ID,
			Source:         SignalNews,
			Title:          a.Title,
			Content:        a.Description,
			URL:            a.URL,
			PublishedAt:    published.UTC(),
			SentimentScore: &res.Polarity,
			SentimentLabel: string(res.Label),
			CollectedAt:    now,
		})
	}
	return batch, nil
}

type newsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

func (n *NewsAPI) fetchArticles(ctx context.Context, query string) ([]newsArticle, error) {
	from := n.now().UTC().AddDate(0, 0, -n.daysBack)

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(n.pageSize))
	params.Set("language", "en")
	params.Set("apiKey", n.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, newsAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create newsapi request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch newsapi articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("newsapi status %d: %s %s", resp.StatusCode, errResp.Code, errResp.Message)
	}

	var result struct {
		Articles []newsArticle `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode newsapi response: %w", err)
	}
	return result.Articles, nil
}
