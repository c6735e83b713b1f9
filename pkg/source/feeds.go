package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/repradar/internal/cache"
	"github.com/elonfeng/repradar/pkg/bank"
)

// Feed collects enforcement press releases from an agency RSS/Atom feed.
// The FDIC and the Federal Reserve publish actions through press feeds
// rather than a search API, so entries are matched to banks by name. The
// raw feed body is cached so one fetch serves every tracked bank within
// the TTL window.
type Feed struct {
	client *http.Client
	parser *gofeed.Parser
	kind   Kind
	agency string
	url    string
	cache  *cache.Cache
	now    func() time.Time
}

// NewFeed creates a press feed collector for one agency. The collector
// kind is the lowercased agency name.
func NewFeed(agency, url string, c *cache.Cache) *Feed {
	return &Feed{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		kind:   Kind(strings.ToLower(agency)),
		agency: agency,
		url:    url,
		cache:  c,
		now:    time.Now,
	}
}

func (f *Feed) Name() Kind { return f.kind }

func (f *Feed) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	feed, err := f.load(ctx)
	if err != nil {
		return Batch{}, err
	}
	if len(feed.Items) == 0 {
		return Batch{}, fmt.Errorf("%s feed is empty: %w", f.agency, ErrUnavailable)
	}

	var batch Batch
	for _, entry := range feed.Items {
		if !matchesBank(entry.Title+" "+entry.Description, bk) {
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}
		if id == "" {
			continue
		}

		published := f.now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		actionType := classifyActionType(entry.Title)
		batch.Actions = append(batch.Actions, EnforcementAction{
			ActionID:      fmt.Sprintf("%s:%s", f.kind, id),
			BankID:        bk.ID,
			Agency:        f.agency,
			ActionDate:    dayOf(published),
			ActionType:    actionType,
			Description:   truncate(entry.Description, 500),
			PenaltyAmount: extractPenaltyAmount(entry.Title + " " + entry.Description),
			Severity:      determineSeverity(actionType),
		})
	}
	return batch, nil
}

// load returns the parsed feed, reusing the cached body when the feed was
// fetched recently for another bank.
func (f *Feed) load(ctx context.Context) (*gofeed.Feed, error) {
	if f.cache != nil {
		if body, ok := f.cache.Get(f.url); ok {
			return f.parse(body)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s feed request: %w", f.agency, err)
	}
	req.Header.Set("User-Agent", "repradar/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", f.agency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s feed status %d", f.agency, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s feed: %w", f.agency, err)
	}

	feed, err := f.parse(body)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Set(f.url, body)
	}
	return feed, nil
}

func (f *Feed) parse(body []byte) (*gofeed.Feed, error) {
	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s feed: %w", f.agency, errors.Join(err, ErrUnavailable))
	}
	return feed, nil
}

// matchesBank reports whether free text mentions the bank under any of
// its known names.
func matchesBank(text string, bk bank.Bank) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(bk.Name)) {
		return true
	}
	for _, alias := range bk.Aliases() {
		if strings.Contains(lower, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
