package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/sentiment"
)

const edgarSubmissionsURL = "https://data.sec.gov/submissions/CIK%s.json"

// RiskKeywords are the phrases scanned for in filing text. Matches are
// stored with the filing for the regulatory view.
var RiskKeywords = []string{
	"material weakness", "restatement", "litigation", "regulatory action",
	"consent order", "enforcement", "investigation", "subpoena",
	"cybersecurity incident", "data breach", "fraud", "money laundering",
	"sanctions", "compliance failure", "credit loss", "loan loss",
	"impairment", "goodwill write-down", "restructuring", "layoff",
	"class action", "settlement", "fine", "penalty", "cease and desist",
}

var filingTypes = []string{"10-K", "10-Q", "8-K"}

// EDGAR collects SEC filings from the submissions API and scans filing
// text for risk language. SEC fair-access policy requires an identifying
// User-Agent and caps request rates, so every call runs through a limiter.
type EDGAR struct {
	client       *http.Client
	limiter      *rate.Limiter
	userAgent    string
	daysBack     int
	fetchText    bool
	maxTextChars int
	now          func() time.Time
}

// NewEDGAR creates an EDGAR collector. ratePerSec caps outbound requests;
// the SEC allows at most 10 per second.
func NewEDGAR(userAgent string, ratePerSec float64, daysBack int, fetchText bool, maxTextChars int) *EDGAR {
	if userAgent == "" {
		userAgent = "repradar/1.0 (ops@repradar.dev)"
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if daysBack <= 0 {
		daysBack = 90
	}
	if maxTextChars <= 0 {
		maxTextChars = 50000
	}
	return &EDGAR{
		client:       &http.Client{Timeout: 60 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), 1),
		userAgent:    userAgent,
		daysBack:     daysBack,
		fetchText:    fetchText,
		maxTextChars: maxTextChars,
		now:          time.Now,
	}
}

func (e *EDGAR) Name() Kind { return KindEDGAR }

// Collect fetches the bank's recent 10-K, 10-Q and 8-K filings inside the
// lookback window. When text fetching is on, each filing's document is
// pulled and scanned for risk keywords and sentiment.
func (e *EDGAR) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	if bk.CIK == "" {
		return Batch{}, fmt.Errorf("edgar: %s has no CIK: %w", bk.Name, ErrUnavailable)
	}

	metas, err := e.fetchRecentFilings(ctx, bk.CIK)
	if err != nil {
		return Batch{}, err
	}

	cutoff := dayOf(e.now()).AddDate(0, 0, -e.daysBack)
	var batch Batch
	for _, meta := range metas {
		if meta.filedDate.Before(cutoff) {
			continue
		}

		filing := Filing{
			BankID:     bk.ID,
			CIK:        bk.CIK,
			FilingType: meta.form,
			FiledDate:  meta.filedDate,
			URL:        meta.url,
		}

		if e.fetchText {
			text, err := e.fetchFilingText(ctx, meta.url)
			if err == nil && text != "" {
				filing.RiskKeywords = extractRiskKeywords(text)
				section := text
				if len(section) > 2000 {
					section = section[:2000]
				}
				res := sentiment.Estimate(section)
				filing.SentimentScore = &res.Polarity
			}
		}

		batch.Filings = append(batch.Filings, filing)
	}
	return batch, nil
}

type filingMeta struct {
	form      string
	filedDate time.Time
	url       string
}

func (e *EDGAR) fetchRecentFilings(ctx context.Context, cik string) ([]filingMeta, error) {
	padded := padCIK(cik)
	body, err := e.get(ctx, fmt.Sprintf(edgarSubmissionsURL, padded))
	if err != nil {
		return nil, err
	}

	var result struct {
		Filings struct {
			Recent struct {
				Form            []string `json:"form"`
				FilingDate      []string `json:"filingDate"`
				AccessionNumber []string `json:"accessionNumber"`
				PrimaryDocument []string `json:"primaryDocument"`
			} `json:"recent"`
		} `json:"filings"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode edgar submissions: %w", err)
	}

	recent := result.Filings.Recent
	var metas []filingMeta
	for i, form := range recent.Form {
		if !slices.Contains(filingTypes, form) {
			continue
		}
		if i >= len(recent.FilingDate) || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			break
		}
		filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		metas = append(metas, filingMeta{
			form:      form,
			filedDate: filed,
			url: fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
				padded, accession, recent.PrimaryDocument[i]),
		})
		if len(metas) == 20 {
			break
		}
	}
	return metas, nil
}

// fetchFilingText pulls the head of a filing document and strips markup.
func (e *EDGAR) fetchFilingText(ctx context.Context, url string) (string, error) {
	body, err := e.get(ctx, url)
	if err != nil {
		return "", err
	}
	if len(body) > e.maxTextChars {
		body = body[:e.maxTextChars]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse filing document: %w", err)
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func (e *EDGAR) get(ctx context.Context, url string) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create edgar request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edgar status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read edgar response: %w", err)
	}
	return body, nil
}

func extractRiskKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range RiskKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func padCIK(cik string) string {
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
