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

const defaultCFPBBaseURL = "https://www.consumerfinance.gov/data-research/consumer-complaints/search/api/v1/"

// CFPB collects consumer complaints from the CFPB public complaint
// database. No authentication required.
type CFPB struct {
	client   *http.Client
	baseURL  string
	pageSize int
	daysBack int
	now      func() time.Time
}

// NewCFPB creates a CFPB complaint collector.
func NewCFPB(baseURL string, pageSize, daysBack int) *CFPB {
	if baseURL == "" {
		baseURL = defaultCFPBBaseURL
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	if daysBack <= 0 {
		daysBack = 90
	}
	return &CFPB{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		pageSize: pageSize,
		daysBack: daysBack,
		now:      time.Now,
	}
}

func (c *CFPB) Name() Kind { return KindCFPB }

// Collect fetches complaints under each of the bank's registered CFPB
// company names. A failed fetch for one name variant is skipped so the
// others still land; the error surfaces only when every variant failed.
func (c *CFPB) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	var batch Batch
	seen := make(map[string]bool)
	var lastErr error

	for _, name := range bk.CFPBNames() {
		records, err := c.fetchComplaints(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}
		for _, raw := range records {
			complaint, ok := c.toComplaint(raw, bk.ID)
			if !ok || seen[complaint.ComplaintID] {
				continue
			}
			seen[complaint.ComplaintID] = true
			batch.Complaints = append(batch.Complaints, complaint)
		}
	}

	if len(batch.Complaints) == 0 && lastErr != nil {
		return Batch{}, lastErr
	}
	return batch, nil
}

type cfpbComplaint struct {
	ComplaintID      flexID `json:"complaint_id"`
	DateReceived     string `json:"date_received"`
	Product          string `json:"product"`
	SubProduct       string `json:"sub_product"`
	Issue            string `json:"issue"`
	SubIssue         string `json:"sub_issue"`
	Narrative        string `json:"complaint_what_happened"`
	CompanyResponse  string `json:"company_response"`
	Timely           string `json:"timely"`
	ConsumerDisputed string `json:"consumer_disputed"`
}

func (c *CFPB) fetchComplaints(ctx context.Context, company string) ([]cfpbComplaint, error) {
	to := c.now().UTC()
	from := to.AddDate(0, 0, -c.daysBack)

	params := url.Values{}
	params.Set("company", company)
	params.Set("date_received_min", from.Format("2006-01-02"))
	params.Set("date_received_max", to.Format("2006-01-02"))
	params.Set("size", strconv.Itoa(c.pageSize))
	params.Set("sort", "created_date_desc")
	params.Set("no_aggs", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create cfpb request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cfpb complaints for %s: %w", company, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cfpb status %d for %s", resp.StatusCode, company)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source cfpbComplaint `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode cfpb response: %w", err)
	}

	out := make([]cfpbComplaint, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (c *CFPB) toComplaint(raw cfpbComplaint, bankID int64) (Complaint, bool) {
	id := string(raw.ComplaintID)
	if id == "" {
		return Complaint{}, false
	}

	received := dayOf(c.now())
	if len(raw.DateReceived) >= 10 {
		if d, err := time.Parse("2006-01-02", raw.DateReceived[:10]); err == nil {
			received = d
		}
	}

	complaint := Complaint{
		ComplaintID:      id,
		BankID:           bankID,
		DateReceived:     received,
		Product:          raw.Product,
		SubProduct:       raw.SubProduct,
		Issue:            raw.Issue,
		SubIssue:         raw.SubIssue,
		Narrative:        raw.Narrative,
		CompanyResponse:  raw.CompanyResponse,
		TimelyResponse:   raw.Timely == "Yes",
		ConsumerDisputed: raw.ConsumerDisputed == "Yes",
	}
	if raw.Narrative != "" {
		res := sentiment.Estimate(raw.Narrative)
		complaint.SentimentScore = &res.Polarity
	}
	return complaint, true
}

// flexID tolerates upstream APIs that serve identifiers as either JSON
// strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
