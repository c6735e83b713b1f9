package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/repradar/pkg/bank"
)

func TestNewCFPB_Defaults(t *testing.T) {
	c := NewCFPB("", 0, 0)
	assert.Equal(t, defaultCFPBBaseURL, c.baseURL)
	assert.Equal(t, 200, c.pageSize)
	assert.Equal(t, 90, c.daysBack)

	c = NewCFPB("http://localhost:1", 25, 14)
	assert.Equal(t, "http://localhost:1", c.baseURL)
	assert.Equal(t, 25, c.pageSize)
	assert.Equal(t, 14, c.daysBack)
}

func TestCFPB_Collect(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "2026-01-16", q.Get("date_received_min"))
		assert.Equal(t, "2026-02-15", q.Get("date_received_max"))
		assert.Equal(t, "10", q.Get("size"))
		assert.Equal(t, "created_date_desc", q.Get("sort"))
		assert.Equal(t, "true", q.Get("no_aggs"))

		switch q.Get("company") {
		case "U.S. BANCORP":
			fmt.Fprint(w, cfpbHits(`{
				"complaint_id": "7001",
				"date_received": "2026-02-01T12:00:00-05:00",
				"product": "Checking or savings account",
				"sub_product": "Checking account",
				"issue": "Managing an account",
				"sub_issue": "Deposits and withdrawals",
				"complaint_what_happened": "There was fraud on my account.",
				"company_response": "Closed with explanation",
				"timely": "Yes",
				"consumer_disputed": "No"
			}`))
		case "US BANK":
			// 7001 again, this time with a numeric id. 7002 carries an
			// unparseable date and no narrative. The blank id is dropped.
			fmt.Fprint(w, cfpbHits(
				`{"complaint_id": 7001, "date_received": "2026-02-03", "product": "Checking or savings account", "timely": "Yes", "consumer_disputed": "No"}`,
				`{"complaint_id": 7002, "date_received": "last tuesday", "product": "Mortgage", "issue": "Struggling to pay mortgage", "timely": "No", "consumer_disputed": "Yes"}`,
				`{"complaint_id": "", "product": "Credit card"}`,
			))
		default:
			fmt.Fprint(w, cfpbHits())
		}
	}))
	defer srv.Close()

	c := NewCFPB(srv.URL, 10, 30)
	c.now = func() time.Time { return time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC) }

	batch, err := c.Collect(context.Background(), bank.Bank{ID: 1, Name: "US Bancorp"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load(), "one request per registered company name")
	require.Len(t, batch.Complaints, 2)

	first := batch.Complaints[0]
	assert.Equal(t, "7001", first.ComplaintID)
	assert.Equal(t, int64(1), first.BankID)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), first.DateReceived)
	assert.Equal(t, "Checking or savings account", first.Product)
	assert.Equal(t, "Checking account", first.SubProduct)
	assert.Equal(t, "Managing an account", first.Issue)
	assert.Equal(t, "Deposits and withdrawals", first.SubIssue)
	assert.Equal(t, "Closed with explanation", first.CompanyResponse)
	assert.True(t, first.TimelyResponse)
	assert.False(t, first.ConsumerDisputed)
	require.NotNil(t, first.SentimentScore)
	assert.InDelta(t, -0.2, *first.SentimentScore, 1e-9)

	second := batch.Complaints[1]
	assert.Equal(t, "7002", second.ComplaintID)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), second.DateReceived,
		"unparseable date falls back to the collection day")
	assert.False(t, second.TimelyResponse)
	assert.True(t, second.ConsumerDisputed)
	assert.Nil(t, second.SentimentScore, "no narrative means no sentiment")
}

func TestCFPB_Collect_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("company") == "U.S. BANCORP" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, cfpbHits(`{"complaint_id": "8001", "date_received": "2026-02-10", "product": "Mortgage", "timely": "Yes", "consumer_disputed": "No"}`))
	}))
	defer srv.Close()

	c := NewCFPB(srv.URL, 10, 30)
	batch, err := c.Collect(context.Background(), bank.Bank{ID: 1, Name: "US Bancorp"})
	require.NoError(t, err, "one failed name variant must not sink the rest")
	assert.Len(t, batch.Complaints, 1)
}

func TestCFPB_Collect_AllVariantsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCFPB(srv.URL, 10, 30)
	_, err := c.Collect(context.Background(), bank.Bank{ID: 1, Name: "US Bancorp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cfpb status 502")
}

func TestFlexID_UnmarshalJSON(t *testing.T) {
	var target struct {
		ID flexID `json:"id"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc-123"}`), &target))
	assert.Equal(t, flexID("abc-123"), target.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": 456}`), &target))
	assert.Equal(t, flexID("456"), target.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": 4.5}`), &target))
	assert.Equal(t, flexID("4.5"), target.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &target))
}

func cfpbHits(sources ...string) string {
	wrapped := make([]string, 0, len(sources))
	for _, s := range sources {
		wrapped = append(wrapped, fmt.Sprintf(`{"_source": %s}`, s))
	}
	return fmt.Sprintf(`{"hits": {"hits": [%s]}}`, strings.Join(wrapped, ","))
}
