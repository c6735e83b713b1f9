package source

import (
	"context"
	"errors"
	"time"

	"github.com/elonfeng/repradar/pkg/bank"
)

// Kind identifies which upstream a collector pulls from.
type Kind string

const (
	KindCFPB    Kind = "cfpb"
	KindNewsAPI Kind = "newsapi"
	KindGDELT   Kind = "gdelt"
	KindEDGAR   Kind = "edgar"
	KindOCC     Kind = "occ"
	KindFDIC    Kind = "fdic"
	KindFed     Kind = "fed"
	KindMarket  Kind = "market"
)

// ErrUnavailable reports an upstream that could not serve usable data: a
// feed that parsed to zero entries, or a provider the deployment has no
// API key for. Callers treat it as expected degradation, not a bug.
var ErrUnavailable = errors.New("source: unavailable")

// SignalSource labels where a monitoring feed entry originated.
type SignalSource string

const (
	SignalNews       SignalSource = "news"
	SignalSocial     SignalSource = "social"
	SignalCFPB       SignalSource = "cfpb"
	SignalRegulatory SignalSource = "regulatory"
	SignalMarket     SignalSource = "market"
	SignalEmployee   SignalSource = "employee"
)

// Signal is one monitoring feed entry: a dated, sentiment-scored event
// tied to a bank, most commonly a news article.
type Signal struct {
	ID             int64        `json:"id" db:"id"`
	BankID         int64        `json:"bank_id" db:"bank_id"`
	Source         SignalSource `json:"source" db:"source"`
	Title          string       `json:"title" db:"title"`
	Content        string       `json:"content" db:"content"`
	URL            string       `json:"url" db:"url"`
	PublishedAt    time.Time    `json:"published_at" db:"published_at"`
	SentimentScore *float64     `json:"sentiment_score" db:"sentiment_score"`
	SentimentLabel string       `json:"sentiment_label" db:"sentiment_label"`
	IsAnomaly      bool         `json:"is_anomaly" db:"is_anomaly"`
	CollectedAt    time.Time    `json:"collected_at" db:"collected_at"`
}

// Complaint is one CFPB consumer complaint record. SentimentScore is set
// only when the complaint carries a consumer narrative.
type Complaint struct {
	ID               int64     `json:"id" db:"id"`
	ComplaintID      string    `json:"complaint_id" db:"complaint_id"`
	BankID           int64     `json:"bank_id" db:"bank_id"`
	DateReceived     time.Time `json:"date_received" db:"date_received"`
	Product          string    `json:"product" db:"product"`
	SubProduct       string    `json:"sub_product" db:"sub_product"`
	Issue            string    `json:"issue" db:"issue"`
	SubIssue         string    `json:"sub_issue" db:"sub_issue"`
	Narrative        string    `json:"narrative,omitempty" db:"narrative"`
	CompanyResponse  string    `json:"company_response" db:"company_response"`
	TimelyResponse   bool      `json:"timely_response" db:"timely_response"`
	ConsumerDisputed bool      `json:"consumer_disputed" db:"consumer_disputed"`
	SentimentScore   *float64  `json:"sentiment_score" db:"sentiment_score"`
}

// MarketBar is one trading day for a bank's ticker.
type MarketBar struct {
	ID             int64     `json:"id" db:"id"`
	BankID         int64     `json:"bank_id" db:"bank_id"`
	Date           time.Time `json:"date" db:"date"`
	ClosePrice     float64   `json:"close_price" db:"close_price"`
	DailyReturnPct *float64  `json:"daily_return_pct" db:"daily_return_pct"`
	Volume         int64     `json:"volume" db:"volume"`
	Volatility30d  *float64  `json:"volatility_30d" db:"volatility_30d"`
}

// EnforcementAction is one regulatory action against a bank.
type EnforcementAction struct {
	ID            int64     `json:"id" db:"id"`
	ActionID      string    `json:"action_id" db:"action_id"`
	BankID        int64     `json:"bank_id" db:"bank_id"`
	Agency        string    `json:"agency" db:"agency"`
	ActionDate    time.Time `json:"action_date" db:"action_date"`
	ActionType    string    `json:"action_type" db:"action_type"`
	Description   string    `json:"description" db:"description"`
	PenaltyAmount *float64  `json:"penalty_amount" db:"penalty_amount"`
	Severity      int       `json:"severity" db:"severity"`
}

// Filing is one SEC filing with extracted risk language.
type Filing struct {
	ID             int64     `json:"id" db:"id"`
	BankID         int64     `json:"bank_id" db:"bank_id"`
	CIK            string    `json:"cik" db:"cik"`
	FilingType     string    `json:"filing_type" db:"filing_type"`
	FiledDate      time.Time `json:"filed_date" db:"filed_date"`
	URL            string    `json:"url" db:"url"`
	RiskKeywords   []string  `json:"risk_keywords" db:"-"`
	SentimentScore *float64  `json:"sentiment_score" db:"sentiment_score"`
	KeywordsJSON   string    `json:"-" db:"risk_keywords"`
}

// Batch carries everything one collector pulled for one bank.
type Batch struct {
	Signals    []Signal
	Complaints []Complaint
	Bars       []MarketBar
	Actions    []EnforcementAction
	Filings    []Filing
}

// Len is the total record count across all kinds.
func (b Batch) Len() int {
	return len(b.Signals) + len(b.Complaints) + len(b.Bars) + len(b.Actions) + len(b.Filings)
}

// Collector pulls raw records for one bank from one upstream.
type Collector interface {
	Name() Kind
	Collect(ctx context.Context, bk bank.Bank) (Batch, error)
}

// AllKinds returns every known collector kind.
func AllKinds() []Kind {
	return []Kind{
		KindCFPB,
		KindNewsAPI,
		KindGDELT,
		KindEDGAR,
		KindOCC,
		KindFDIC,
		KindFed,
		KindMarket,
	}
}
