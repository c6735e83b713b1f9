package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/source"
)

// ErrNotFound is returned when a lookup by identifier matches no row.
var ErrNotFound = errors.New("store: not found")

// RiskScore records one persisted daily composite for a bank.
type RiskScore struct {
	ID                  int64     `db:"id" json:"id"`
	BankID              int64     `db:"bank_id" json:"bank_id"`
	ScoreDate           time.Time `db:"score_date" json:"score_date"`
	CompositeScore      float64   `db:"composite_score" json:"composite_score"`
	MediaSentimentScore *float64  `db:"media_sentiment_score" json:"media_sentiment_score"`
	RegulatoryScore     *float64  `db:"regulatory_score" json:"regulatory_score"`
	ComplaintScore      *float64  `db:"complaint_score" json:"complaint_score"`
	MarketScore         *float64  `db:"market_score" json:"market_score"`
	PeerRelativeScore   *float64  `db:"peer_relative_score" json:"peer_relative_score"`
	Alerted             bool      `db:"alerted" json:"alerted"`
}

// PeerGroup is a named set of banks compared against each other.
type PeerGroup struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	BankIDsJSON string    `db:"bank_ids" json:"-"`
	BankIDs     []int64   `json:"bank_ids" db:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Threshold is a per-bank score ceiling that triggers alerts when crossed.
type Threshold struct {
	BankID   int64   `db:"bank_id" json:"bank_id"`
	MaxScore float64 `db:"max_score" json:"max_score"`
}

// Feedback is a user-submitted feature request or bug report.
type Feedback struct {
	ID          string    `db:"id" json:"id"`
	Type        string    `db:"type" json:"type"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Priority    string    `db:"priority" json:"priority"`
	Votes       int       `db:"votes" json:"votes"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SignalVolume is one day-by-source bucket of feed activity.
type SignalVolume struct {
	Day          string  `db:"day" json:"date"`
	Source       string  `db:"source" json:"source"`
	Count        int     `db:"count" json:"count"`
	AvgSentiment float64 `db:"avg_sentiment" json:"avg_sentiment"`
}

// ProductCount is a complaint tally for one product line.
type ProductCount struct {
	Product string `db:"product" json:"product"`
	Count   int    `db:"count" json:"count"`
}

// ApplyStats reports how many rows a batch actually wrote per kind.
// Duplicates skipped by unique constraints are not counted.
type ApplyStats struct {
	Signals    int `json:"signals"`
	Complaints int `json:"complaints"`
	Bars       int `json:"bars"`
	Actions    int `json:"actions"`
	Filings    int `json:"filings"`
}

// Total sums written rows across all kinds.
func (a ApplyStats) Total() int {
	return a.Signals + a.Complaints + a.Bars + a.Actions + a.Filings
}

// Add merges another stats value into this one.
func (a *ApplyStats) Add(b ApplyStats) {
	a.Signals += b.Signals
	a.Complaints += b.Complaints
	a.Bars += b.Bars
	a.Actions += b.Actions
	a.Filings += b.Filings
}

// SignalOpts controls signal listing. Zero values disable a filter.
type SignalOpts struct {
	BankID int64
	Source source.SignalSource
	Since  time.Time
	Limit  int
}

// ComplaintOpts controls complaint listing.
type ComplaintOpts struct {
	BankID int64
	Since  time.Time
	Limit  int
}

// ActionOpts controls enforcement action listing.
type ActionOpts struct {
	BankID int64
	Since  time.Time
	Limit  int
}

// Store is the persistence interface.
type Store interface {
	EnsureBanks(ctx context.Context, banks []bank.Bank) ([]bank.Bank, error)
	ListBanks(ctx context.Context) ([]bank.Bank, error)
	GetBank(ctx context.Context, id int64) (*bank.Bank, error)

	ApplyBatch(ctx context.Context, batch source.Batch) (ApplyStats, error)

	ListSignals(ctx context.Context, opts SignalOpts) ([]source.Signal, error)
	SignalVolume(ctx context.Context, bankID int64, since time.Time) ([]SignalVolume, error)
	AvgSignalSentiment(ctx context.Context, bankID int64, src source.SignalSource, since time.Time) (float64, bool, error)

	ListComplaints(ctx context.Context, opts ComplaintOpts) ([]source.Complaint, error)
	CountComplaints(ctx context.Context, bankID int64, since time.Time) (int, error)
	CountDisputedUntimely(ctx context.Context, bankID int64, since time.Time) (disputed, untimely int, err error)
	ComplaintProducts(ctx context.Context, bankID int64, since time.Time, limit int) ([]ProductCount, error)

	MarketWindow(ctx context.Context, bankID int64, since time.Time) ([]source.MarketBar, error)

	ListActions(ctx context.Context, opts ActionOpts) ([]source.EnforcementAction, error)

	ListFilings(ctx context.Context, bankID int64, limit int) ([]source.Filing, error)
	AvgFilingSentiment(ctx context.Context, bankID int64, since time.Time) (float64, bool, error)

	UpsertRiskScore(ctx context.Context, rs *RiskScore) error
	ListRiskScores(ctx context.Context, bankID int64, since time.Time) ([]RiskScore, error)
	LatestRiskScore(ctx context.Context, bankID int64) (*RiskScore, error)
	MarkAlerted(ctx context.Context, scoreID int64) error

	CreatePeerGroup(ctx context.Context, g *PeerGroup) error
	GetPeerGroup(ctx context.Context, id string) (*PeerGroup, error)
	ListPeerGroups(ctx context.Context) ([]PeerGroup, error)
	UpdatePeerGroup(ctx context.Context, g *PeerGroup) error
	DeletePeerGroup(ctx context.Context, id string) error

	Watchlist(ctx context.Context) ([]int64, error)
	SetWatchlist(ctx context.Context, bankIDs []int64) error

	Thresholds(ctx context.Context) ([]Threshold, error)
	SetThresholds(ctx context.Context, ts []Threshold) error

	CreateFeedback(ctx context.Context, f *Feedback) error
	ListFeedback(ctx context.Context) ([]Feedback, error)
	VoteFeedback(ctx context.Context, id string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations. The sqlite time format
// is required: date() grouping in the volume queries cannot parse the
// driver's default time encoding.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := checkSchemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func checkSchemaVersion(db *sqlx.DB) error {
	var version int
	err := db.Get(&version, "SELECT version FROM schema_info LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.Exec("INSERT INTO schema_info (version, applied_at) VALUES (?, ?)",
			schemaVersion, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureBanks upserts the configured banks by name and returns the stored
// rows with their assigned ids.
func (s *SQLiteStore) EnsureBanks(ctx context.Context, banks []bank.Bank) ([]bank.Bank, error) {
	for _, b := range banks {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO banks (name, ticker, cik) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET ticker = excluded.ticker, cik = excluded.cik
		`, b.Name, b.Ticker, b.CIK)
		if err != nil {
			return nil, fmt.Errorf("ensure bank %s: %w", b.Name, err)
		}
	}
	return s.ListBanks(ctx)
}

func (s *SQLiteStore) ListBanks(ctx context.Context) ([]bank.Bank, error) {
	var banks []bank.Bank
	if err := s.db.SelectContext(ctx, &banks, "SELECT * FROM banks ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	return banks, nil
}

func (s *SQLiteStore) GetBank(ctx context.Context, id int64) (*bank.Bank, error) {
	var b bank.Bank
	err := s.db.GetContext(ctx, &b, "SELECT * FROM banks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bank %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bank %d: %w", id, err)
	}
	return &b, nil
}

// ApplyBatch writes every record in the batch, skipping rows already
// present. Market bars are refreshed in place so recomputed returns and
// volatility replace stale values.
func (s *SQLiteStore) ApplyBatch(ctx context.Context, batch source.Batch) (ApplyStats, error) {
	var stats ApplyStats
	for i := range batch.Signals {
		n, err := s.insertSignal(ctx, &batch.Signals[i])
		if err != nil {
			return stats, err
		}
		stats.Signals += n
	}
	for i := range batch.Complaints {
		n, err := s.insertComplaint(ctx, &batch.Complaints[i])
		if err != nil {
			return stats, err
		}
		stats.Complaints += n
	}
	for i := range batch.Bars {
		n, err := s.upsertBar(ctx, &batch.Bars[i])
		if err != nil {
			return stats, err
		}
		stats.Bars += n
	}
	for i := range batch.Actions {
		n, err := s.insertAction(ctx, &batch.Actions[i])
		if err != nil {
			return stats, err
		}
		stats.Actions += n
	}
	for i := range batch.Filings {
		n, err := s.insertFiling(ctx, &batch.Filings[i])
		if err != nil {
			return stats, err
		}
		stats.Filings += n
	}
	return stats, nil
}

func (s *SQLiteStore) insertSignal(ctx context.Context, sig *source.Signal) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (bank_id, source, title, content, url, published_at,
			sentiment_score, sentiment_label, is_anomaly, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bank_id, url) DO NOTHING
	`, sig.BankID, sig.Source, sig.Title, sig.Content, sig.URL, sig.PublishedAt,
		sig.SentimentScore, sig.SentimentLabel, sig.IsAnomaly, sig.CollectedAt)
	if err != nil {
		return 0, fmt.Errorf("insert signal %s: %w", sig.URL, err)
	}
	return rowsAffected(res), nil
}

func (s *SQLiteStore) insertComplaint(ctx context.Context, c *source.Complaint) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO complaints (complaint_id, bank_id, date_received, product, sub_product,
			issue, sub_issue, narrative, company_response, timely_response,
			consumer_disputed, sentiment_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(complaint_id) DO NOTHING
	`, c.ComplaintID, c.BankID, c.DateReceived, c.Product, c.SubProduct,
		c.Issue, c.SubIssue, c.Narrative, c.CompanyResponse, c.TimelyResponse,
		c.ConsumerDisputed, c.SentimentScore)
	if err != nil {
		return 0, fmt.Errorf("insert complaint %s: %w", c.ComplaintID, err)
	}
	return rowsAffected(res), nil
}

func (s *SQLiteStore) upsertBar(ctx context.Context, b *source.MarketBar) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO market_data (bank_id, date, close_price, daily_return_pct, volume, volatility_30d)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bank_id, date) DO UPDATE SET
			close_price = excluded.close_price,
			daily_return_pct = excluded.daily_return_pct,
			volume = excluded.volume,
			volatility_30d = excluded.volatility_30d
	`, b.BankID, b.Date, b.ClosePrice, b.DailyReturnPct, b.Volume, b.Volatility30d)
	if err != nil {
		return 0, fmt.Errorf("upsert bar %s: %w", b.Date.Format("2006-01-02"), err)
	}
	return rowsAffected(res), nil
}

func (s *SQLiteStore) insertAction(ctx context.Context, a *source.EnforcementAction) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO enforcement_actions (action_id, bank_id, agency, action_date,
			action_type, description, penalty_amount, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(action_id) DO NOTHING
	`, a.ActionID, a.BankID, a.Agency, a.ActionDate,
		a.ActionType, a.Description, a.PenaltyAmount, a.Severity)
	if err != nil {
		return 0, fmt.Errorf("insert action %s: %w", a.ActionID, err)
	}
	return rowsAffected(res), nil
}

func (s *SQLiteStore) insertFiling(ctx context.Context, f *source.Filing) (int, error) {
	keywordsJSON, _ := json.Marshal(f.RiskKeywords)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sec_filings (bank_id, cik, filing_type, filed_date, url,
			risk_keywords, sentiment_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bank_id, url) DO NOTHING
	`, f.BankID, f.CIK, f.FilingType, f.FiledDate, f.URL,
		string(keywordsJSON), f.SentimentScore)
	if err != nil {
		return 0, fmt.Errorf("insert filing %s: %w", f.URL, err)
	}
	return rowsAffected(res), nil
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *SQLiteStore) ListSignals(ctx context.Context, opts SignalOpts) ([]source.Signal, error) {
	query := "SELECT * FROM signals WHERE 1=1"
	var args []any

	if opts.BankID != 0 {
		query += " AND bank_id = ?"
		args = append(args, opts.BankID)
	}
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		query += " AND published_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY published_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var signals []source.Signal
	if err := s.db.SelectContext(ctx, &signals, query, args...); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return signals, nil
}

// SignalVolume aggregates daily signal counts and mean sentiment per source.
// A zero bankID covers all banks.
func (s *SQLiteStore) SignalVolume(ctx context.Context, bankID int64, since time.Time) ([]SignalVolume, error) {
	query := `
		SELECT date(published_at) AS day, source,
			COUNT(*) AS count,
			COALESCE(AVG(sentiment_score), 0) AS avg_sentiment
		FROM signals
		WHERE published_at >= ?`
	args := []any{since}
	if bankID > 0 {
		query += " AND bank_id = ?"
		args = append(args, bankID)
	}
	query += `
		GROUP BY date(published_at), source
		ORDER BY day`

	var rows []SignalVolume
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("signal volume: %w", err)
	}
	return rows, nil
}

// AvgSignalSentiment returns the mean sentiment of a bank's signals from one
// source. The bool reports whether any scored signals existed in the window.
func (s *SQLiteStore) AvgSignalSentiment(ctx context.Context, bankID int64, src source.SignalSource, since time.Time) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.GetContext(ctx, &avg, `
		SELECT AVG(sentiment_score) FROM signals
		WHERE bank_id = ? AND source = ? AND published_at >= ?
	`, bankID, src, since)
	if err != nil {
		return 0, false, fmt.Errorf("avg signal sentiment: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

func (s *SQLiteStore) ListComplaints(ctx context.Context, opts ComplaintOpts) ([]source.Complaint, error) {
	query := "SELECT * FROM complaints WHERE 1=1"
	var args []any

	if opts.BankID != 0 {
		query += " AND bank_id = ?"
		args = append(args, opts.BankID)
	}
	if !opts.Since.IsZero() {
		query += " AND date_received >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY date_received DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var complaints []source.Complaint
	if err := s.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

func (s *SQLiteStore) CountComplaints(ctx context.Context, bankID int64, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM complaints WHERE bank_id = ? AND date_received >= ?",
		bankID, since)
	if err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) CountDisputedUntimely(ctx context.Context, bankID int64, since time.Time) (int, int, error) {
	var row struct {
		Disputed int `db:"disputed"`
		Untimely int `db:"untimely"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN consumer_disputed THEN 1 ELSE 0 END), 0) AS disputed,
			COALESCE(SUM(CASE WHEN NOT timely_response THEN 1 ELSE 0 END), 0) AS untimely
		FROM complaints
		WHERE bank_id = ? AND date_received >= ?
	`, bankID, since)
	if err != nil {
		return 0, 0, fmt.Errorf("count disputed complaints: %w", err)
	}
	return row.Disputed, row.Untimely, nil
}

func (s *SQLiteStore) ComplaintProducts(ctx context.Context, bankID int64, since time.Time, limit int) ([]ProductCount, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT product, COUNT(*) AS count FROM complaints
		WHERE date_received >= ? AND product != ''`
	args := []any{since}
	if bankID > 0 {
		query += " AND bank_id = ?"
		args = append(args, bankID)
	}
	query += `
		GROUP BY product
		ORDER BY count DESC, product
		LIMIT ?`
	args = append(args, limit)

	var rows []ProductCount
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("complaint products: %w", err)
	}
	return rows, nil
}

// MarketWindow returns a bank's daily bars since the given time, oldest first.
func (s *SQLiteStore) MarketWindow(ctx context.Context, bankID int64, since time.Time) ([]source.MarketBar, error) {
	var bars []source.MarketBar
	err := s.db.SelectContext(ctx, &bars,
		"SELECT * FROM market_data WHERE bank_id = ? AND date >= ? ORDER BY date",
		bankID, since)
	if err != nil {
		return nil, fmt.Errorf("market window: %w", err)
	}
	return bars, nil
}

func (s *SQLiteStore) ListActions(ctx context.Context, opts ActionOpts) ([]source.EnforcementAction, error) {
	query := "SELECT * FROM enforcement_actions WHERE 1=1"
	var args []any

	if opts.BankID != 0 {
		query += " AND bank_id = ?"
		args = append(args, opts.BankID)
	}
	if !opts.Since.IsZero() {
		query += " AND action_date >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY action_date DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var actions []source.EnforcementAction
	if err := s.db.SelectContext(ctx, &actions, query, args...); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return actions, nil
}

func (s *SQLiteStore) ListFilings(ctx context.Context, bankID int64, limit int) ([]source.Filing, error) {
	if limit <= 0 {
		limit = 50
	}
	var filings []source.Filing
	err := s.db.SelectContext(ctx, &filings,
		"SELECT * FROM sec_filings WHERE bank_id = ? ORDER BY filed_date DESC LIMIT ?",
		bankID, limit)
	if err != nil {
		return nil, fmt.Errorf("list filings: %w", err)
	}
	for i := range filings {
		json.Unmarshal([]byte(filings[i].KeywordsJSON), &filings[i].RiskKeywords)
	}
	return filings, nil
}

// AvgFilingSentiment returns the mean sentiment across a bank's recent
// filings. The bool reports whether any scored filings existed.
func (s *SQLiteStore) AvgFilingSentiment(ctx context.Context, bankID int64, since time.Time) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.GetContext(ctx, &avg, `
		SELECT AVG(sentiment_score) FROM sec_filings
		WHERE bank_id = ? AND filed_date >= ?
	`, bankID, since)
	if err != nil {
		return 0, false, fmt.Errorf("avg filing sentiment: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// UpsertRiskScore writes the day's score for a bank, replacing an earlier
// calculation for the same day. The alerted flag of an existing row is kept
// so a recalculation does not re-fire alerts.
func (s *SQLiteStore) UpsertRiskScore(ctx context.Context, rs *RiskScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_scores (bank_id, score_date, composite_score,
			media_sentiment_score, regulatory_score, complaint_score,
			market_score, peer_relative_score, alerted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(bank_id, score_date) DO UPDATE SET
			composite_score = excluded.composite_score,
			media_sentiment_score = excluded.media_sentiment_score,
			regulatory_score = excluded.regulatory_score,
			complaint_score = excluded.complaint_score,
			market_score = excluded.market_score,
			peer_relative_score = excluded.peer_relative_score
	`, rs.BankID, rs.ScoreDate, rs.CompositeScore,
		rs.MediaSentimentScore, rs.RegulatoryScore, rs.ComplaintScore,
		rs.MarketScore, rs.PeerRelativeScore)
	if err != nil {
		return fmt.Errorf("upsert risk score: %w", err)
	}

	var row RiskScore
	err = s.db.GetContext(ctx, &row,
		"SELECT * FROM risk_scores WHERE bank_id = ? AND score_date = ?",
		rs.BankID, rs.ScoreDate)
	if err != nil {
		return fmt.Errorf("read back risk score: %w", err)
	}
	rs.ID = row.ID
	rs.Alerted = row.Alerted
	return nil
}

// ListRiskScores returns a bank's score history, oldest first.
func (s *SQLiteStore) ListRiskScores(ctx context.Context, bankID int64, since time.Time) ([]RiskScore, error) {
	var scores []RiskScore
	err := s.db.SelectContext(ctx, &scores,
		"SELECT * FROM risk_scores WHERE bank_id = ? AND score_date >= ? ORDER BY score_date",
		bankID, since)
	if err != nil {
		return nil, fmt.Errorf("list risk scores: %w", err)
	}
	return scores, nil
}

// LatestRiskScore returns a bank's most recent stored score, or nil when
// none has been calculated yet.
func (s *SQLiteStore) LatestRiskScore(ctx context.Context, bankID int64) (*RiskScore, error) {
	var rs RiskScore
	err := s.db.GetContext(ctx, &rs,
		"SELECT * FROM risk_scores WHERE bank_id = ? ORDER BY score_date DESC LIMIT 1",
		bankID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest risk score: %w", err)
	}
	return &rs, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, scoreID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE risk_scores SET alerted = 1 WHERE id = ?", scoreID)
	if err != nil {
		return fmt.Errorf("mark alerted %d: %w", scoreID, err)
	}
	return nil
}

func (s *SQLiteStore) CreatePeerGroup(ctx context.Context, g *PeerGroup) error {
	idsJSON, _ := json.Marshal(g.BankIDs)
	g.BankIDsJSON = string(idsJSON)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO peer_groups (id, name, description, bank_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.ID, g.Name, g.Description, g.BankIDsJSON, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create peer group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPeerGroup(ctx context.Context, id string) (*PeerGroup, error) {
	var g PeerGroup
	err := s.db.GetContext(ctx, &g, "SELECT * FROM peer_groups WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("peer group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get peer group %s: %w", id, err)
	}
	json.Unmarshal([]byte(g.BankIDsJSON), &g.BankIDs)
	return &g, nil
}

func (s *SQLiteStore) ListPeerGroups(ctx context.Context) ([]PeerGroup, error) {
	var groups []PeerGroup
	err := s.db.SelectContext(ctx, &groups, "SELECT * FROM peer_groups ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list peer groups: %w", err)
	}
	for i := range groups {
		json.Unmarshal([]byte(groups[i].BankIDsJSON), &groups[i].BankIDs)
	}
	return groups, nil
}

func (s *SQLiteStore) UpdatePeerGroup(ctx context.Context, g *PeerGroup) error {
	idsJSON, _ := json.Marshal(g.BankIDs)
	g.BankIDsJSON = string(idsJSON)
	res, err := s.db.ExecContext(ctx, `
		UPDATE peer_groups SET name = ?, description = ?, bank_ids = ?, updated_at = ?
		WHERE id = ?
	`, g.Name, g.Description, g.BankIDsJSON, g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("update peer group %s: %w", g.ID, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("peer group %s: %w", g.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeletePeerGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM peer_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete peer group %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("peer group %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Watchlist(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, "SELECT bank_id FROM watchlist ORDER BY added_at, bank_id")
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	return ids, nil
}

// SetWatchlist replaces the watchlist with the given bank ids.
func (s *SQLiteStore) SetWatchlist(ctx context.Context, bankIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watchlist update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM watchlist"); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}
	now := time.Now().UTC()
	for _, id := range bankIDs {
		_, err := tx.ExecContext(ctx, "INSERT INTO watchlist (bank_id, added_at) VALUES (?, ?)", id, now)
		if err != nil {
			return fmt.Errorf("watch bank %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Thresholds(ctx context.Context) ([]Threshold, error) {
	var ts []Threshold
	err := s.db.SelectContext(ctx, &ts, "SELECT * FROM alert_thresholds ORDER BY bank_id")
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	return ts, nil
}

// SetThresholds replaces all per-bank alert thresholds.
func (s *SQLiteStore) SetThresholds(ctx context.Context, ts []Threshold) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin threshold update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM alert_thresholds"); err != nil {
		return fmt.Errorf("clear thresholds: %w", err)
	}
	for _, t := range ts {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO alert_thresholds (bank_id, max_score) VALUES (?, ?)",
			t.BankID, t.MaxScore)
		if err != nil {
			return fmt.Errorf("set threshold for bank %d: %w", t.BankID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) CreateFeedback(ctx context.Context, f *Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, type, title, description, category, priority, votes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Type, f.Title, f.Description, f.Category, f.Priority, f.Votes, f.Status, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListFeedback(ctx context.Context) ([]Feedback, error) {
	var items []Feedback
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM feedback ORDER BY votes DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) VoteFeedback(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE feedback SET votes = votes + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("vote feedback %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	return nil
}
