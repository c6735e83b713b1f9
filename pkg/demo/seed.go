package demo

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/source"
)

// headline pairs a news title template with its base sentiment.
type headline struct {
	template  string
	sentiment float64
}

var headlines = []headline{
	{"%s reports strong Q4 earnings, beating analyst expectations", 0.7},
	{"%s faces regulatory scrutiny over consumer lending practices", -0.6},
	{"%s announces $2B technology investment for digital transformation", 0.4},
	{"%s settles discrimination lawsuit for $50M", -0.8},
	{"%s CEO addresses concerns about commercial real estate exposure", -0.3},
	{"%s launches new mobile banking features to compete with fintechs", 0.5},
	{"%s cuts 500 jobs as part of efficiency restructuring", -0.4},
	{"%s receives upgrade from Moody's on improved asset quality", 0.6},
	{"%s data breach exposes 100,000 customer records", -0.9},
	{"%s partners with local nonprofits for community reinvestment", 0.3},
	{"%s reports increase in credit card delinquencies", -0.5},
	{"%s named top workplace for diversity and inclusion", 0.5},
	{"%s under investigation for BSA/AML compliance failures", -0.7},
	{"%s expands wealth management division with key hires", 0.3},
	{"%s customers report widespread outage of online banking", -0.6},
}

var complaintProducts = []string{
	"Checking or savings account",
	"Credit card or prepaid card",
	"Mortgage",
	"Debt collection",
	"Credit reporting",
	"Vehicle loan or lease",
	"Student loan",
	"Money transfer",
	"Personal loan",
}

var complaintIssues = []string{
	"Managing an account",
	"Problem with a purchase shown on your statement",
	"Trouble during payment process",
	"Incorrect information on your report",
	"Struggling to pay mortgage",
	"Attempts to collect debt not owed",
	"Problem with a credit reporting company's investigation",
	"Opening an account",
	"Closing an account",
	"Problem caused by your funds being low",
}

var companyResponses = []string{
	"Closed with explanation",
	"Closed with monetary relief",
	"Closed with non-monetary relief",
}

// Profile sets a bank's demo baseline and day-to-day swing.
type Profile struct {
	BaseRisk   float64
	Volatility float64
}

var profiles = map[string]Profile{
	"US Bancorp":       {BaseRisk: 35, Volatility: 8},
	"JPMorgan Chase":   {BaseRisk: 30, Volatility: 10},
	"Wells Fargo":      {BaseRisk: 55, Volatility: 12}, // historically higher
	"Bank of America":  {BaseRisk: 38, Volatility: 9},
	"PNC Financial":    {BaseRisk: 32, Volatility: 7},
	"Truist Financial": {BaseRisk: 40, Volatility: 9},
}

// ProfileFor returns the bank's demo profile, or a moderate default for
// banks configured beyond the built-in six.
func ProfileFor(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return Profile{BaseRisk: 40, Volatility: 8}
}

// Seeder writes synthetic signals, complaints, and score history for every
// registered bank.
type Seeder struct {
	store store.Store
	log   *logrus.Logger
	seed  int64
	now   func() time.Time
}

// NewSeeder creates a seeder. The same seed against an empty database
// always produces the same dataset.
func NewSeeder(st store.Store, log *logrus.Logger, seed int64) *Seeder {
	if log == nil {
		log = logrus.New()
	}
	return &Seeder{store: st, log: log, seed: seed, now: time.Now}
}

// Seed populates demo data for all registered banks: 60 days of news
// signals, 90 days of complaints, and 61 days of score history.
func (s *Seeder) Seed(ctx context.Context) error {
	banks, err := s.store.ListBanks(ctx)
	if err != nil {
		return fmt.Errorf("list banks: %w", err)
	}
	if len(banks) == 0 {
		return fmt.Errorf("no banks registered")
	}

	complaintCounter := int64(100000)
	for _, bk := range banks {
		base := s.bankSeed(bk.Name)

		batch := source.Batch{
			Signals:    s.signals(bk, NewLCG(base+1), 60),
			Complaints: s.complaints(bk, NewLCG(base+2), 90, &complaintCounter),
		}
		stats, err := s.store.ApplyBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("seed %s: %w", bk.Name, err)
		}

		if err := s.scores(ctx, bk, base+3, 60); err != nil {
			return fmt.Errorf("seed %s scores: %w", bk.Name, err)
		}

		s.log.WithFields(logrus.Fields{
			"bank":       bk.Name,
			"signals":    stats.Signals,
			"complaints": stats.Complaints,
		}).Info("seeded demo data")
	}
	return nil
}

// bankSeed folds the bank name into the base seed so each bank gets its
// own stable stream regardless of registration order.
func (s *Seeder) bankSeed(name string) int64 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return s.seed + int64(h.Sum32())
}

func (s *Seeder) signals(bk bank.Bank, g *LCG, days int) []source.Signal {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var signals []source.Signal
	for offset := 0; offset < days; offset++ {
		day := today.AddDate(0, 0, -offset)
		for n := g.IntBetween(2, 5); n > 0; n-- {
			h := headlines[g.Intn(len(headlines))]
			score := clamp(h.sentiment+g.Gauss(0, 0.15), -1, 1)
			label := "neutral"
			if score > 0.1 {
				label = "positive"
			} else if score < -0.1 {
				label = "negative"
			}

			published := day.Add(time.Duration(g.IntBetween(6, 22))*time.Hour +
				time.Duration(g.IntBetween(0, 59))*time.Minute)
			sentiment := round3(score)
			signals = append(signals, source.Signal{
				BankID:         bk.ID,
				Source:         source.SignalNews,
				Title:          fmt.Sprintf(h.template, bk.Name),
				Content:        fmt.Sprintf("Demo article about %s.", bk.Name),
				URL:            fmt.Sprintf("https://example.com/news/%s/%d/%d", strings.ToLower(bk.Ticker), offset, g.IntBetween(1000, 9999)),
				PublishedAt:    published,
				SentimentScore: &sentiment,
				SentimentLabel: label,
				IsAnomaly:      math.Abs(score) > 0.85,
				CollectedAt:    now,
			})
		}
	}
	return signals
}

func (s *Seeder) complaints(bk bank.Bank, g *LCG, days int, counter *int64) []source.Complaint {
	profile := ProfileFor(bk.Name)
	dailyRate := 3 + profile.BaseRisk/15

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var complaints []source.Complaint
	for offset := 0; offset < days; offset++ {
		day := today.AddDate(0, 0, -offset)
		num := int(g.Gauss(dailyRate, dailyRate*0.3))
		for n := 0; n < num; n++ {
			*counter++
			complaints = append(complaints, source.Complaint{
				ComplaintID:      strconv.FormatInt(*counter, 10),
				BankID:           bk.ID,
				DateReceived:     day,
				Product:          complaintProducts[g.Intn(len(complaintProducts))],
				Issue:            complaintIssues[g.Intn(len(complaintIssues))],
				CompanyResponse:  companyResponses[g.Intn(len(companyResponses))],
				TimelyResponse:   g.Uniform() > 0.1,
				ConsumerDisputed: g.Uniform() > 0.7,
			})
		}
	}
	return complaints
}

func (s *Seeder) scores(ctx context.Context, bk bank.Bank, seed int64, days int) error {
	profile := ProfileFor(bk.Name)
	series := GenerateSeries(seed, s.now(), days+1, profile.BaseRisk, profile.Volatility)
	for _, p := range series {
		rs := &store.RiskScore{
			BankID:              bk.ID,
			ScoreDate:           p.Date,
			CompositeScore:      p.Composite,
			MediaSentimentScore: &p.Media,
			ComplaintScore:      &p.Complaints,
			MarketScore:         &p.Market,
		}
		if err := s.store.UpsertRiskScore(ctx, rs); err != nil {
			return err
		}
	}
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
