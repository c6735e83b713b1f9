package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/elonfeng/repradar/pkg/bank"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/%s"

// Market collects daily price bars from the Yahoo Finance chart API. The
// upstream serves raw closes only, so daily returns and the 30-day rolling
// volatility are derived here before the bars are stored.
type Market struct {
	client *http.Client
	window string
}

// NewMarket creates a market data collector covering the given chart
// range, for example "3mo" or "6mo".
func NewMarket(window string) *Market {
	if window == "" {
		window = "3mo"
	}
	return &Market{
		client: &http.Client{Timeout: 30 * time.Second},
		window: window,
	}
}

func (m *Market) Name() Kind { return KindMarket }

func (m *Market) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	if bk.Ticker == "" {
		return Batch{}, fmt.Errorf("no ticker for %s: %w", bk.Name, ErrUnavailable)
	}

	result, err := m.fetchChart(ctx, bk.Ticker)
	if err != nil {
		return Batch{}, err
	}
	if len(result.Indicators.Quote) == 0 {
		return Batch{}, fmt.Errorf("no quote series for %s: %w", bk.Ticker, ErrUnavailable)
	}

	quote := result.Indicators.Quote[0]
	return Batch{Bars: deriveBars(bk.ID, result.Timestamp, quote.Close, quote.Volume)}, nil
}

func (m *Market) fetchChart(ctx context.Context, ticker string) (*chartResult, error) {
	params := url.Values{}
	params.Set("range", m.window)
	params.Set("interval", "1d")
	u := fmt.Sprintf(yahooChartURL, url.PathEscape(ticker)) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create chart request: %w", err)
	}
	// Yahoo rejects requests without a browser-looking User-Agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; repradar/1.0)")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chart for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart api status %d for %s", resp.StatusCode, ticker)
	}

	var decoded chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if decoded.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error for %s: %s", ticker, decoded.Chart.Error.Description)
	}
	if len(decoded.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s: %w", ticker, ErrUnavailable)
	}
	return &decoded.Chart.Result[0], nil
}

// deriveBars computes the return and volatility columns the upstream does
// not provide. The first bar has no prior close and the volatility needs a
// full window of returns, so early bars carry nils.
func deriveBars(bankID int64, timestamps []int64, closes []*float64, volumes []*int64) []MarketBar {
	type point struct {
		ts     int64
		close  float64
		volume int64
	}
	points := make([]point, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		p := point{ts: ts, close: *closes[i]}
		if i < len(volumes) && volumes[i] != nil {
			p.volume = *volumes[i]
		}
		points = append(points, p)
	}

	returns := make([]*float64, len(points))
	for i := 1; i < len(points); i++ {
		prev := points[i-1].close
		if prev == 0 {
			continue
		}
		pct := round4((points[i].close - prev) / prev * 100)
		returns[i] = &pct
	}

	bars := make([]MarketBar, 0, len(points))
	for i, p := range points {
		bars = append(bars, MarketBar{
			BankID:         bankID,
			Date:           dayOf(time.Unix(p.ts, 0).UTC()),
			ClosePrice:     round2(p.close),
			DailyReturnPct: returns[i],
			Volume:         p.volume,
			Volatility30d:  rollingStd(returns, i, 30),
		})
	}
	return bars
}

// rollingStd is the sample standard deviation of the window of returns
// ending at i, or nil until the window holds a full set of values.
func rollingStd(returns []*float64, i, window int) *float64 {
	if i+1 < window {
		return nil
	}
	vals := make([]float64, 0, window)
	var sum float64
	for j := i - window + 1; j <= i; j++ {
		if returns[j] == nil {
			return nil
		}
		vals = append(vals, *returns[j])
		sum += *returns[j]
	}

	mean := sum / float64(window)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	std := round4(math.Sqrt(ss / float64(window-1)))
	return &std
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}
