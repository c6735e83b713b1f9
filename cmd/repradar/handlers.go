package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/repradar/internal/cache"
	"github.com/elonfeng/repradar/internal/config"
	"github.com/elonfeng/repradar/internal/logging"
	"github.com/elonfeng/repradar/internal/scheduler"
	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/alert"
	"github.com/elonfeng/repradar/pkg/assistant"
	"github.com/elonfeng/repradar/pkg/demo"
	"github.com/elonfeng/repradar/pkg/export"
	"github.com/elonfeng/repradar/pkg/risk"
	"github.com/elonfeng/repradar/pkg/server"
	"github.com/elonfeng/repradar/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(cfg.Log.Level)
}

// openStore opens the database and registers the configured banks so
// every command sees the same roster.
func openStore(ctx context.Context, cfg *config.Config) (*store.SQLiteStore, error) {
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.EnsureBanks(ctx, cfg.Banks); err != nil {
		db.Close()
		return nil, fmt.Errorf("register banks: %w", err)
	}
	return db, nil
}

func buildEngine(cfg *config.Config, db store.Store, log *logrus.Logger) *risk.Engine {
	return risk.NewEngine(db, log, cfg.Risk.LookbackDays)
}

// buildGroups assembles the enabled collectors into their scheduling
// cadence groups.
func buildGroups(cfg *config.Config, c *cache.Cache) scheduler.Groups {
	var g scheduler.Groups

	if cfg.Sources.CFPB.Enabled {
		g.Frequent = append(g.Frequent, source.NewCFPB(cfg.Sources.CFPB.BaseURL, cfg.Sources.CFPB.PageSize, cfg.Sources.CFPB.DaysBack))
	}
	if cfg.Sources.NewsAPI.Enabled && cfg.Sources.NewsAPI.APIKey != "" {
		g.Frequent = append(g.Frequent, source.NewNewsAPI(cfg.Sources.NewsAPI.APIKey, cfg.Sources.NewsAPI.PageSize, cfg.Sources.NewsAPI.DaysBack))
	}
	if cfg.Sources.GDELT.Enabled {
		g.Frequent = append(g.Frequent, source.NewGDELT(cfg.Sources.GDELT.MaxRecords, cfg.Sources.GDELT.DaysBack))
	}

	if cfg.Sources.Market.Enabled {
		g.Market = append(g.Market, source.NewMarket(cfg.Sources.Market.Range))
	}

	if cfg.Sources.EDGAR.Enabled {
		g.Regulatory = append(g.Regulatory, source.NewEDGAR(
			cfg.Sources.EDGAR.UserAgent,
			cfg.Sources.EDGAR.RatePerSec,
			cfg.Sources.EDGAR.DaysBack,
			cfg.Sources.EDGAR.FetchText,
			cfg.Sources.EDGAR.MaxTextChars,
		))
	}
	if cfg.Sources.OCC.Enabled {
		g.Regulatory = append(g.Regulatory, source.NewOCC(cfg.Sources.OCC.DaysBack))
	}
	if cfg.Sources.Enforcement.Enabled {
		for _, f := range cfg.Sources.Enforcement.Feeds {
			g.Regulatory = append(g.Regulatory, source.NewFeed(f.Agency, f.URL, c))
		}
	}

	return g
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildAssistant(cfg *config.Config) *assistant.Client {
	if !cfg.Assistant.Enabled || cfg.Assistant.APIKey == "" {
		return nil
	}
	return assistant.New(cfg.Assistant.Provider, cfg.Assistant.Model, cfg.Assistant.APIKey, cfg.Assistant.BaseURL)
}

func runCollect(filterSources []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := buildLogger(cfg)
	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := cache.New(cfg.Cache.ParseTTL())
	groups := buildGroups(cfg, c)

	if len(filterSources) > 0 {
		groups = filterGroups(groups, filterSources)
		if collectorCount(groups) == 0 {
			return fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
	}

	engine := buildEngine(cfg, db, log)
	sched := scheduler.New(db, groups, engine, alert.NewManager(nil), log, scheduler.Intervals{})
	stats := sched.CollectAll(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tRECORDS")
	fmt.Fprintf(w, "signals\t%d\n", stats.Signals)
	fmt.Fprintf(w, "complaints\t%d\n", stats.Complaints)
	fmt.Fprintf(w, "market bars\t%d\n", stats.Bars)
	fmt.Fprintf(w, "enforcement actions\t%d\n", stats.Actions)
	fmt.Fprintf(w, "filings\t%d\n", stats.Filings)
	fmt.Fprintf(w, "total\t%d\n", stats.Total())
	return w.Flush()
}

func runScores(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := buildLogger(cfg)
	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := buildEngine(cfg, db, log)
	assessments, err := engine.ScoreAll(ctx)
	if err != nil {
		return fmt.Errorf("score banks: %w", err)
	}
	sortByScore(assessments)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assessments)
	}

	if len(assessments) == 0 {
		fmt.Println("no banks configured (check the banks section of config.yaml)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tLEVEL\tBANK\tTICKER\tTOP DRIVER")
	for _, a := range assessments {
		fmt.Fprintf(w, "%.0f\t%s\t%s\t%s\t%s\n",
			a.Composite.Score, risk.Level(a.Composite.Score),
			a.Bank.Name, a.Bank.Ticker, topComponent(a))
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := buildLogger(cfg)
	ctx := context.Background()

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := buildEngine(cfg, db, log)
	c := cache.New(cfg.Cache.ParseTTL())
	groups := buildGroups(cfg, c)

	// Run is never called here; the scheduler only backs the on-demand
	// collect endpoint.
	sched := scheduler.New(db, groups, engine, alert.NewManager(nil), log, scheduler.Intervals{})

	srv := server.New(db, engine, port, server.Options{
		Assistant: buildAssistant(cfg),
		Cache:     c,
		Collect:   sched.CollectAll,
		Log:       log,
	})
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := buildLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := buildEngine(cfg, db, log)
	c := cache.New(cfg.Cache.ParseTTL())
	groups := buildGroups(cfg, c)

	sched := scheduler.New(db, groups, engine, buildAlertManager(cfg), log, scheduler.Intervals{
		Collect:    cfg.Schedule.ParseCollectInterval(),
		Market:     cfg.Schedule.ParseMarketInterval(),
		Regulatory: cfg.Schedule.ParseRegulatoryInterval(),
		Score:      cfg.Schedule.ParseScoreInterval(),
	})

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("scheduler stopped")
		}
	}()

	srv := server.New(db, engine, port, server.Options{
		Assistant: buildAssistant(cfg),
		Cache:     c,
		Collect:   sched.CollectAll,
		Log:       log,
	})
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
	}()

	return srv.ListenAndServe()
}

func runSeed(seed int64) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := buildLogger(cfg)
	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := demo.NewSeeder(db, log, seed).Seed(ctx); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}

	fmt.Fprintln(os.Stderr, "demo data ready (inspect with: repradar scores)")
	return nil
}

func runExport(out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := buildLogger(cfg)
	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := buildEngine(cfg, db, log)
	assessments, err := engine.ScoreAll(ctx)
	if err != nil {
		return fmt.Errorf("score banks: %w", err)
	}
	sortByScore(assessments)

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteOverview(w, assessments); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if out != "" {
		fmt.Fprintf(os.Stderr, "wrote %s\n", out)
	}
	return nil
}

// filterGroups keeps only collectors whose kind matches one of the
// requested names.
func filterGroups(g scheduler.Groups, names []string) scheduler.Groups {
	wanted := make(map[string]bool)
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	keep := func(cs []source.Collector) []source.Collector {
		var out []source.Collector
		for _, c := range cs {
			if wanted[string(c.Name())] {
				out = append(out, c)
			}
		}
		return out
	}
	return scheduler.Groups{
		Frequent:   keep(g.Frequent),
		Market:     keep(g.Market),
		Regulatory: keep(g.Regulatory),
	}
}

func collectorCount(g scheduler.Groups) int {
	return len(g.Frequent) + len(g.Market) + len(g.Regulatory)
}

func sortByScore(assessments []risk.Assessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		return assessments[i].Composite.Score > assessments[j].Composite.Score
	})
}

// topComponent names the sub-score contributing the most risk.
func topComponent(a risk.Assessment) string {
	best := ""
	bestVal := -1.0
	for _, s := range a.Composite.SubScores {
		if s.Value > bestVal {
			bestVal = s.Value
			best = risk.DisplayName(s.Component)
		}
	}
	return best
}
