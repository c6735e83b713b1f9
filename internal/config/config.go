package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/repradar/pkg/bank"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Risk      RiskConfig      `yaml:"risk"`
	Cache     CacheConfig     `yaml:"cache"`
	Sources   SourcesConfig   `yaml:"sources"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Assistant AssistantConfig `yaml:"assistant"`
	Log       LogConfig       `yaml:"log"`
	Banks     []bank.Bank     `yaml:"banks"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig configures the daemon's collection and scoring cadence.
type ScheduleConfig struct {
	CollectInterval    string `yaml:"collect_interval"`
	MarketInterval     string `yaml:"market_interval"`
	RegulatoryInterval string `yaml:"regulatory_interval"`
	ScoreInterval      string `yaml:"score_interval"`
}

// ParseCollectInterval returns the complaints+news cadence.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	return parseDuration(s.CollectInterval, 6*time.Hour)
}

// ParseMarketInterval returns the market data cadence.
func (s ScheduleConfig) ParseMarketInterval() time.Duration {
	return parseDuration(s.MarketInterval, 24*time.Hour)
}

// ParseRegulatoryInterval returns the SEC filing and enforcement cadence.
func (s ScheduleConfig) ParseRegulatoryInterval() time.Duration {
	return parseDuration(s.RegulatoryInterval, 7*24*time.Hour)
}

// ParseScoreInterval returns the score recalculation cadence.
func (s ScheduleConfig) ParseScoreInterval() time.Duration {
	return parseDuration(s.ScoreInterval, 24*time.Hour)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// RiskConfig configures the scoring engine.
type RiskConfig struct {
	LookbackDays int `yaml:"lookback_days"`
}

// CacheConfig configures the upstream response cache.
type CacheConfig struct {
	TTL string `yaml:"ttl"`
}

// ParseTTL returns the cache TTL as a duration.
func (c CacheConfig) ParseTTL() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

// SourcesConfig holds configuration for all data collectors.
type SourcesConfig struct {
	CFPB        CFPBConfig        `yaml:"cfpb"`
	NewsAPI     NewsAPIConfig     `yaml:"newsapi"`
	GDELT       GDELTConfig       `yaml:"gdelt"`
	EDGAR       EDGARConfig       `yaml:"edgar"`
	OCC         OCCConfig         `yaml:"occ"`
	Enforcement EnforcementConfig `yaml:"enforcement_feeds"`
	Market      MarketConfig      `yaml:"market"`
}

// CFPBConfig for the consumer complaint collector.
type CFPBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
	DaysBack int    `yaml:"days_back"`
}

// NewsAPIConfig for the keyed news provider. Skipped when no API key is
// configured; GDELT covers news in that case.
type NewsAPIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key"`
	PageSize int    `yaml:"page_size"`
	DaysBack int    `yaml:"days_back"`
}

// GDELTConfig for the keyless news provider.
type GDELTConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxRecords int  `yaml:"max_records"`
	DaysBack   int  `yaml:"days_back"`
}

// EDGARConfig for the SEC filings collector. The SEC asks for a descriptive
// User-Agent with contact info and caps clients at 10 requests per second.
type EDGARConfig struct {
	Enabled      bool    `yaml:"enabled"`
	UserAgent    string  `yaml:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec"`
	DaysBack     int     `yaml:"days_back"`
	FetchText    bool    `yaml:"fetch_text"`
	MaxTextChars int     `yaml:"max_text_chars"`
}

// OCCConfig for the OCC enforcement action search collector.
type OCCConfig struct {
	Enabled  bool `yaml:"enabled"`
	DaysBack int  `yaml:"days_back"`
}

// EnforcementConfig for agency press RSS feeds (FDIC, Fed).
type EnforcementConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single agency feed entry.
type FeedItem struct {
	Agency string `yaml:"agency"`
	URL    string `yaml:"url"`
}

// MarketConfig for the Yahoo Finance chart collector.
type MarketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Range   string `yaml:"range"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// AssistantConfig configures the optional conversational assistant.
type AssistantConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // custom endpoint (optional)
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./repradar.db"},
		Server:   ServerConfig{Port: 8080},
		Schedule: ScheduleConfig{
			CollectInterval:    "6h",
			MarketInterval:     "24h",
			RegulatoryInterval: "168h",
			ScoreInterval:      "24h",
		},
		Risk:  RiskConfig{LookbackDays: 30},
		Cache: CacheConfig{TTL: "5m"},
		Sources: SourcesConfig{
			CFPB: CFPBConfig{
				Enabled:  true,
				BaseURL:  "https://www.consumerfinance.gov/data-research/consumer-complaints/search/api/v1/",
				PageSize: 200,
				DaysBack: 90,
			},
			NewsAPI: NewsAPIConfig{
				Enabled:  true,
				PageSize: 50,
				DaysBack: 7,
			},
			GDELT: GDELTConfig{
				Enabled:    true,
				MaxRecords: 50,
				DaysBack:   7,
			},
			EDGAR: EDGARConfig{
				Enabled:      true,
				UserAgent:    "repradar/1.0 (ops@repradar.dev)",
				RatePerSec:   5,
				DaysBack:     90,
				FetchText:    true,
				MaxTextChars: 50000,
			},
			OCC: OCCConfig{Enabled: true, DaysBack: 365},
			Enforcement: EnforcementConfig{
				Enabled: true,
				Feeds: []FeedItem{
					{Agency: "FDIC", URL: "https://www.fdic.gov/rss/press.xml"},
					{Agency: "Fed", URL: "https://www.federalreserve.gov/feeds/press_enforcement.xml"},
				},
			},
			Market: MarketConfig{Enabled: true, Range: "3mo"},
		},
		Alerts: AlertsConfig{},
		Assistant: AssistantConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Log:   LogConfig{Level: "info"},
		Banks: bank.Defaults(),
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory is loaded first, best effort, for
// local development.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NEWSAPI_KEY"); v != "" {
		cfg.Sources.NewsAPI.APIKey = v
	}
	if v := os.Getenv("SEC_USER_AGENT"); v != "" {
		cfg.Sources.EDGAR.UserAgent = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Assistant.APIKey = v
		cfg.Assistant.Enabled = true
		cfg.Assistant.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Assistant.APIKey = v
		cfg.Assistant.Enabled = true
		cfg.Assistant.Provider = "anthropic"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
