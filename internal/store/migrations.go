package store

// schemaVersion is bumped whenever the schema below changes shape. Open
// refuses databases written by a newer build rather than guessing.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    version    INTEGER NOT NULL,
    applied_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS banks (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    name   TEXT NOT NULL UNIQUE,
    ticker TEXT NOT NULL DEFAULT '',
    cik    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS signals (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    bank_id         INTEGER NOT NULL REFERENCES banks(id),
    source          TEXT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    content         TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL DEFAULT '',
    published_at    DATETIME NOT NULL,
    sentiment_score REAL,
    sentiment_label TEXT NOT NULL DEFAULT '',
    is_anomaly      BOOLEAN NOT NULL DEFAULT 0,
    collected_at    DATETIME NOT NULL,
    UNIQUE(bank_id, url)
);

CREATE INDEX IF NOT EXISTS idx_signals_bank ON signals(bank_id);
CREATE INDEX IF NOT EXISTS idx_signals_published ON signals(published_at);
CREATE INDEX IF NOT EXISTS idx_signals_source ON signals(source);

CREATE TABLE IF NOT EXISTS complaints (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    complaint_id      TEXT NOT NULL UNIQUE,
    bank_id           INTEGER NOT NULL REFERENCES banks(id),
    date_received     DATETIME NOT NULL,
    product           TEXT NOT NULL DEFAULT '',
    sub_product       TEXT NOT NULL DEFAULT '',
    issue             TEXT NOT NULL DEFAULT '',
    sub_issue         TEXT NOT NULL DEFAULT '',
    narrative         TEXT NOT NULL DEFAULT '',
    company_response  TEXT NOT NULL DEFAULT '',
    timely_response   BOOLEAN NOT NULL DEFAULT 1,
    consumer_disputed BOOLEAN NOT NULL DEFAULT 0,
    sentiment_score   REAL
);

CREATE INDEX IF NOT EXISTS idx_complaints_bank ON complaints(bank_id);
CREATE INDEX IF NOT EXISTS idx_complaints_received ON complaints(date_received);

CREATE TABLE IF NOT EXISTS market_data (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    bank_id          INTEGER NOT NULL REFERENCES banks(id),
    date             DATETIME NOT NULL,
    close_price      REAL NOT NULL DEFAULT 0,
    daily_return_pct REAL,
    volume           INTEGER NOT NULL DEFAULT 0,
    volatility_30d   REAL,
    UNIQUE(bank_id, date)
);

CREATE INDEX IF NOT EXISTS idx_market_bank_date ON market_data(bank_id, date);

CREATE TABLE IF NOT EXISTS enforcement_actions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    action_id      TEXT NOT NULL UNIQUE,
    bank_id        INTEGER NOT NULL REFERENCES banks(id),
    agency         TEXT NOT NULL DEFAULT 'OCC',
    action_date    DATETIME NOT NULL,
    action_type    TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    penalty_amount REAL,
    severity       INTEGER NOT NULL DEFAULT 2
);

CREATE INDEX IF NOT EXISTS idx_actions_bank ON enforcement_actions(bank_id);
CREATE INDEX IF NOT EXISTS idx_actions_date ON enforcement_actions(action_date);

CREATE TABLE IF NOT EXISTS sec_filings (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    bank_id         INTEGER NOT NULL REFERENCES banks(id),
    cik             TEXT NOT NULL DEFAULT '',
    filing_type     TEXT NOT NULL DEFAULT '',
    filed_date      DATETIME NOT NULL,
    url             TEXT NOT NULL DEFAULT '',
    risk_keywords   TEXT NOT NULL DEFAULT '[]',
    sentiment_score REAL,
    UNIQUE(bank_id, url)
);

CREATE INDEX IF NOT EXISTS idx_filings_bank ON sec_filings(bank_id);
CREATE INDEX IF NOT EXISTS idx_filings_filed ON sec_filings(filed_date);

CREATE TABLE IF NOT EXISTS risk_scores (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    bank_id               INTEGER NOT NULL REFERENCES banks(id),
    score_date            DATETIME NOT NULL,
    composite_score       REAL NOT NULL,
    media_sentiment_score REAL,
    regulatory_score      REAL,
    complaint_score       REAL,
    market_score          REAL,
    peer_relative_score   REAL,
    alerted               BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(bank_id, score_date)
);

CREATE INDEX IF NOT EXISTS idx_scores_bank_date ON risk_scores(bank_id, score_date);

CREATE TABLE IF NOT EXISTS peer_groups (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    bank_ids    TEXT NOT NULL DEFAULT '[]',
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS watchlist (
    bank_id  INTEGER PRIMARY KEY REFERENCES banks(id),
    added_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_thresholds (
    bank_id   INTEGER PRIMARY KEY REFERENCES banks(id),
    max_score REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    priority    TEXT NOT NULL DEFAULT 'medium',
    votes       INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'open',
    created_at  DATETIME NOT NULL
);
`
