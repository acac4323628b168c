package store

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    occurred_at DATETIME NOT NULL,
    labels      TEXT NOT NULL DEFAULT '{}',
    vals        TEXT NOT NULL DEFAULT '{}',
    fetched_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_occurred_at ON records(occurred_at);

CREATE TABLE IF NOT EXISTS analysis (
    year_month TEXT PRIMARY KEY,
    year       INTEGER NOT NULL,
    month      INTEGER NOT NULL,
    metrics    TEXT NOT NULL DEFAULT '{}',
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    cursor         TEXT NOT NULL DEFAULT '',
    last_synced_at DATETIME
);
`
