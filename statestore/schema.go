package statestore

// Schema contains the DDL for the SQLite backend.
const Schema = `
-- Single in-flight order. The CHECK keeps it a one-row table.
CREATE TABLE IF NOT EXISTS inflight (
    slot        INTEGER PRIMARY KEY CHECK (slot = 1),
    origin      TEXT NOT NULL,
    payload     TEXT NOT NULL,
    started_at  INTEGER NOT NULL
);

-- Orchestration outcomes, bounded by the store's history limit.
CREATE TABLE IF NOT EXISTS history (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT NOT NULL UNIQUE,
    order_id      TEXT NOT NULL,
    platform      TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    processed_at  INTEGER NOT NULL,
    payload       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_order ON history(order_id, processed_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_time ON history(processed_at DESC);

CREATE TABLE IF NOT EXISTS retry_counters (
    order_id    TEXT PRIMARY KEY,
    attempts    INTEGER NOT NULL DEFAULT 0,
    updated_at  INTEGER NOT NULL
);
`
