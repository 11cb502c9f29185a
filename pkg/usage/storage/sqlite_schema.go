package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the usage tables. Timestamps are unix nanoseconds in UTC so
// range filters compare as integers.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_log (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL DEFAULT '',
    timestamp INTEGER NOT NULL,
    account_id TEXT NOT NULL,
    model TEXT NOT NULL,

    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens INTEGER NOT NULL DEFAULT 0,
    cost_usd REAL NOT NULL DEFAULT 0,

    method TEXT NOT NULL DEFAULT '',
    request_path TEXT NOT NULL DEFAULT '',
    status_code INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL DEFAULT '',
    streamed BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_account_time ON usage_log(account_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_model ON usage_log(model);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const recordColumns = `id, request_id, timestamp, account_id, model,
	input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd,
	method, request_path, status_code, latency_ms, outcome, streamed`
