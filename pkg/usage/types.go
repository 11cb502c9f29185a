package usage

import (
	"context"
	"time"
)

// Record is one relayed request attributed to an account.
type Record struct {
	// Identity
	ID        string `json:"id"`         // UUID v4
	RequestID string `json:"request_id"` // X-Request-ID of the relayed call

	Timestamp time.Time `json:"timestamp"` // When the request was received
	AccountID string    `json:"account_id"`
	Model     string    `json:"model"`

	// Token usage reported by the upstream
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadTokens     int64 `json:"cache_read_input_tokens"`

	CostUSD float64 `json:"cost_usd"`

	// Request metadata
	Method      string `json:"method"`
	RequestPath string `json:"request_path"`
	StatusCode  int    `json:"status_code"`
	LatencyMS   int64  `json:"latency_ms"`
	Outcome     string `json:"outcome"` // forwarded, upstream_failure, canceled
	Streamed    bool   `json:"streamed"`
}

// Filter selects records. Zero values do not filter.
type Filter struct {
	AccountID string
	Model     string
	Since     time.Time
	Until     time.Time

	// Limit caps the number of records returned. Default: 100
	Limit  int
	Offset int
}

// Summary aggregates usage for one account.
type Summary struct {
	AccountID    string  `json:"account_id"`
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Storage persists usage records.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns matching records, newest first.
	Query(ctx context.Context, filter Filter) ([]*Record, error)

	// Summary sums tokens and cost per account. An empty accountID returns
	// every account, ordered by account ID.
	Summary(ctx context.Context, accountID string) ([]Summary, error)

	// DeleteBefore removes records older than cutoff and returns the count.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the storage backend.
	Close() error
}

// DefaultQueryLimit applies when Filter.Limit is zero.
const DefaultQueryLimit = 100
