package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"keyrelay-hq/keyrelay/pkg/relay"
	"keyrelay-hq/keyrelay/pkg/usage"
)

// Config contains configuration for the usage recorder.
type Config struct {
	// Enabled enables usage recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// Pricing prices token counts. Default: usage.DefaultPricing()
	Pricing usage.Pricing

	// OnRecord, if set, runs in the worker after each successful write.
	OnRecord func(*usage.Record)
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
		Pricing:      usage.DefaultPricing(),
	}
}

// Recorder records usage for relayed requests.
type Recorder struct {
	storage usage.Storage
	config  *Config
	queue   chan *relay.Outcome
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger

	recorded atomic.Int64
	dropped  atomic.Int64
}

var _ relay.Hook = (*Recorder)(nil)

// NewRecorder creates a recorder writing to storage and starts its worker.
func NewRecorder(storage usage.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.Pricing == nil {
		config.Pricing = usage.DefaultPricing()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		queue:   make(chan *relay.Outcome, config.AsyncBuffer),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "usage.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("usage recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
		"priced_models", len(config.Pricing),
	)
	return r
}

// AfterRelay enqueues o for recording. It never blocks. Exchanges that never
// reached an account are ignored.
func (r *Recorder) AfterRelay(ctx context.Context, o *relay.Outcome) {
	if !r.config.Enabled || o.AccountID == "" {
		return
	}

	select {
	case <-r.done:
		r.dropped.Add(1)
		r.logger.Warn("recorder shut down, dropping usage record", "request_id", o.RequestID)
		return
	default:
	}

	select {
	case r.queue <- o:
	default:
		r.dropped.Add(1)
		r.logger.Error("usage channel full, dropping record",
			"request_id", o.RequestID,
			"account_id", o.AccountID,
			"channel_capacity", r.config.AsyncBuffer,
		)
	}
}

// Recorded returns how many records were written.
func (r *Recorder) Recorded() int64 { return r.recorded.Load() }

// Dropped returns how many records were discarded because the buffer was
// full or the recorder was closed.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Pending returns the number of queued outcomes.
func (r *Recorder) Pending() int { return len(r.queue) }

// Close stops the worker after draining queued outcomes. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.logger.Info("shutting down usage recorder")
		close(r.done)
		r.wg.Wait()
		r.logger.Info("usage recorder shut down complete",
			"recorded", r.recorded.Load(),
			"dropped", r.dropped.Load(),
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case o := <-r.queue:
			r.write(o)
		case <-r.done:
			r.logger.Debug("draining usage channel before shutdown", "pending_count", len(r.queue))
			for {
				select {
				case o := <-r.queue:
					r.write(o)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(o *relay.Outcome) {
	rec := r.Build(o)

	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, rec); err != nil {
		r.logger.Error("failed to store usage record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"error", err,
		)
		return
	}
	r.recorded.Add(1)

	duration := time.Since(start)
	r.logger.Debug("usage recorded",
		"record_id", rec.ID,
		"account_id", rec.AccountID,
		"model", rec.Model,
		"input_tokens", rec.InputTokens,
		"output_tokens", rec.OutputTokens,
		"cost_usd", rec.CostUSD,
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow usage write",
			"record_id", rec.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}

	if r.config.OnRecord != nil {
		r.config.OnRecord(rec)
	}
}

// Build converts an outcome into a priced usage record.
func (r *Recorder) Build(o *relay.Outcome) *usage.Record {
	var contentType string
	if o.Header != nil {
		contentType = o.Header.Get("Content-Type")
	}
	tokens := usage.Extract(o.RequestBody, o.ResponseBody, contentType)

	model := tokens.Model
	if model == "" {
		model = "unknown"
	}

	return &usage.Record{
		ID:                  uuid.New().String(),
		RequestID:           o.RequestID,
		Timestamp:           o.Started.UTC(),
		AccountID:           o.AccountID,
		Model:               model,
		InputTokens:         tokens.InputTokens,
		OutputTokens:        tokens.OutputTokens,
		CacheCreationTokens: tokens.CacheCreationTokens,
		CacheReadTokens:     tokens.CacheReadTokens,
		CostUSD:             r.config.Pricing.Cost(tokens),
		Method:              o.Method,
		RequestPath:         o.Path,
		StatusCode:          o.StatusCode,
		LatencyMS:           o.Duration.Milliseconds(),
		Outcome:             string(o.Kind),
		Streamed:            tokens.Streamed,
	}
}
