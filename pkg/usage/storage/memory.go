package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"keyrelay-hq/keyrelay/pkg/usage"
)

// MemoryStorage implements usage.Storage in memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*usage.Record
	closed  bool
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store saves a copy of record.
func (m *MemoryStorage) Store(ctx context.Context, record *usage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return usage.NewStorageError("memory", "store", errClosed)
	}
	for _, r := range m.records {
		if r.ID == record.ID {
			return usage.NewStorageError("memory", "store", errDuplicateID)
		}
	}
	cp := *record
	m.records = append(m.records, &cp)
	return nil
}

// Query returns copies of matching records, newest first.
func (m *MemoryStorage) Query(ctx context.Context, filter usage.Filter) ([]*usage.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, usage.NewStorageError("memory", "query", errClosed)
	}

	matched := []*usage.Record{}
	for _, r := range m.records {
		if matches(r, filter) {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*usage.Record{}, nil
		}
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = usage.DefaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Summary sums tokens and cost per account.
func (m *MemoryStorage) Summary(ctx context.Context, accountID string) ([]usage.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, usage.NewStorageError("memory", "summary", errClosed)
	}

	byAccount := map[string]*usage.Summary{}
	for _, r := range m.records {
		if accountID != "" && r.AccountID != accountID {
			continue
		}
		s, ok := byAccount[r.AccountID]
		if !ok {
			s = &usage.Summary{AccountID: r.AccountID}
			byAccount[r.AccountID] = s
		}
		s.Requests++
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.CostUSD += r.CostUSD
	}

	out := make([]usage.Summary, 0, len(byAccount))
	for _, s := range byAccount {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// DeleteBefore removes records with a timestamp strictly before cutoff.
func (m *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, usage.NewStorageError("memory", "delete", errClosed)
	}

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Ping reports whether the storage is open.
func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return usage.NewStorageError("memory", "ping", errClosed)
	}
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close marks the storage closed. Later calls fail.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func matches(r *usage.Record, f usage.Filter) bool {
	if f.AccountID != "" && r.AccountID != f.AccountID {
		return false
	}
	if f.Model != "" && r.Model != f.Model {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}
