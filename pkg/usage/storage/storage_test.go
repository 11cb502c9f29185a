package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"keyrelay-hq/keyrelay/pkg/usage"
)

// createTempDB creates a temporary SQLite database for testing.
func createTempDB(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "usage.db")
	s, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         dbPath,
		MaxOpenConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

// backends runs fn against every Storage implementation.
func backends(t *testing.T, fn func(t *testing.T, s usage.Storage)) {
	t.Run("sqlite", func(t *testing.T) {
		s, _ := createTempDB(t)
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStorage())
	})
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id, account string, offset time.Duration, in, out int64, cost float64) *usage.Record {
	return &usage.Record{
		ID:           id,
		RequestID:    "req-" + id,
		Timestamp:    base.Add(offset),
		AccountID:    account,
		Model:        "claude-sonnet-4-20250514",
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      cost,
		Method:       "POST",
		RequestPath:  "/v1/messages",
		StatusCode:   200,
		LatencyMS:    42,
		Outcome:      "forwarded",
		Streamed:     true,
	}
}

func seed(t *testing.T, s usage.Storage) {
	t.Helper()

	ctx := context.Background()
	recs := []*usage.Record{
		record("r1", "acct-a", 0, 10, 20, 0.5),
		record("r2", "acct-b", time.Minute, 5, 5, 0.25),
		record("r3", "acct-a", 2*time.Minute, 30, 40, 1.0),
		record("r4", "acct-a", 3*time.Minute, 1, 1, 0.01),
	}
	recs[3].Model = "claude-3-5-haiku-20241022"
	for _, r := range recs {
		if err := s.Store(ctx, r); err != nil {
			t.Fatalf("Store(%s) failed: %v", r.ID, err)
		}
	}
}

func ids(recs []*usage.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestSQLiteStorage_Initialize(t *testing.T) {
	_, dbPath := createTempDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(&SQLiteConfig{})
	var serr *usage.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *usage.StorageError", err)
	}
}

func TestStorage_StoreAndQuery(t *testing.T) {
	backends(t, func(t *testing.T, s usage.Storage) {
		seed(t, s)

		got, err := s.Query(context.Background(), usage.Filter{})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		want := []string{"r4", "r3", "r2", "r1"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("Query() order = %v, want %v", ids(got), want)
		}

		r := got[1]
		if r.AccountID != "acct-a" || r.InputTokens != 30 || r.OutputTokens != 40 || r.CostUSD != 1.0 {
			t.Errorf("record r3 = %+v", r)
		}
		if !r.Timestamp.Equal(base.Add(2*time.Minute)) {
			t.Errorf("Timestamp = %v, want %v", r.Timestamp, base.Add(2*time.Minute))
		}
		if !r.Streamed || r.StatusCode != 200 || r.RequestPath != "/v1/messages" || r.RequestID != "req-r3" {
			t.Errorf("metadata not round-tripped: %+v", r)
		}
	})
}

func TestStorage_QueryFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter usage.Filter
		want   []string
	}{
		{"by account", usage.Filter{AccountID: "acct-a"}, []string{"r4", "r3", "r1"}},
		{"by model", usage.Filter{Model: "claude-3-5-haiku-20241022"}, []string{"r4"}},
		{"since", usage.Filter{Since: base.Add(2 * time.Minute)}, []string{"r4", "r3"}},
		{"until", usage.Filter{Until: base.Add(time.Minute)}, []string{"r2", "r1"}},
		{"limit", usage.Filter{Limit: 2}, []string{"r4", "r3"}},
		{"offset", usage.Filter{Limit: 2, Offset: 2}, []string{"r2", "r1"}},
		{"no match", usage.Filter{AccountID: "nobody"}, []string{}},
	}

	backends(t, func(t *testing.T, s usage.Storage) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.Query(context.Background(), tt.filter)
				if err != nil {
					t.Fatalf("Query() failed: %v", err)
				}
				if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
					t.Errorf("Query() = %v, want %v", ids(got), tt.want)
				}
			})
		}
	})
}

func TestStorage_Summary(t *testing.T) {
	backends(t, func(t *testing.T, s usage.Storage) {
		ctx := context.Background()

		empty, err := s.Summary(ctx, "")
		if err != nil {
			t.Fatalf("Summary() on empty storage failed: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("Summary() on empty storage = %+v", empty)
		}

		seed(t, s)

		all, err := s.Summary(ctx, "")
		if err != nil {
			t.Fatalf("Summary() failed: %v", err)
		}
		if len(all) != 2 || all[0].AccountID != "acct-a" || all[1].AccountID != "acct-b" {
			t.Fatalf("Summary() = %+v", all)
		}
		a := all[0]
		if a.Requests != 3 || a.InputTokens != 41 || a.OutputTokens != 61 {
			t.Errorf("acct-a summary = %+v", a)
		}
		if diff := a.CostUSD - 1.51; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("acct-a cost = %v, want 1.51", a.CostUSD)
		}

		one, err := s.Summary(ctx, "acct-b")
		if err != nil {
			t.Fatalf("Summary(acct-b) failed: %v", err)
		}
		if len(one) != 1 || one[0].Requests != 1 || one[0].InputTokens != 5 {
			t.Errorf("Summary(acct-b) = %+v", one)
		}
	})
}

func TestStorage_DeleteBefore(t *testing.T) {
	backends(t, func(t *testing.T, s usage.Storage) {
		ctx := context.Background()
		seed(t, s)

		deleted, err := s.DeleteBefore(ctx, base.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("DeleteBefore() failed: %v", err)
		}
		if deleted != 2 {
			t.Errorf("deleted = %d, want 2", deleted)
		}

		got, _ := s.Query(ctx, usage.Filter{})
		if fmt.Sprint(ids(got)) != fmt.Sprint([]string{"r4", "r3"}) {
			t.Errorf("remaining = %v", ids(got))
		}

		deleted, _ = s.DeleteBefore(ctx, base)
		if deleted != 0 {
			t.Errorf("second DeleteBefore() = %d, want 0", deleted)
		}
	})
}

func TestStorage_DuplicateID(t *testing.T) {
	backends(t, func(t *testing.T, s usage.Storage) {
		ctx := context.Background()
		r := record("dup", "acct-a", 0, 1, 1, 0)
		if err := s.Store(ctx, r); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
		var serr *usage.StorageError
		if err := s.Store(ctx, r); !errors.As(err, &serr) {
			t.Errorf("duplicate Store() error = %v, want *usage.StorageError", err)
		}
	})
}

func TestSQLiteStorage_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(&SQLiteConfig{Path: dbPath, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}
	seed(t, s)
	s.Close()

	reopened, err := NewSQLiteStorage(&SQLiteConfig{Path: dbPath, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Query(ctx, usage.Filter{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("records after reopen = %d, want 4", len(got))
	}
}

func TestMemoryStorage_Closed(t *testing.T) {
	s := NewMemoryStorage()
	s.Close()

	if err := s.Store(context.Background(), record("x", "a", 0, 0, 0, 0)); err == nil {
		t.Error("Store() after Close should fail")
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close should fail")
	}
}
