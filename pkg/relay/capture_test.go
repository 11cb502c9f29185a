package relay

import (
	"strings"
	"sync"
	"testing"
)

func TestCapture(t *testing.T) {
	tests := []struct {
		name          string
		limit         int64
		writes        []string
		wantBytes     string
		wantTotal     int64
		wantTruncated bool
	}{
		{"under limit", 16, []string{"hello", " world"}, "hello world", 11, false},
		{"exact limit", 5, []string{"hel", "lo"}, "hello", 5, false},
		{"over limit", 4, []string{"hel", "lo", "!"}, "hell", 6, true},
		{"disabled", 0, []string{"hello"}, "", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCapture(tt.limit)
			for _, w := range tt.writes {
				n, err := c.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := string(c.Bytes()); got != tt.wantBytes {
				t.Errorf("Bytes() = %q, want %q", got, tt.wantBytes)
			}
			if c.Total() != tt.wantTotal {
				t.Errorf("Total() = %d, want %d", c.Total(), tt.wantTotal)
			}
			if c.Truncated() != tt.wantTruncated {
				t.Errorf("Truncated() = %v, want %v", c.Truncated(), tt.wantTruncated)
			}
		})
	}

	if b := NewCapture(0).Bytes(); b != nil {
		t.Errorf("disabled capture Bytes() = %q, want nil", strings.TrimSpace(string(b)))
	}
}

func TestCapture_ConcurrentReads(t *testing.T) {
	c := NewCapture(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_, _ = c.Write([]byte("chunk"))
		}
	}()

	for i := 0; i < 1000; i++ {
		b := c.Bytes()
		if int64(len(b)) > 64 || c.Total() < int64(len(b)) {
			t.Fatalf("inconsistent snapshot: %d retained, %d total", len(b), c.Total())
		}
	}
	wg.Wait()

	snapshot := c.Bytes()
	_, _ = c.Write([]byte("more"))
	if string(snapshot) != string(c.Bytes()) {
		t.Error("snapshot changed after a later write")
	}
	if c.Total() != 5004 {
		t.Errorf("Total() = %d, want 5004", c.Total())
	}
}
