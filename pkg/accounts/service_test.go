package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// newTestService returns a Service with deterministic ids and clock.
func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()

	svc := NewService(repo)
	var n int
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.newID = func() string {
		n++
		return fmt.Sprintf("acct-%03d", n)
	}
	svc.now = func() time.Time {
		return base.Add(time.Duration(n) * time.Second)
	}
	return svc
}

func countActive(t *testing.T, svc *Service) int {
	t.Helper()

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	active := 0
	for _, a := range list {
		if a.IsActive {
			active++
		}
	}
	return active
}

func TestService_CreateFirstAccountIsActive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryRepository())

	first, err := svc.Create(ctx, "Work", "https://api.anthropic.com", "sk-work")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if !first.IsActive {
		t.Error("first account should be active")
	}

	second, err := svc.Create(ctx, "Personal", "https://api.anthropic.com", "sk-personal")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if second.IsActive {
		t.Error("second account should not be active")
	}

	active, ok, err := svc.GetActive(ctx)
	if err != nil || !ok {
		t.Fatalf("GetActive() = %v, %v", ok, err)
	}
	if active.ID != first.ID {
		t.Errorf("active account = %s, want %s", active.ID, first.ID)
	}
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		acct    [3]string
		field   string
		wantErr bool
	}{
		{"valid", [3]string{"a", "https://api.example.com", "k"}, "", false},
		{"valid http with path", [3]string{"a", "http://127.0.0.1:9000/v1", "k"}, "", false},
		{"blank name", [3]string{"   ", "https://api.example.com", "k"}, "name", true},
		{"empty key", [3]string{"a", "https://api.example.com", ""}, "api_key", true},
		{"empty url", [3]string{"a", "", "k"}, "base_url", true},
		{"relative url", [3]string{"a", "api.example.com", "k"}, "base_url", true},
		{"ftp scheme", [3]string{"a", "ftp://api.example.com", "k"}, "base_url", true},
		{"query string", [3]string{"a", "https://api.example.com?x=1", "k"}, "base_url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, NewMemoryRepository())
			_, err := svc.Create(context.Background(), tt.acct[0], tt.acct[1], tt.acct[2])
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestService_CreateTrimsInput(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())

	a, err := svc.Create(context.Background(), "  Work ", " https://api.example.com ", " sk-1 ")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if a.Name != "Work" || a.BaseURL != "https://api.example.com" || a.APIKey != "sk-1" {
		t.Errorf("Create() did not trim input: %+v", a)
	}
}

func TestService_Activate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryRepository())

	a, _ := svc.Create(ctx, "A", "https://a.example.com", "ka")
	b, _ := svc.Create(ctx, "B", "https://b.example.com", "kb")
	c, _ := svc.Create(ctx, "C", "https://c.example.com", "kc")

	for _, id := range []string{b.ID, c.ID, a.ID, a.ID} {
		if err := svc.Activate(ctx, id); err != nil {
			t.Fatalf("Activate(%s) failed: %v", id, err)
		}
		active, ok, err := svc.GetActive(ctx)
		if err != nil || !ok {
			t.Fatalf("GetActive() = %v, %v", ok, err)
		}
		if active.ID != id {
			t.Errorf("active = %s, want %s", active.ID, id)
		}
		if n := countActive(t, svc); n != 1 {
			t.Errorf("active count = %d, want 1", n)
		}
	}
}

func TestService_ActivateUnknownClearsActive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryRepository())

	if _, err := svc.Create(ctx, "A", "https://a.example.com", "ka"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err := svc.Activate(ctx, "does-not-exist"); err != nil {
		t.Fatalf("Activate() returned error for unknown id: %v", err)
	}

	if _, ok, _ := svc.GetActive(ctx); ok {
		t.Error("expected no active account after activating an unknown id")
	}
	if n := countActive(t, svc); n != 0 {
		t.Errorf("active count = %d, want 0", n)
	}
}

func TestService_DeleteActive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryRepository())

	a, _ := svc.Create(ctx, "A", "https://a.example.com", "ka")
	b, _ := svc.Create(ctx, "B", "https://b.example.com", "kb")

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, ok, _ := svc.GetActive(ctx); ok {
		t.Error("deleting the active account should leave none active")
	}

	if _, err := svc.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting an unknown id is a no-op
	if err := svc.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete(unknown) error = %v", err)
	}

	list, _ := svc.List(ctx)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("List() = %+v, want only %s", list, b.ID)
	}
}

func TestService_ListOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryRepository())

	var want []string
	for i := 0; i < 5; i++ {
		a, err := svc.Create(ctx, fmt.Sprintf("n%d", i), "https://x.example.com", "k")
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		want = append(want, a.ID)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != len(want) {
		t.Fatalf("len(List()) = %d, want %d", len(list), len(want))
	}
	for i, a := range list {
		if a.ID != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, a.ID, want[i])
		}
	}
}

// TestService_ConcurrentActivateAndRead checks that readers never observe a
// state with zero or two active accounts while activations race.
func TestService_ConcurrentActivateAndRead(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	var ids []string
	for i := 0; i < 4; i++ {
		a, err := svc.Create(ctx, fmt.Sprintf("acct-%d", i), "https://x.example.com", "k")
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		ids = append(ids, a.ID)
	}

	valid := make(map[string]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 64)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if err := svc.Activate(ctx, ids[(w+i)%len(ids)]); err != nil {
					errCh <- err
					return
				}
			}
		}(w)
	}

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				a, ok, err := svc.GetActive(ctx)
				if err != nil {
					errCh <- err
					return
				}
				if !ok {
					errCh <- errors.New("observed no active account")
					return
				}
				if !valid[a.ID] {
					errCh <- fmt.Errorf("observed unknown active id %q", a.ID)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	if n := countActive(t, svc); n != 1 {
		t.Errorf("active count = %d, want 1", n)
	}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryRepository())
	resolver := NewResolver(svc)

	if _, err := resolver.Resolve(ctx); !errors.Is(err, ErrAccountUnavailable) {
		t.Fatalf("Resolve() on empty registry error = %v, want ErrAccountUnavailable", err)
	}

	a, _ := svc.Create(ctx, "A", "https://a.example.com", "ka")
	b, _ := svc.Create(ctx, "B", "https://b.example.com", "kb")

	got, err := resolver.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("Resolve() = %s, want %s", got.ID, a.ID)
	}

	// The snapshot is unaffected by a later switch
	if err := svc.Activate(ctx, b.ID); err != nil {
		t.Fatalf("Activate() failed: %v", err)
	}
	if got.ID != a.ID || got.APIKey != "ka" {
		t.Errorf("snapshot changed after Activate: %+v", got)
	}
}

type failingSource struct{ err error }

func (f failingSource) GetActive(context.Context) (Account, bool, error) {
	return Account{}, false, f.err
}

func TestResolver_StorageError(t *testing.T) {
	cause := NewStorageError("sqlite", "active", errors.New("disk I/O error"))
	resolver := NewResolver(failingSource{err: cause})

	_, err := resolver.Resolve(context.Background())
	if !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("error = %v, want ErrAccountUnavailable", err)
	}
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Errorf("error should wrap *StorageError, got %T", err)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"sk-ant-abcdef123456", "sk-a***********3456"},
	}
	for _, tt := range tests {
		if got := MaskKey(tt.in); got != tt.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
