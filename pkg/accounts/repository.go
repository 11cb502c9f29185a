package accounts

import (
	"context"
	"sort"
	"sync"
)

// Repository persists accounts. Implementations must apply Create and Activate
// atomically; the Service adds in-process serialization on top.
type Repository interface {
	// Create stores the account, setting IsActive iff the repository was empty
	// before the insert, and returns the stored record.
	Create(ctx context.Context, a Account) (Account, error)

	// List returns all accounts ordered by CreatedAt, then ID.
	List(ctx context.Context) ([]Account, error)

	// Get returns the account with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (Account, error)

	// Activate clears IsActive on every account and sets it on id, if present.
	Activate(ctx context.Context, id string) error

	// Delete removes the account. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// Active returns the active account, if any.
	Active(ctx context.Context) (Account, bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// MemoryRepository is a non-persistent Repository, used for tests and the
// "memory" store backend.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]Account),
	}
}

// Create implements Repository.
func (m *MemoryRepository) Create(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.IsActive = len(m.accounts) == 0
	m.accounts[a.ID] = a
	return a, nil
}

// List implements Repository.
func (m *MemoryRepository) List(_ context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sortAccounts(out)
	return out, nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(_ context.Context, id string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

// Activate implements Repository.
func (m *MemoryRepository) Activate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, a := range m.accounts {
		a.IsActive = key == id
		m.accounts[key] = a
	}
	return nil
}

// Delete implements Repository.
func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.accounts, id)
	return nil
}

// Active implements Repository.
func (m *MemoryRepository) Active(_ context.Context) (Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if a.IsActive {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}

// Ping implements Repository.
func (m *MemoryRepository) Ping(context.Context) error { return nil }

// Close implements Repository.
func (m *MemoryRepository) Close() error { return nil }

func sortAccounts(list []Account) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
