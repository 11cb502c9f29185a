package accounts

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is the account registry. It owns the active-account invariant: every
// compound mutation runs under the write lock and GetActive under the read lock.
type Service struct {
	mu     sync.RWMutex
	repo   Repository
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		logger: slog.Default().With("component", "accounts"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// Create registers a new account. The first account created in an empty store
// becomes active.
func (s *Service) Create(ctx context.Context, name, baseURL, apiKey string) (Account, error) {
	a := Account{
		Name:    strings.TrimSpace(name),
		BaseURL: strings.TrimSpace(baseURL),
		APIKey:  strings.TrimSpace(apiKey),
	}
	if err := validate(a); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.newID()
	a.CreatedAt = s.now()

	stored, err := s.repo.Create(ctx, a)
	if err != nil {
		return Account{}, err
	}

	s.logger.Info("account created",
		"account_id", stored.ID,
		"name", stored.Name,
		"active", stored.IsActive,
	)
	return stored, nil
}

// List returns all accounts in creation order.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.List(ctx)
}

// Get returns the account with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.Get(ctx, id)
}

// Activate makes id the only active account. An unknown id leaves no account
// active; it is not an error.
func (s *Service) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Activate(ctx, id); err != nil {
		return err
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		s.logger.Warn("activated unknown account, no account is active now", "account_id", id)
		return nil
	}
	s.logger.Info("switched active account", "account_id", id)
	return nil
}

// Delete removes the account. Deleting the active account leaves none active.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", "account_id", id)
	return nil
}

// GetActive returns the active account, if any.
func (s *Service) GetActive(ctx context.Context) (Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.Active(ctx)
}

// Ping checks that the underlying repository is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func validate(a Account) error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if a.APIKey == "" {
		return &ValidationError{Field: "api_key", Message: "is required"}
	}
	if a.BaseURL == "" {
		return &ValidationError{Field: "base_url", Message: "is required"}
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return &ValidationError{Field: "base_url", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "base_url", Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "base_url", Message: "host is required"}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return &ValidationError{Field: "base_url", Message: "must not contain a query or fragment"}
	}
	return nil
}
