package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager tries each provider in order and caches what it finds.
type Manager struct {
	providers []Provider
	cache     *Cache
	logger    *slog.Logger
}

// NewManager creates a manager over providers, tried in the given order.
func NewManager(providers []Provider, cacheCfg CacheConfig) *Manager {
	return &Manager{
		providers: providers,
		cache:     NewCache(cacheCfg),
		logger:    slog.Default().With("component", "secrets"),
	}
}

// Get returns the first value any supporting provider yields.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	if v, ok := m.cache.Get(name); ok {
		return v, nil
	}

	var lastErr error
	for _, p := range m.providers {
		if !p.Supports(name) {
			continue
		}
		v, err := p.Get(ctx, name)
		if err != nil {
			lastErr = err
			m.logger.DebugContext(ctx, "secret provider miss",
				"provider", p.Name(),
				"name", redactName(name),
				"error", err,
			)
			continue
		}
		m.cache.Set(name, v)
		m.logger.DebugContext(ctx, "secret resolved", "provider", p.Name(), "name", redactName(name))
		return v, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Resolve replaces every ${secret:name} in input with its value. Strings
// without references are returned unchanged. Unresolved references are
// left in place and reported together in the error.
func (m *Manager) Resolve(ctx context.Context, input string) (string, error) {
	var failed []string
	out := refPattern.ReplaceAllStringFunc(input, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		v, err := m.Get(ctx, name)
		if err != nil {
			failed = append(failed, err.Error())
			return ref
		}
		return v
	})
	if len(failed) > 0 {
		return out, fmt.Errorf("resolve secret references: %s", strings.Join(failed, "; "))
	}
	return out, nil
}

// Refresh refreshes every refreshable provider and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		if r, ok := p.(Refreshable); ok {
			if err := r.Refresh(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	m.cache.Clear()
	return errors.Join(errs...)
}

// List returns the de-duplicated secret names across providers.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range m.providers {
		list, err := p.List(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "failed to list secrets", "provider", p.Name(), "error", err)
			continue
		}
		for _, n := range list {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}
	return names, nil
}

// Close closes every provider that holds resources.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
