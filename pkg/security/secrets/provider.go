// Package secrets resolves ${secret:name} references used in keyrelay
// configuration and account API keys.
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// Get retrieves a secret by name.
	Get(ctx context.Context, name string) (string, error)

	// List returns the secret names the provider can serve. Values are
	// never included.
	List(ctx context.Context) ([]string, error)

	// Name identifies the provider in logs ("env", "file").
	Name() string

	// Supports reports whether the provider may hold name.
	Supports(name string) bool
}

// Refreshable providers can drop cached values without a restart.
type Refreshable interface {
	Provider

	Refresh(ctx context.Context) error
}
