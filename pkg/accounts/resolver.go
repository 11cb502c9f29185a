package accounts

import (
	"context"
	"fmt"
)

// ActiveSource is the read side the Resolver needs. *Service implements it.
type ActiveSource interface {
	GetActive(ctx context.Context) (Account, bool, error)
}

// Resolver answers "which account is active" for a single relayed request.
type Resolver struct {
	source ActiveSource
}

// NewResolver creates a Resolver over source.
func NewResolver(source ActiveSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns a value snapshot of the active account. The returned Account
// shares no memory with the store, so a concurrent Activate cannot change it.
// A storage failure is reported as ErrAccountUnavailable wrapping the cause.
func (r *Resolver) Resolve(ctx context.Context) (Account, error) {
	acct, ok, err := r.source.GetActive(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrAccountUnavailable, err)
	}
	if !ok {
		return Account{}, ErrAccountUnavailable
	}
	return acct, nil
}
