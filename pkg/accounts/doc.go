// Package accounts manages the upstream API credentials the relay forwards through.
//
// # Overview
//
// An Account is a named credential set (base URL + API key). Exactly zero or one
// account is active at any observable instant; the relay always routes through the
// active one.
//
//   - Service: account registry with create/list/get/activate/delete
//   - Resolver: read path used by the relay, returns value snapshots
//   - Repository: persistence backend (MemoryRepository, SQLiteRepository)
//
// # Usage
//
//	repo, err := accounts.NewSQLiteRepository(accounts.SQLiteConfig{Path: "data/accounts.db"})
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//
//	svc := accounts.NewService(repo)
//	acct, err := svc.Create(ctx, "work", "https://api.anthropic.com", "sk-ant-...")
//
//	resolver := accounts.NewResolver(svc)
//	active, err := resolver.Resolve(ctx)
//	if errors.Is(err, accounts.ErrAccountUnavailable) {
//	    // no active account
//	}
//
// # Activation
//
// Activate deactivates every account and activates the requested one as a single
// compound operation. The Service holds its write lock across the whole sequence and
// GetActive takes the read lock, so a reader never observes two active accounts or a
// half-applied switch. Repositories additionally apply the sequence inside one
// transaction, which keeps the invariant when several processes share a database file.
//
// Activating an id that does not exist still deactivates every account, leaving none
// active. Deleting the active account leaves none active; there is no auto-promotion.
//
// # Thread Safety
//
// All Service and Resolver methods are safe for concurrent use.
package accounts
