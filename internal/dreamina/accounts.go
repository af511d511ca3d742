package dreamina

import (
	"context"
	"fmt"
	"sync"

	"dreamina/internal/domain"
	"dreamina/internal/domain/jsoncfg"
)

// CreditQuerier reports an account's credit balance. *Client satisfies it;
// tests substitute cheaper implementations.
type CreditQuerier interface {
	GetCredit(ctx context.Context, acct *domain.Account) *domain.CreditSnapshot
}

// Router tracks the configured accounts and which one is active. All
// methods are safe for concurrent use; callers receive account pointers
// that stay valid for the router's lifetime.
type Router struct {
	mu       sync.Mutex
	accounts []*domain.Account
	current  int
}

// NewRouter builds a router from configured accounts, preserving their
// order. The first account starts active.
func NewRouter(configs []jsoncfg.AccountConfig) (*Router, error) {
	if len(configs) == 0 {
		return nil, domain.ErrNoAccounts
	}
	accounts := make([]*domain.Account, 0, len(configs))
	for i, cfg := range configs {
		if cfg.SessionID == "" {
			return nil, fmt.Errorf("dreamina: account %d: missing sessionid", i+1)
		}
		accounts = append(accounts, &domain.Account{
			SessionID:   cfg.SessionID,
			Description: cfg.Description,
		})
	}
	return &Router{accounts: accounts}, nil
}

// Current returns the active account.
func (r *Router) Current() *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[r.current]
}

// Select makes the account at index (zero-based) active.
func (r *Router) Select(index int) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.accounts) {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrAccountIndex, index, len(r.accounts))
	}
	r.current = index
	return r.accounts[index], nil
}

// List returns the accounts in configuration order.
func (r *Router) List() []*domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Count reports the number of configured accounts.
func (r *Router) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// CurrentIndex reports the zero-based index of the active account.
func (r *Router) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// FindWithSufficientCredit walks the accounts starting from the active one
// and selects the first whose balance meets threshold. The previous
// selection is restored when every account falls short, and ErrNoAccounts
// is returned so the caller can surface the exhaustion.
func (r *Router) FindWithSufficientCredit(ctx context.Context, querier CreditQuerier, threshold int64) (*domain.Account, error) {
	r.mu.Lock()
	start := r.current
	accounts := make([]*domain.Account, len(r.accounts))
	copy(accounts, r.accounts)
	r.mu.Unlock()

	for i := 0; i < len(accounts); i++ {
		idx := (start + i) % len(accounts)
		snapshot := querier.GetCredit(ctx, accounts[idx])
		if snapshot == nil {
			continue
		}
		if snapshot.TotalCredit >= threshold || snapshot.IsFreePeriod {
			r.mu.Lock()
			r.current = idx
			r.mu.Unlock()
			return accounts[idx], nil
		}
		if err := ctx.Err(); err != nil {
			break
		}
	}

	r.mu.Lock()
	r.current = start
	r.mu.Unlock()
	return nil, fmt.Errorf("dreamina: no account with %d credits: %w", threshold, domain.ErrNoAccounts)
}
