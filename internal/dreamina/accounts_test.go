package dreamina

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dreamina/internal/domain"
	"dreamina/internal/domain/jsoncfg"
)

type stubQuerier struct {
	balances map[string]int64
	calls    []string
}

func (q *stubQuerier) GetCredit(_ context.Context, acct *domain.Account) *domain.CreditSnapshot {
	q.calls = append(q.calls, acct.SessionID)
	return &domain.CreditSnapshot{TotalCredit: q.balances[acct.SessionID]}
}

func threeAccounts() []jsoncfg.AccountConfig {
	return []jsoncfg.AccountConfig{
		{SessionID: "sess-a", Description: "first"},
		{SessionID: "sess-b", Description: "second"},
		{SessionID: "sess-c", Description: "third"},
	}
}

func TestNewRouterRequiresAccounts(t *testing.T) {
	_, err := NewRouter(nil)
	require.ErrorIs(t, err, domain.ErrNoAccounts)

	_, err = NewRouter([]jsoncfg.AccountConfig{{Description: "no session"}})
	require.Error(t, err)
}

func TestRouterSelect(t *testing.T) {
	r, err := NewRouter(threeAccounts())
	require.NoError(t, err)
	require.Equal(t, "sess-a", r.Current().SessionID)

	acct, err := r.Select(2)
	require.NoError(t, err)
	require.Equal(t, "sess-c", acct.SessionID)
	require.Equal(t, 2, r.CurrentIndex())

	_, err = r.Select(3)
	require.ErrorIs(t, err, domain.ErrAccountIndex)
	_, err = r.Select(-1)
	require.ErrorIs(t, err, domain.ErrAccountIndex)
	require.Equal(t, 2, r.CurrentIndex(), "failed select must not move the cursor")
}

func TestFindWithSufficientCreditWalksFromCurrent(t *testing.T) {
	r, err := NewRouter(threeAccounts())
	require.NoError(t, err)
	_, err = r.Select(1)
	require.NoError(t, err)

	q := &stubQuerier{balances: map[string]int64{"sess-a": 10, "sess-b": 1, "sess-c": 8}}
	acct, err := r.FindWithSufficientCredit(context.Background(), q, 4)
	require.NoError(t, err)
	require.Equal(t, "sess-c", acct.SessionID, "walk starts at the active account")
	require.Equal(t, []string{"sess-b", "sess-c"}, q.calls)
	require.Equal(t, 2, r.CurrentIndex())
}

func TestFindWithSufficientCreditRestoresOnExhaustion(t *testing.T) {
	r, err := NewRouter(threeAccounts())
	require.NoError(t, err)
	_, err = r.Select(1)
	require.NoError(t, err)

	q := &stubQuerier{balances: map[string]int64{"sess-a": 1, "sess-b": 1, "sess-c": 1}}
	_, err = r.FindWithSufficientCredit(context.Background(), q, 4)
	require.ErrorIs(t, err, domain.ErrNoAccounts)
	require.Equal(t, 1, r.CurrentIndex(), "selection must be restored when every account falls short")
	require.Len(t, q.calls, 3)
}

func TestFindWithSufficientCreditFreePeriod(t *testing.T) {
	r, err := NewRouter(threeAccounts())
	require.NoError(t, err)

	q := &freePeriodQuerier{}
	acct, err := r.FindWithSufficientCredit(context.Background(), q, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, "sess-a", acct.SessionID, "free period satisfies any threshold")
}

type freePeriodQuerier struct{}

func (freePeriodQuerier) GetCredit(context.Context, *domain.Account) *domain.CreditSnapshot {
	return &domain.CreditSnapshot{IsFreePeriod: true}
}
