package dreamina

import (
	"context"
	"encoding/json"

	"dreamina/internal/domain"
)

const (
	creditPath        = "/commerce/v1/benefits/user_credit"
	creditHistoryPath = "/commerce/v1/benefits/user_credit_history"
	creditReceivePath = "/commerce/v1/benefits/credit_receive"
)

type creditPayload struct {
	Credit struct {
		GiftCredit     int64 `json:"gift_credit"`
		PurchaseCredit int64 `json:"purchase_credit"`
		VIPCredit      int64 `json:"vip_credit"`
	} `json:"credit"`
	ExpiringCredits []struct {
		CreditAmount int64 `json:"credit_amount"`
		ExpireTime   int64 `json:"expire_time"`
	} `json:"expiring_credits"`
}

// GetCredit returns the account's balance. It never fails: any transport
// or protocol problem yields the free-period fallback so generation is
// not blocked by a flaky billing endpoint.
func (c *Client) GetCredit(ctx context.Context, acct *domain.Account) *domain.CreditSnapshot {
	env, err := c.postJSON(ctx, c.commerceURL, creditPath, nil, map[string]any{}, acct)
	if err != nil {
		c.logger.Warn().Err(err).Msg("credit query failed, assuming free period")
		return fallbackCredit()
	}

	var payload creditPayload
	if err := decodeCommerce(env, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("credit payload unreadable, assuming free period")
		return fallbackCredit()
	}

	snapshot := &domain.CreditSnapshot{
		GiftCredit:     payload.Credit.GiftCredit,
		PurchaseCredit: payload.Credit.PurchaseCredit,
		VIPCredit:      payload.Credit.VIPCredit,
	}
	snapshot.TotalCredit = snapshot.GiftCredit + snapshot.PurchaseCredit + snapshot.VIPCredit
	for _, exp := range payload.ExpiringCredits {
		snapshot.Expiring = append(snapshot.Expiring, domain.ExpiringCredit{
			Amount:   exp.CreditAmount,
			ExpireAt: exp.ExpireTime,
		})
	}
	return snapshot
}

// CreditHistory fetches one page of the account's credit ledger. cursor
// "0" starts from the newest entry.
func (c *Client) CreditHistory(ctx context.Context, acct *domain.Account, count int, cursor string) (*domain.CreditHistory, error) {
	if count <= 0 {
		count = 20
	}
	if cursor == "" {
		cursor = "0"
	}
	body := map[string]any{"count": count, "cursor": cursor}
	env, err := c.postJSON(ctx, c.commerceURL, creditHistoryPath, nil, body, acct)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Records []struct {
			Title       string `json:"title"`
			Amount      int64  `json:"amount"`
			CreateTime  int64  `json:"create_time"`
			HistoryType int    `json:"history_type"`
			Status      string `json:"status"`
		} `json:"records"`
		NewCursor   string `json:"new_cursor"`
		HasMore     bool   `json:"has_more"`
		TotalCredit int64  `json:"total_credit"`
	}
	if err := decodeCommerce(env, &payload); err != nil {
		return nil, &domain.ProtocolError{Op: creditHistoryPath, Err: err}
	}

	history := &domain.CreditHistory{
		NextCursor:  payload.NewCursor,
		HasMore:     payload.HasMore,
		TotalCredit: payload.TotalCredit,
	}
	for _, rec := range payload.Records {
		history.Records = append(history.Records, domain.CreditRecord{
			Title:       rec.Title,
			Amount:      rec.Amount,
			CreateTime:  rec.CreateTime,
			HistoryType: rec.HistoryType,
			Status:      rec.Status,
		})
	}
	return history, nil
}

// ReceiveDailyCredit claims the daily free credits and returns the new
// total balance.
func (c *Client) ReceiveDailyCredit(ctx context.Context, acct *domain.Account) (int64, error) {
	body := map[string]string{"time_zone": "Asia/Shanghai"}
	env, err := c.postJSON(ctx, c.commerceURL, creditReceivePath, nil, body, acct)
	if err != nil {
		return 0, err
	}
	var payload struct {
		ReceiveQuota    int64 `json:"receive_quota"`
		CurTotalCredits int64 `json:"cur_total_credits"`
	}
	if err := decodeCommerce(env, &payload); err != nil {
		return 0, &domain.ProtocolError{Op: creditReceivePath, Err: err}
	}
	c.logger.Info().
		Int64("received", payload.ReceiveQuota).
		Int64("total", payload.CurTotalCredits).
		Str("account", acct.MaskedSessionID()).
		Msg("daily credit received")
	return payload.CurTotalCredits, nil
}

// decodeCommerce unwraps a commerce envelope. These endpoints put their
// payload in the stringified response field, with data as a fallback.
func decodeCommerce(env *apiEnvelope, out any) error {
	if env.Response != "" {
		if json.Unmarshal([]byte(env.Response), out) == nil {
			return nil
		}
	}
	return json.Unmarshal(env.Data, out)
}

func fallbackCredit() *domain.CreditSnapshot {
	return &domain.CreditSnapshot{
		GiftCredit:   999999,
		TotalCredit:  999999,
		IsFreePeriod: true,
	}
}
