package handlers

import (
	"net/http"
	"strconv"
)

func (a *App) CreditGet(w http.ResponseWriter, r *http.Request) {
	snap := a.Client.GetCredit(r.Context(), a.Accounts.Current())
	expiring := make([]map[string]any, 0, len(snap.Expiring))
	for _, exp := range snap.Expiring {
		expiring = append(expiring, map[string]any{
			"amount":    exp.Amount,
			"expire_at": exp.ExpireAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"gift_credit":      snap.GiftCredit,
		"purchase_credit":  snap.PurchaseCredit,
		"vip_credit":       snap.VIPCredit,
		"total_credit":     snap.TotalCredit,
		"is_free_period":   snap.IsFreePeriod,
		"expiring_credits": expiring,
	})
}

func (a *App) CreditHistory(w http.ResponseWriter, r *http.Request) {
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	cursor := r.URL.Query().Get("cursor")

	history, err := a.Client.CreditHistory(r.Context(), a.Accounts.Current(), count, cursor)
	if err != nil {
		a.Logger.Error().Err(err).Msg("credit history failed")
		a.error(w, http.StatusBadGateway, "upstream", "failed to load credit history")
		return
	}
	records := make([]map[string]any, 0, len(history.Records))
	for _, rec := range history.Records {
		records = append(records, map[string]any{
			"title":        rec.Title,
			"amount":       rec.Amount,
			"create_time":  rec.CreateTime,
			"history_type": rec.HistoryType,
			"status":       rec.Status,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"records":      records,
		"next_cursor":  history.NextCursor,
		"has_more":     history.HasMore,
		"total_credit": history.TotalCredit,
	})
}

func (a *App) CreditReceive(w http.ResponseWriter, r *http.Request) {
	total, err := a.Client.ReceiveDailyCredit(r.Context(), a.Accounts.Current())
	if err != nil {
		a.Logger.Error().Err(err).Msg("daily credit claim failed")
		a.error(w, http.StatusBadGateway, "upstream", "failed to claim daily credit")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"total_credit": total})
}
