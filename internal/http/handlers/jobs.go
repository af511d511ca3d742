package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dreamina/internal/domain"
)

// JobGet runs a single status poll. Text jobs are addressed by submit id
// via the query string; edits by their history record id in the path.
func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	handle := domain.JobHandle{
		HistoryID: chi.URLParam(r, "historyID"),
		SubmitID:  r.URL.Query().Get("submit_id"),
	}
	if !handle.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "missing job identifier")
		return
	}

	status, err := a.Client.PollOnce(r.Context(), a.Accounts.Current(), handle)
	if err != nil {
		a.Logger.Error().Err(err).Str("history_id", handle.HistoryID).Msg("poll failed")
		a.error(w, http.StatusBadGateway, "upstream", "failed to poll job status")
		return
	}
	a.json(w, http.StatusOK, statusBody(status))
}
