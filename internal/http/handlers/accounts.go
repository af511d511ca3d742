package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dreamina/internal/domain"
)

func (a *App) AccountsList(w http.ResponseWriter, r *http.Request) {
	current := a.Accounts.CurrentIndex()
	items := make([]map[string]any, 0, a.Accounts.Count())
	for i, acct := range a.Accounts.List() {
		items = append(items, map[string]any{
			"index":       i,
			"description": acct.Description,
			"session":     acct.MaskedSessionID(),
			"active":      i == current,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) AccountsSelect(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "index must be an integer")
		return
	}
	acct, err := a.Accounts.Select(index)
	if err != nil {
		if errors.Is(err, domain.ErrAccountIndex) {
			a.error(w, http.StatusNotFound, "not_found", "no account at that index")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to select account")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"index":       index,
		"description": acct.Description,
		"session":     acct.MaskedSessionID(),
	})
}
