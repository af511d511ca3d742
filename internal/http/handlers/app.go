package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"dreamina/internal/domain"
	"dreamina/internal/domain/jsoncfg"
	"dreamina/internal/dreamina"
	"dreamina/internal/infra"
)

// Generator is the slice of the vendor client the handlers need. Narrow on
// purpose so tests can stub it without spinning up the full client.
type Generator interface {
	Generate(ctx context.Context, acct *domain.Account, req *domain.GenerationRequest) (domain.JobStatus, error)
	PollOnce(ctx context.Context, acct *domain.Account, handle domain.JobHandle) (domain.JobStatus, error)
	GetCredit(ctx context.Context, acct *domain.Account) *domain.CreditSnapshot
	CreditHistory(ctx context.Context, acct *domain.Account, count int, cursor string) (*domain.CreditHistory, error)
	ReceiveDailyCredit(ctx context.Context, acct *domain.Account) (int64, error)
	Params() *jsoncfg.Params
}

type App struct {
	Client   Generator
	Accounts *dreamina.Router
	Logger   *infra.Logger

	validate *validator.Validate
}

func NewApp(client Generator, accounts *dreamina.Router, logger *infra.Logger) *App {
	return &App{
		Client:   client,
		Accounts: accounts,
		Logger:   logger,
		validate: validator.New(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error":   slug,
		"message": message,
	})
}

// statusBody flattens a job status into the wire shape shared by the
// generate and poll endpoints.
func statusBody(status domain.JobStatus) map[string]any {
	body := map[string]any{
		"state":      status.State.String(),
		"image_urls": status.ImageURLs,
	}
	if status.FailCode != "" {
		body["fail_code"] = status.FailCode
		body["fail_message"] = status.FailMessage
	}
	if status.Queue != nil {
		body["queue"] = map[string]any{
			"position":    status.Queue.Position,
			"length":      status.Queue.Length,
			"eta_seconds": status.Queue.ETASeconds,
		}
	}
	return body
}
