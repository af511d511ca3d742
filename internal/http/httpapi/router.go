package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dreamina/internal/http/handlers"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)

	r.Get("/api/health", app.Health)

	r.Route("/api/accounts", func(r chi.Router) {
		r.Get("/", app.AccountsList)
		r.Post("/{index}/select", app.AccountsSelect)
	})

	r.Route("/api/credit", func(r chi.Router) {
		r.Get("/", app.CreditGet)
		r.Get("/history", app.CreditHistory)
		r.Post("/receive", app.CreditReceive)
	})

	r.Route("/api/generate", func(r chi.Router) {
		r.Post("/t2i", app.GenerateText)
		r.Post("/i2i", app.GenerateFromImages)
	})

	r.Get("/api/jobs/{historyID}", app.JobGet)

	return r
}
