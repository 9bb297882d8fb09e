package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(otelchi.Middleware("seat-reservation-api", otelchi.WithChiRoutes(r)))
	r.Use(app.recoverPanic)
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(app.ensureGuestUserSession)

	r.Get("/health", app.GetHealth)

	r.Route("/showings/{showingId}", func(r chi.Router) {
		r.Get("/seats", app.withShowingID(app.GetSeatMapByShowing))
		r.Get("/seats/stream", app.withShowingID(app.StreamSeatUpdates))

		r.Route("/holds", func(r chi.Router) {
			r.Post("/", app.withShowingID(app.CreateHoldHandler))
			r.Post("/extend", app.withShowingID(app.ExtendHoldHandler))
			r.Post("/release", app.withShowingID(app.ReleaseHoldHandler))
			r.Post("/commit", app.withShowingID(app.CommitHoldHandler))
		})
	})

	return r
}
