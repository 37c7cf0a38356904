package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(apiHandler *APIHandler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/sessions", apiHandler.CreateSessionHandler)
		r.Get("/search", apiHandler.SearchHandler)

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.SessionAuthMiddleware)

			r.Post("/conversation", apiHandler.ConversationHandler)
			r.Get("/conversation/summary", apiHandler.ConversationSummaryHandler)
			r.Post("/conversation/preferences", apiHandler.PreferencesHandler)

			r.Post("/recommendations", apiHandler.RecommendationsHandler)
			r.Post("/recommendations/track", apiHandler.TrackHandler)
			r.Get("/recommendations/behavior", apiHandler.BehaviorHandler)
		})
	})

	return r
}
