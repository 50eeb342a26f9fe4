package http

import (
	"context"
	"log/slog"
	"net/http"

	"eventlisting/internal/delivery/http/controllers"
	"eventlisting/internal/delivery/http/helpers"
	"eventlisting/internal/delivery/http/middleware"
	"eventlisting/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterDeps bundles what NewRouter wires together.
type RouterDeps struct {
	Events   *controllers.EventController
	Requests *controllers.RequestController
	Admin    *controllers.AdminController
	Public   *controllers.PublicController

	Verifier  domain.TokenVerifier
	AdminRole string
	Logger    *slog.Logger

	// Metrics serves the Prometheus scrape endpoint when set.
	Metrics http.Handler

	// Ping backs /health when set.
	Ping func(ctx context.Context) error
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(d RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(d.Verifier, d.Logger)
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireRole(d.AdminRole)(next))
	}

	// Initiator
	mux.HandleFunc("POST /me/events", auth(d.Events.CreateEvent))
	mux.HandleFunc("GET /me/events", auth(d.Events.ListEvents))
	mux.HandleFunc("GET /me/events/{eventID}", auth(d.Events.GetEvent))
	mux.HandleFunc("PATCH /me/events/{eventID}", auth(d.Events.UpdateEvent))
	mux.HandleFunc("GET /me/events/{eventID}/requests", auth(d.Events.ListEventRequests))
	mux.HandleFunc("PATCH /me/events/{eventID}/requests", auth(d.Events.ResolveEventRequests))

	// Requester
	mux.HandleFunc("GET /me/requests", auth(d.Requests.ListRequests))
	mux.HandleFunc("POST /me/requests", auth(d.Requests.CreateRequest))
	mux.HandleFunc("PATCH /me/requests/{requestID}/cancel", auth(d.Requests.CancelRequest))

	// Admin
	mux.HandleFunc("GET /admin/events", admin(d.Admin.SearchEvents))
	mux.HandleFunc("PATCH /admin/events/{eventID}", admin(d.Admin.UpdateEvent))

	// Public
	mux.HandleFunc("GET /events", d.Public.SearchEvents)
	mux.HandleFunc("GET /events/{eventID}", d.Public.GetEvent)

	mux.HandleFunc("GET /health", health(d.Ping, d.Logger))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

func health(ping func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "err", err)
				helpers.WriteJSONError(w, http.StatusServiceUnavailable, helpers.ErrCodeInternalError, "database unavailable")
				return
			}
		}
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
