package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cloudtask/internal/api/shared"
	apiMiddleware "github.com/phrazzld/cloudtask/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthResponse is returned by the health endpoint.
type healthResponse struct {
	Status string   `json:"status"`
	Mode   string   `json:"mode"`
	Tasks  []string `json:"tasks"`
}

// setupRouter creates the router with middleware, the callback route and
// the operational endpoints.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	r.Group(func(r chi.Router) {
		if app.tokenValidator != nil {
			oidc := apiMiddleware.NewOIDCMiddleware(
				app.tokenValidator,
				app.config.Tasks.Audience,
				app.config.Tasks.ServiceAccountEmail,
			)
			r.Use(oidc.Authenticate)
		}
		// All methods reach the handler so it can answer 405 itself.
		r.Handle(app.config.Server.CallbackPath, app.callbackHandler)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{
			Status: "ok",
			Mode:   app.config.Tasks.Mode(),
			Tasks:  app.registry.Paths(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
