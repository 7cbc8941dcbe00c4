package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines/{name}/runs", chain(http.HandlerFunc(h.ExecutePipeline)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))

	// Discovery
	mux.Handle("GET /api/v1/services", chain(http.HandlerFunc(h.ListServices)))
	mux.Handle("POST /api/v1/discovery/refresh", chain(http.HandlerFunc(h.RefreshDiscovery)))

	// Liveness
	mux.HandleFunc("GET /healthz", h.Healthz)
}
