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
		Metrics(),
	)

	// Chains
	mux.Handle("POST /api/v1/chains", chain(http.HandlerFunc(h.StartChain)))
	mux.Handle("GET /api/v1/chains", chain(http.HandlerFunc(h.ListActiveChains)))
	mux.Handle("GET /api/v1/chains/{id}", chain(http.HandlerFunc(h.GetChain)))
}
