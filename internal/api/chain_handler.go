package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"conveyor/internal/chain"
	"conveyor/internal/tracker"
)

// StartChain запускает новый chain по blueprint'у сервиса.
// POST /api/v1/chains
//
// Возвращается сразу после регистрации chain, не дожидаясь
// результата: 202 Accepted с квитанцией для опроса статуса.
func (h *Handler) StartChain(w http.ResponseWriter, r *http.Request) {
	var req StartChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	chainID := uuid.New().String()

	err := h.executor.Launch(chain.Request{
		ID:      chainID,
		Tasks:   h.blueprint,
		Initial: req.Inputs,
	})
	switch {
	case errors.Is(err, tracker.ErrChainExists):
		// uuid-коллизия практически невозможна, но контракт Launch её
		// различает
		Conflict(w, "chain already exists")
		return
	case err != nil:
		var verr *chain.ValidationError
		if errors.As(err, &verr) {
			BadRequest(w, verr.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("chain accepted", "chain_id", chainID)

	JSON(w, http.StatusAccepted, ReceiptResponse{
		ChainID:        chainID,
		Status:         string(tracker.StatusRunning),
		StatusEndpoint: "/api/v1/chains/" + chainID,
		TaskSequence:   chain.TaskNames(h.blueprint),
	})
}

// GetChain возвращает снимок chain по ID.
// GET /api/v1/chains/{id}
func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid chain id")
		return
	}

	snap, err := h.tracker.GetStatus(id.String())
	if errors.Is(err, tracker.ErrChainNotFound) {
		NotFound(w, "chain not found")
		return
	}
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	JSON(w, http.StatusOK, snap)
}

// ListActiveChains возвращает сокращённые снимки выполняющихся chains.
// GET /api/v1/chains
func (h *Handler) ListActiveChains(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.tracker.ListActive())
}
