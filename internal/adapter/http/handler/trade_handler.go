package handler

import (
	"encoding/json"
	"net/http"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/adapter/http/middleware"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// TradeHandler handles buy and sell requests.
type TradeHandler struct {
	tradeUC *usecase.TradeUseCase
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeUC *usecase.TradeUseCase) *TradeHandler {
	return &TradeHandler{tradeUC: tradeUC}
}

// Create executes a trade for the authenticated caller.
func (h *TradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.CreateTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.tradeUC.Execute(r.Context(), req.ToUseCaseInput(caller.ID))
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to execute trade", err.Error())

		return
	}

	writeJSON(w, http.StatusCreated, dto.TradeFromUseCase(result))
}
