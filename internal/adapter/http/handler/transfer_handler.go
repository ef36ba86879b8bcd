package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/adapter/http/middleware"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transferUC *usecase.TransferUseCase
	userUC     *usecase.UserUseCase
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC *usecase.TransferUseCase, userUC *usecase.UserUseCase) *TransferHandler {
	return &TransferHandler{
		transferUC: transferUC,
		userUC:     userUC,
	}
}

// Create moves funds from the authenticated caller to another user.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	toUserID, err := h.userUC.ResolveUsername(r.Context(), req.ToUsername)
	if err != nil {
		writeError(w, http.StatusNotFound, "recipient not found", err.Error())
		return
	}

	result, err := h.transferUC.Execute(r.Context(), req.ToDomainRequest(caller.ID, toUserID))
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to create transfer", err.Error())

		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(result))
}

// GetByReference returns the ledger entries of a committed transfer.
func (h *TransferHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "missing transfer reference", "")
		return
	}

	entries, err := h.transferUC.GetByReference(r.Context(), reference)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get transfer", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
