package handler

import (
	"net/http"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/adapter/http/middleware"
	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// PortfolioHandler serves the authenticated caller's balances and ledger
// history.
type PortfolioHandler struct {
	portfolioUC *usecase.PortfolioUseCase
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioUC *usecase.PortfolioUseCase) *PortfolioHandler {
	return &PortfolioHandler{portfolioUC: portfolioUC}
}

// GetBalances lists the caller's per-currency balances.
func (h *PortfolioHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	balances, err := h.portfolioUC.GetBalances(r.Context(), caller.ID)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get balances", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(balances))
}

// ListEntries lists the caller's ledger entries, newest first. Supports
// type, limit and offset query parameters.
func (h *PortfolioHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	entries, err := h.portfolioUC.ListEntries(r.Context(), usecase.ListEntriesInput{
		UserID: caller.ID,
		Type:   domain.EntryType(r.URL.Query().Get("type")),
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to list entries", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
