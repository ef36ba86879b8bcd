package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// AdminHandler handles admin-only endpoints: rate management, user
// management and the ledger consistency check.
type AdminHandler struct {
	userUC   *usecase.UserUseCase
	rateUC   *usecase.RateUseCase
	ledgerUC *usecase.LedgerUseCase
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userUC *usecase.UserUseCase, rateUC *usecase.RateUseCase, ledgerUC *usecase.LedgerUseCase) *AdminHandler {
	return &AdminHandler{
		userUC:   userUC,
		rateUC:   rateUC,
		ledgerUC: ledgerUC,
	}
}

// UpsertRate stores or updates the exchange rate for one pair.
func (h *AdminHandler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.rateUC.UpsertRate(r.Context(), req.From, req.To, req.Rate); err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to upsert rate", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListUsers lists users with pagination.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	users, err := h.userUC.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.UsersFromDomain(users))
}

// UpdateUser changes a user's role or active flag.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID", err.Error())
		return
	}

	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var user *domain.User

	if req.Role != nil {
		user, err = h.userUC.SetRole(r.Context(), id, domain.Role(*req.Role))
		if err != nil {
			status := mapDomainError(err)
			writeError(w, status, "failed to update role", err.Error())

			return
		}
	}

	if req.Active != nil {
		user, err = h.userUC.SetActive(r.Context(), id, *req.Active)
		if err != nil {
			status := mapDomainError(err)
			writeError(w, status, "failed to update active flag", err.Error())

			return
		}
	}

	if user == nil {
		writeError(w, http.StatusBadRequest, "nothing to update", "")
		return
	}

	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

// CheckConsistency verifies that per-currency balance sums match the signed
// sum of ledger entries.
func (h *AdminHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	results, err := h.ledgerUC.CheckConsistency(r.Context())
	if err != nil {
		if results == nil {
			writeError(w, http.StatusInternalServerError, "consistency check failed", err.Error())
			return
		}

		// The check itself worked; the ledger is out of balance.
		writeJSON(w, http.StatusConflict, dto.ConsistencyFromUseCase(results))

		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromUseCase(results))
}
