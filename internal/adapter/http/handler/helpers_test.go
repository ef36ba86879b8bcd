package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrRecipientNotFound, http.StatusNotFound},
		{domain.ErrBalanceNotFound, http.StatusNotFound},
		{domain.ErrEntryNotFound, http.StatusNotFound},
		{domain.ErrRateNotFound, http.StatusNotFound},
		{domain.ErrSelfTransfer, http.StatusBadRequest},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrAmountPrecision, http.StatusBadRequest},
		{domain.ErrUnknownCurrency, http.StatusBadRequest},
		{domain.ErrInvalidTradeSide, http.StatusBadRequest},
		{domain.ErrIdempotencyKeyRequired, http.StatusBadRequest},
		{domain.ErrInvalidUsername, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusBadRequest},
		{domain.ErrUserExists, http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{usecase.ErrInconsistentLedger, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrExpiredToken, http.StatusUnauthorized},
		{domain.ErrUserInactive, http.StatusForbidden},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapDomainError(tt.err); got != tt.want {
			t.Errorf("mapDomainError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMapDomainError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("executing transfer: %w", domain.ErrInsufficientFunds)
	if got := mapDomainError(wrapped); got != http.StatusBadRequest {
		t.Errorf("wrapped error mapped to %d, want 400", got)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad input", "amount missing")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error != "bad input" || resp.Message != "amount missing" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/entries?limit=50&offset=abc", nil)

	if got := parseIntQuery(req, "limit", 20); got != 50 {
		t.Errorf("limit = %d, want 50", got)
	}

	if got := parseIntQuery(req, "offset", 0); got != 0 {
		t.Errorf("malformed offset = %d, want default 0", got)
	}

	if got := parseIntQuery(req, "missing", 7); got != 7 {
		t.Errorf("missing param = %d, want default 7", got)
	}
}
