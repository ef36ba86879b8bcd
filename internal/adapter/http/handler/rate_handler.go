package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// RateHandler serves currency listings, conversion quotes and rate history.
type RateHandler struct {
	rateUC *usecase.RateUseCase
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(rateUC *usecase.RateUseCase) *RateHandler {
	return &RateHandler{rateUC: rateUC}
}

// ListCurrencies returns all supported currencies.
func (h *RateHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.rateUC.ListCurrencies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list currencies", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CurrenciesFromDomain(currencies))
}

// Convert quotes an amount of one currency in another at the stored rate.
// Query parameters: from, to, amount.
func (h *RateHandler) Convert(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	result, err := h.rateUC.Convert(r.Context(), usecase.ConvertInput{
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		Amount: amount,
	})
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to convert", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.ConversionResponse{
		From:   result.From,
		To:     result.To,
		Amount: result.Amount,
		Rate:   result.Rate,
		Result: result.Result,
	})
}

// Timeseries returns daily rate history for a pair. Query parameters: base,
// quote, and optional from/to dates (YYYY-MM-DD).
func (h *RateHandler) Timeseries(w http.ResponseWriter, r *http.Request) {
	input := usecase.TimeseriesInput{
		Base:  r.URL.Query().Get("base"),
		Quote: r.URL.Query().Get("quote"),
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err.Error())
			return
		}

		input.From = from
	}

	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date", err.Error())
			return
		}

		input.To = to
	}

	points, err := h.rateUC.GetTimeseries(r.Context(), input)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get timeseries", err.Error())

		return
	}

	rates := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		rates[p.Date.Format(time.DateOnly)] = p.Rate
	}

	writeJSON(w, http.StatusOK, dto.TimeseriesResponse{
		Base:  input.Base,
		Quote: input.Quote,
		Rates: rates,
	})
}
