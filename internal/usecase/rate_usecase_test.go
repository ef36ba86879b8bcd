package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
	"github.com/coinflip/exchange-ledger/internal/usecase/mocks"
)

func newRateFixture(t *testing.T, cache usecase.Cache) (*mocks.MockRateRepository, *usecase.RateUseCase) {
	t.Helper()

	ctrl := gomock.NewController(t)

	currencyRepo := mocks.NewMockCurrencyRepository(ctrl)
	currencyRepo.EXPECT().Get(gomock.Any(), "BTC").Return(&domain.Currency{Code: "BTC", Scale: 8}, nil).AnyTimes()
	currencyRepo.EXPECT().Get(gomock.Any(), "USD").Return(&domain.Currency{Code: "USD", Scale: 2}, nil).AnyTimes()
	currencyRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, domain.ErrUnknownCurrency).AnyTimes()
	currencyRepo.EXPECT().List(gomock.Any()).Return([]*domain.Currency{
		{Code: "BTC", Scale: 8},
		{Code: "USD", Scale: 2},
	}, nil).AnyTimes()

	rateRepo := mocks.NewMockRateRepository()
	if err := rateRepo.Upsert(context.Background(), &domain.ExchangeRate{
		BaseCurrency:   "BTC",
		TargetCurrency: "USD",
		Rate:           decimal.NewFromInt(65000),
	}); err != nil {
		t.Fatalf("seed rate: %v", err)
	}

	return rateRepo, usecase.NewRateUseCase(currencyRepo, rateRepo, cache, nil)
}

func TestRateUseCase_Convert(t *testing.T) {
	_, uc := newRateFixture(t, nil)

	result, err := uc.Convert(context.Background(), usecase.ConvertInput{
		From:   "btc",
		To:     "usd",
		Amount: decimal.RequireFromString("0.015"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Result.Equal(decimal.NewFromInt(975)) {
		t.Errorf("result = %s, want 975", result.Result)
	}

	if result.From != "BTC" || result.To != "USD" {
		t.Errorf("codes not normalized: %s/%s", result.From, result.To)
	}
}

func TestRateUseCase_Convert_Errors(t *testing.T) {
	_, uc := newRateFixture(t, nil)

	_, err := uc.Convert(context.Background(), usecase.ConvertInput{From: "BTC", To: "USD", Amount: decimal.Zero})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	_, err = uc.Convert(context.Background(), usecase.ConvertInput{From: "BTC", To: "XYZ", Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, domain.ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", err)
	}

	_, err = uc.Convert(context.Background(), usecase.ConvertInput{From: "USD", To: "BTC", Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, domain.ErrRateNotFound) {
		t.Errorf("expected ErrRateNotFound, got %v", err)
	}
}

func TestRateUseCase_Convert_ReadThroughCache(t *testing.T) {
	cache := mocks.NewMockCache()
	rateRepo, uc := newRateFixture(t, cache)

	input := usecase.ConvertInput{From: "BTC", To: "USD", Amount: decimal.NewFromInt(1)}

	if _, err := uc.Convert(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The rate is now cached; the repo must not be consulted again.
	rateRepo.GetFunc = func(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
		t.Error("repo hit despite cached rate")
		return nil, domain.ErrRateNotFound
	}

	result, err := uc.Convert(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Rate.Equal(decimal.NewFromInt(65000)) {
		t.Errorf("cached rate = %s, want 65000", result.Rate)
	}
}

func TestRateUseCase_UpsertRate_InvalidatesCache(t *testing.T) {
	cache := mocks.NewMockCache()
	_, uc := newRateFixture(t, cache)

	input := usecase.ConvertInput{From: "BTC", To: "USD", Amount: decimal.NewFromInt(1)}

	if _, err := uc.Convert(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := uc.UpsertRate(context.Background(), "BTC", "USD", decimal.NewFromInt(70000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := uc.Convert(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Rate.Equal(decimal.NewFromInt(70000)) {
		t.Errorf("rate after upsert = %s, want 70000", result.Rate)
	}
}

func TestRateUseCase_UpsertRate_Validation(t *testing.T) {
	_, uc := newRateFixture(t, nil)

	if err := uc.UpsertRate(context.Background(), "BTC", "USD", decimal.Zero); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	if err := uc.UpsertRate(context.Background(), "XYZ", "USD", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestRateUseCase_GetTimeseries_BackfillsMissingDays(t *testing.T) {
	rateRepo, uc := newRateFixture(t, nil)

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -6)

	// Two real points inside a seven-day window.
	seeded := []*domain.RatePoint{
		{Date: from, Rate: decimal.NewFromInt(64000)},
		{Date: from.AddDate(0, 0, 3), Rate: decimal.NewFromInt(66000)},
	}
	if err := rateRepo.UpsertHistory(context.Background(), "BTC", "USD", seeded); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	points, err := uc.GetTimeseries(context.Background(), usecase.TimeseriesInput{
		Base:  "BTC",
		Quote: "USD",
		From:  from,
		To:    to,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(points))
	}

	seen := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		seen[p.Date.Format(time.DateOnly)] = p.Rate
	}

	// Seeded days keep their values.
	if !seen[from.Format(time.DateOnly)].Equal(decimal.NewFromInt(64000)) {
		t.Errorf("seeded day overwritten: %s", seen[from.Format(time.DateOnly)])
	}

	// Backfilled days stay within the jitter band around the current rate.
	low := decimal.RequireFromString("0.97").Mul(decimal.NewFromInt(65000))
	high := decimal.RequireFromString("1.03").Mul(decimal.NewFromInt(65000))

	for d := from.AddDate(0, 0, 1); d.Before(to); d = d.AddDate(0, 0, 1) {
		rate, ok := seen[d.Format(time.DateOnly)]
		if !ok {
			t.Fatalf("day %s missing", d.Format(time.DateOnly))
		}

		if rate.Equal(decimal.NewFromInt(64000)) || rate.Equal(decimal.NewFromInt(66000)) {
			continue
		}

		if rate.LessThan(low) || rate.GreaterThan(high) {
			t.Errorf("backfilled rate %s on %s outside jitter band", rate, d.Format(time.DateOnly))
		}
	}
}

func TestRateUseCase_GetTimeseries_Idempotent(t *testing.T) {
	rateRepo, uc := newRateFixture(t, nil)

	to := time.Now().UTC().Truncate(24 * time.Hour)
	input := usecase.TimeseriesInput{
		Base:  "BTC",
		Quote: "USD",
		From:  to.AddDate(0, 0, -4),
		To:    to,
	}

	first, err := uc.GetTimeseries(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second call reuses the stored points instead of rolling new ones.
	rateRepo.UpsertHistoryFunc = func(ctx context.Context, base, target string, points []*domain.RatePoint) error {
		t.Errorf("unexpected backfill of %d points", len(points))
		return nil
	}

	second, err := uc.GetTimeseries(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("point counts differ: %d vs %d", len(first), len(second))
	}
}

func TestRateUseCase_ListCurrencies(t *testing.T) {
	_, uc := newRateFixture(t, nil)

	currencies, err := uc.ListCurrencies(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(currencies) != 2 {
		t.Errorf("expected 2 currencies, got %d", len(currencies))
	}
}
