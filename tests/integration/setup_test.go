package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	adapterhttp "github.com/coinflip/exchange-ledger/internal/adapter/http"
	"github.com/coinflip/exchange-ledger/internal/adapter/http/handler"
	"github.com/coinflip/exchange-ledger/internal/adapter/repository/postgres"
	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/auth"
	"github.com/coinflip/exchange-ledger/internal/usecase"
	"github.com/coinflip/exchange-ledger/tests/testutil"
)

// testServer bundles the HTTP stack over a real database.
type testServer struct {
	router     http.Handler
	db         *testutil.TestDB
	jwtManager *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := testutil.NewTestDB(t)
	t.Cleanup(testDB.Cleanup)
	testDB.TruncateAll(context.Background())

	pool := testDB.Pool

	txManager := postgres.NewTxManager(pool)
	balanceRepo := postgres.NewBalanceRepository(pool)
	entryRepo := postgres.NewEntryRepository(pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	currencyRepo := postgres.NewCurrencyRepository(pool)
	rateRepo := postgres.NewRateRepository(pool)
	retrier := postgres.NewRetrier()
	idGen := postgres.NewULIDGenerator()

	userUC := usecase.NewUserUseCase(userRepo, nil)
	transferUC := usecase.NewTransferUseCase(txManager, balanceRepo, entryRepo, idempotencyRepo, userRepo, currencyRepo, nil, retrier, idGen, nil)
	tradeUC := usecase.NewTradeUseCase(txManager, balanceRepo, entryRepo, idempotencyRepo, currencyRepo, rateRepo, nil, retrier, idGen, nil)
	portfolioUC := usecase.NewPortfolioUseCase(balanceRepo, entryRepo, userRepo)
	rateUC := usecase.NewRateUseCase(currencyRepo, rateRepo, nil, nil)
	ledgerUC := usecase.NewLedgerUseCase(balanceRepo, entryRepo, currencyRepo)

	jwtManager := auth.NewJWTManager("integration-secret", time.Hour)

	router := adapterhttp.NewRouter(adapterhttp.RouterConfig{
		AuthHandler:      handler.NewAuthHandler(userUC, jwtManager),
		TransferHandler:  handler.NewTransferHandler(transferUC, userUC),
		TradeHandler:     handler.NewTradeHandler(tradeUC),
		PortfolioHandler: handler.NewPortfolioHandler(portfolioUC),
		RateHandler:      handler.NewRateHandler(rateUC),
		AdminHandler:     handler.NewAdminHandler(userUC, rateUC, ledgerUC),
		HealthHandler:    handler.NewHealthHandler(pool, nil),
		JWTManager:       jwtManager,
		Logger:           zerolog.New(io.Discard),
	})

	return &testServer{
		router:     router,
		db:         testDB,
		jwtManager: jwtManager,
	}
}

// tokenFor issues a JWT for a seeded user.
func (s *testServer) tokenFor(t *testing.T, user *domain.User) string {
	t.Helper()

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	return token
}

// do runs one request through the router. A non-nil payload is sent as JSON;
// a non-empty token goes into the Authorization header.
func (s *testServer) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}

	return out
}
