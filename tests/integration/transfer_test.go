package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/domain"
)

func TestTransferEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	alice := srv.db.CreateTestUser(ctx, "alice", domain.RoleUser)
	srv.db.CreateTestUser(ctx, "bob", domain.RoleUser)
	srv.db.SeedBalance(ctx, alice.ID, "USD", decimal.NewFromInt(1000))

	token := srv.tokenFor(t, alice)

	t.Run("transfer moves funds and writes paired entries", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/v1/transfers", token, dto.CreateTransferRequest{
			ToUsername:     "bob",
			Currency:       "USD",
			Amount:         decimal.RequireFromString("100.50"),
			IdempotencyKey: "e2e-transfer-1",
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		resp := decodeJSON[dto.TransferResponse](t, rec)

		if !resp.SenderBalanceAfter.Equal(decimal.RequireFromString("899.50")) {
			t.Errorf("sender balance after = %s, want 899.50", resp.SenderBalanceAfter)
		}

		// Both legs are visible under the shared reference.
		lookup := srv.do(t, http.MethodGet, "/api/v1/transfers/"+resp.Reference, token, nil)
		if lookup.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", lookup.Code, lookup.Body.String())
		}

		entries := decodeJSON[[]dto.EntryResponse](t, lookup)
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}

		types := map[string]bool{}
		for _, e := range entries {
			types[e.Type] = true
			if !e.Amount.Equal(decimal.RequireFromString("100.50")) {
				t.Errorf("entry amount = %s, want 100.50", e.Amount)
			}
		}

		if !types["WITHDRAW"] || !types["DEPOSIT"] {
			t.Errorf("expected WITHDRAW and DEPOSIT legs, got %v", types)
		}
	})

	t.Run("repeating the key does not move funds twice", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/v1/transfers", token, dto.CreateTransferRequest{
			ToUsername:     "bob",
			Currency:       "USD",
			Amount:         decimal.RequireFromString("100.50"),
			IdempotencyKey: "e2e-transfer-1",
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		resp := decodeJSON[dto.TransferResponse](t, rec)
		if !resp.SenderBalanceAfter.Equal(decimal.RequireFromString("899.50")) {
			t.Errorf("replayed sender balance = %s, want 899.50", resp.SenderBalanceAfter)
		}

		balances := srv.do(t, http.MethodGet, "/api/v1/portfolio/balances", token, nil)
		got := decodeJSON[[]dto.BalanceResponse](t, balances)

		if len(got) != 1 || !got[0].Amount.Equal(decimal.RequireFromString("899.50")) {
			t.Errorf("unexpected balances after replay: %+v", got)
		}
	})

	t.Run("insufficient funds is recorded and stays failed", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := srv.do(t, http.MethodPost, "/api/v1/transfers", token, dto.CreateTransferRequest{
				ToUsername:     "bob",
				Currency:       "USD",
				Amount:         decimal.NewFromInt(1000000),
				IdempotencyKey: "e2e-transfer-overdraft",
			})

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("attempt %d: expected 400, got %d: %s", i+1, rec.Code, rec.Body.String())
			}
		}
	})

	t.Run("transfer requires authentication", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/v1/transfers", "", dto.CreateTransferRequest{
			ToUsername:     "bob",
			Currency:       "USD",
			Amount:         decimal.NewFromInt(1),
			IdempotencyKey: "e2e-transfer-noauth",
		})

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "correct-horse-battery",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	login := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Identifier: "carol",
		Password:   "correct-horse-battery",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", login.Code, login.Body.String())
	}

	tokenResp := decodeJSON[dto.TokenResponse](t, login)

	me := srv.do(t, http.MethodGet, "/api/v1/auth/me", tokenResp.Token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", me.Code, me.Body.String())
	}

	user := decodeJSON[dto.UserResponse](t, me)
	if user.Username != "carol" {
		t.Errorf("username = %s, want carol", user.Username)
	}
}
