package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/dto"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/auth"
	"github.com/coinflip/exchange-ledger/internal/usecase"
	"github.com/coinflip/exchange-ledger/internal/usecase/mocks"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *auth.JWTManager) {
	t.Helper()

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	userUC := usecase.NewUserUseCase(mocks.NewMockUserRepository(), nil)

	return NewAuthHandler(userUC, jwtManager), jwtManager
}

func register(t *testing.T, h *AuthHandler, req dto.RegisterRequest) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(raw)))

	return rec
}

func TestAuthHandler_Register(t *testing.T) {
	h, _ := newAuthHandler(t)

	rec := register(t, h, dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.UserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Username != "alice" || resp.Role != "user" || !resp.Active {
		t.Errorf("unexpected user: %+v", resp)
	}

	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Error("response leaks password material")
	}
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := dto.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "correct-horse-battery"}

	if rec := register(t, h, req); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	if rec := register(t, h, req); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAuthHandler_Register_Invalid(t *testing.T) {
	h, _ := newAuthHandler(t)

	rec := register(t, h, dto.RegisterRequest{Username: "a", Email: "alice@example.com", Password: "correct-horse-battery"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	h, jwtManager := newAuthHandler(t)

	if rec := register(t, h, dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	raw, _ := json.Marshal(dto.LoginRequest{Identifier: "alice", Password: "correct-horse-battery"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(raw)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	claims, err := jwtManager.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}

	if claims.Username != "alice" {
		t.Errorf("claims username = %s, want alice", claims.Username)
	}

	if !resp.ExpiresAt.After(time.Now()) {
		t.Error("expiry is not in the future")
	}
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	h, _ := newAuthHandler(t)

	if rec := register(t, h, dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	raw, _ := json.Marshal(dto.LoginRequest{Identifier: "alice", Password: "wrong-password"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(raw)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	userRepo := mocks.NewMockUserRepository()
	userUC := usecase.NewUserUseCase(userRepo, nil)
	h := NewAuthHandler(userUC, auth.NewJWTManager("test-secret", time.Hour))

	registered, err := userUC.Register(context.Background(), usecase.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), registered.ID, "alice")
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.UserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.ID != registered.ID || resp.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", resp)
	}
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	h, _ := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
