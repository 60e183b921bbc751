package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opsarena/mailauth/internal/service"
)

type stubAuthService struct {
	registerMsg string
	registerErr error
	loginRes    *service.LoginResult
	loginErr    error
	verifyMsg   string
	verifyErr   error

	gotEmail string
	gotToken string
}

func (s *stubAuthService) Register(_ context.Context, email, _ string) (string, error) {
	s.gotEmail = email
	return s.registerMsg, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, email, _ string) (*service.LoginResult, error) {
	s.gotEmail = email
	return s.loginRes, s.loginErr
}

func (s *stubAuthService) VerifyEmail(_ context.Context, token string) (string, error) {
	s.gotToken = token
	return s.verifyMsg, s.verifyErr
}

type errorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestRegisterHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		stub := &stubAuthService{registerMsg: "Registration successful. Please check your email to verify your account."}
		h := NewAuthHandler(stub)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"alice@example.com","password":"pw"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["message"] != stub.registerMsg {
			t.Errorf("unexpected message %q", body["message"])
		}
		if stub.gotEmail != "alice@example.com" {
			t.Errorf("expected email forwarded, got %q", stub.gotEmail)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if body := decodeError(t, rec); body.Code != "BAD_REQUEST" {
			t.Errorf("unexpected code %s", body.Code)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{registerErr: service.ErrDuplicateUser})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"dupe@example.com","password":"pw"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Code != "DUPLICATE_USER" || body.Message != "User with this email already exists" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{registerErr: service.ErrValidation})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"bad","password":"pw"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestLoginHandler(t *testing.T) {
	loginReq := func() *http.Request {
		return httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"alice@example.com","password":"pw"}`))
	}

	t.Run("success", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{loginRes: &service.LoginResult{
			Token:   "jwt-token",
			Email:   "alice@example.com",
			Message: "Login successful",
		}})
		rec := httptest.NewRecorder()
		h.Login(rec, loginReq())

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body service.LoginResult
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Token != "jwt-token" || body.Email != "alice@example.com" || body.Message != "Login successful" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("invalid credentials", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{loginErr: service.ErrInvalidCredentials})
		rec := httptest.NewRecorder()
		h.Login(rec, loginReq())

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Code != "INVALID_CREDENTIALS" || body.Message != "Invalid email or password" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("unverified account", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{loginErr: service.ErrEmailNotVerified})
		rec := httptest.NewRecorder()
		h.Login(rec, loginReq())

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Message != "Account not verified. A new verification email has been sent." {
			t.Errorf("unexpected message %q", body.Message)
		}
	})

	t.Run("resend rate limited", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{loginErr: &service.RateLimitError{RetryAfter: 42 * time.Second}})
		rec := httptest.NewRecorder()
		h.Login(rec, loginReq())

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "42" {
			t.Errorf("expected Retry-After 42, got %q", got)
		}
		body := decodeError(t, rec)
		if body.Code != "RATE_LIMITED" || body.RetryAfterSeconds != 42 {
			t.Errorf("unexpected body %+v", body)
		}
		if !strings.Contains(body.Message, "42 seconds") {
			t.Errorf("unexpected message %q", body.Message)
		}
	})

	t.Run("internal error", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{loginErr: context.DeadlineExceeded})
		rec := httptest.NewRecorder()
		h.Login(rec, loginReq())

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{verifyMsg: "Email verified successfully. You can now login."}
		h := NewAuthHandler(stub)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify?token=raw-token", nil)
		rec := httptest.NewRecorder()
		h.VerifyEmail(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.gotToken != "raw-token" {
			t.Errorf("expected token forwarded, got %q", stub.gotToken)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{verifyErr: service.ErrInvalidToken})
		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify?token=bogus", nil)
		rec := httptest.NewRecorder()
		h.VerifyEmail(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if body := decodeError(t, rec); body.Code != "INVALID_TOKEN" {
			t.Errorf("unexpected code %s", body.Code)
		}
	})
}

func TestProtectedHandlerWithoutClaims(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/test", nil)
	rec := httptest.NewRecorder()
	h.Protected(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth context, got %d", rec.Code)
	}
}
