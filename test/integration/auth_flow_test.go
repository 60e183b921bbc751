package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opsarena/mailauth/internal/config"
	"github.com/opsarena/mailauth/internal/database"
	"github.com/opsarena/mailauth/internal/http/handler"
	"github.com/opsarena/mailauth/internal/http/router"
	"github.com/opsarena/mailauth/internal/repository"
	"github.com/opsarena/mailauth/internal/security"
	"github.com/opsarena/mailauth/internal/service"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []service.VerificationEmail
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, email service.VerificationEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Token
}

type authServerOptions struct {
	cfgOverride func(cfg *config.Config)
}

func newAuthServer(t *testing.T) (string, *captureMailer, func()) {
	return newAuthServerWithOptions(t, authServerOptions{})
}

func newAuthServerWithOptions(t *testing.T, opts authServerOptions) (string, *captureMailer, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		JWTIssuer:            "mailauth",
		JWTAudience:          "mailauth-api",
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		SessionTokenTTL:      time.Hour,
		VerificationTokenTTL: 10 * time.Minute,
		EmailRateLimit:       time.Nanosecond,
		AppBaseURL:           "http://localhost:8080",
		APIRateLimitPerMin:   1000,
		AuthRateLimitPerMin:  1000,
	}
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}

	users := repository.NewUserRepository(db)
	tokenSvc := service.NewVerificationTokenService(repository.NewVerificationTokenRepository(db), cfg.VerificationTokenTTL)
	mailer := &captureMailer{}
	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret, cfg.SessionTokenTTL)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(cfg, db, users, tokenSvc, mailer, jwtMgr, log)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authSvc),
		JWTManager:          jwtMgr,
		APIRateLimitPerMin:  cfg.APIRateLimitPerMin,
		AuthRateLimitPerMin: cfg.AuthRateLimitPerMin,
	})
	srv := httptest.NewServer(h)
	return srv.URL, mailer, srv.Close
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func getJSON(t *testing.T, url, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	baseURL, mailer, closeFn := newAuthServer(t)
	defer closeFn()

	creds := map[string]string{"email": "flow@example.com", "password": "Sup3rSecret!"}

	resp, body := postJSON(t, baseURL+"/api/auth/register", creds)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	if body["message"] != "Registration successful. Please check your email to verify your account." {
		t.Fatalf("unexpected register message %q", body["message"])
	}
	if mailer.count() != 1 {
		t.Fatalf("expected one verification email, got %d", mailer.count())
	}

	// unverified login is rejected and triggers a resend
	resp, body = postJSON(t, baseURL+"/api/auth/login", creds)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unverified login: expected 401, got %d", resp.StatusCode)
	}
	if body["message"] != "Account not verified. A new verification email has been sent." {
		t.Fatalf("unexpected unverified message %q", body["message"])
	}
	if mailer.count() != 2 {
		t.Fatalf("expected resend email, got %d sends", mailer.count())
	}

	// only the latest token verifies
	resp, body = getJSON(t, baseURL+"/api/auth/verify?token="+mailer.lastToken(), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["message"] != "Email verified successfully. You can now login." {
		t.Fatalf("unexpected verify message %q", body["message"])
	}

	resp, body = postJSON(t, baseURL+"/api/auth/login", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verified login: expected 200, got %d", resp.StatusCode)
	}
	if body["message"] != "Login successful" || body["email"] != "flow@example.com" {
		t.Fatalf("unexpected login body %v", body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected session token")
	}

	resp, body = getJSON(t, baseURL+"/api/auth/test", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("protected: expected 200, got %d", resp.StatusCode)
	}
	if body["email"] != "flow@example.com" {
		t.Fatalf("unexpected protected body %v", body)
	}

	// token reuse fails
	resp, _ = getJSON(t, baseURL+"/api/auth/verify?token="+mailer.lastToken(), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("token reuse: expected 400, got %d", resp.StatusCode)
	}
}

func TestProtectedEndpointRequiresToken(t *testing.T) {
	baseURL, _, closeFn := newAuthServer(t)
	defer closeFn()

	resp, body := getJSON(t, baseURL+"/api/auth/test", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Fatalf("unexpected body %v", body)
	}

	resp, _ = getJSON(t, baseURL+"/api/auth/test", "garbage")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", resp.StatusCode)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	baseURL, _, closeFn := newAuthServer(t)
	defer closeFn()

	creds := map[string]string{"email": "dupe@example.com", "password": "Sup3rSecret!"}
	if resp, _ := postJSON(t, baseURL+"/api/auth/register", creds); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", resp.StatusCode)
	}

	resp, body := postJSON(t, baseURL+"/api/auth/register", creds)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}
	if body["code"] != "DUPLICATE_USER" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestResendRateLimit(t *testing.T) {
	baseURL, mailer, closeFn := newAuthServerWithOptions(t, authServerOptions{
		cfgOverride: func(cfg *config.Config) {
			cfg.EmailRateLimit = time.Minute
		},
	})
	defer closeFn()

	creds := map[string]string{"email": "limited@example.com", "password": "Sup3rSecret!"}
	if resp, _ := postJSON(t, baseURL+"/api/auth/register", creds); resp.StatusCode != http.StatusCreated {
		t.Fatal("register failed")
	}

	// registration just sent the first email; the resend window is still open
	resp, body := postJSON(t, baseURL+"/api/auth/login", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if body["code"] != "RATE_LIMITED" {
		t.Fatalf("unexpected body %v", body)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("unexpected Retry-After %q", resp.Header.Get("Retry-After"))
	}
	if secs, ok := body["retry_after_seconds"].(float64); !ok || secs < 1 || secs > 60 {
		t.Fatalf("unexpected retry_after_seconds %v", body["retry_after_seconds"])
	}
	if mailer.count() != 1 {
		t.Fatalf("expected no resend inside the window, got %d sends", mailer.count())
	}
}

func TestHealthEndpoints(t *testing.T) {
	baseURL, _, closeFn := newAuthServer(t)
	defer closeFn()

	resp, body := getJSON(t, baseURL+"/health/live", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = getJSON(t, baseURL+"/health/ready", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("readiness: status=%d body=%v", resp.StatusCode, body)
	}
}

func TestAuthRateLimitMiddleware(t *testing.T) {
	baseURL, _, closeFn := newAuthServerWithOptions(t, authServerOptions{
		cfgOverride: func(cfg *config.Config) {
			cfg.AuthRateLimitPerMin = 3
		},
	})
	defer closeFn()

	var last int
	for i := 0; i < 4; i++ {
		resp, _ := postJSON(t, baseURL+"/api/auth/login", map[string]string{
			"email":    "nobody@example.com",
			"password": "wrong",
		})
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding auth rate limit, got %d", last)
	}
}
