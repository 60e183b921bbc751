package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/opsarena/mailauth/internal/http/middleware"
	"github.com/opsarena/mailauth/internal/http/response"
	"github.com/opsarena/mailauth/internal/observability"
	"github.com/opsarena/mailauth/internal/service"
)

type AuthHandler struct {
	authSvc service.AuthServiceInterface
}

func NewAuthHandler(authSvc service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", outcome, time.Since(start))
	}()

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		outcome = "bad_request"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	msg, err := h.authSvc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		outcome = h.writeAuthError(w, r, "register", err)
		return
	}
	observability.RecordAuthFlow(r.Context(), "register", "success")
	response.JSON(w, r, http.StatusCreated, map[string]string{"message": msg})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", outcome, time.Since(start))
	}()

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		outcome = "bad_request"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	result, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		outcome = h.writeAuthError(w, r, "login", err)
		return
	}
	observability.RecordAuthFlow(r.Context(), "login", "success")
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify", outcome, time.Since(start))
	}()

	msg, err := h.authSvc.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		outcome = h.writeAuthError(w, r, "verify", err)
		return
	}
	observability.RecordAuthFlow(r.Context(), "verify", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": msg})
}

// Protected is a smoke-test endpoint for session tokens.
func (h *AuthHandler) Protected(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{
		"message": "This is a protected endpoint. You are authenticated!",
		"email":   claims.Subject,
	})
}

// writeAuthError maps the business error taxonomy onto HTTP statuses and
// returns the outcome label for metrics.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, operation string, err error) string {
	var rateErr *service.RateLimitError
	switch {
	case errors.Is(err, service.ErrValidation):
		observability.RecordAuthFlow(r.Context(), operation, "bad_request")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return "bad_request"
	case errors.Is(err, service.ErrDuplicateUser):
		observability.RecordAuthFlow(r.Context(), operation, "duplicate_user")
		response.Error(w, r, http.StatusConflict, "DUPLICATE_USER", "User with this email already exists")
		return "duplicate_user"
	case errors.Is(err, service.ErrEmailNotVerified):
		observability.RecordAuthFlow(r.Context(), operation, "unverified")
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS",
			"Account not verified. A new verification email has been sent.")
		return "unverified"
	case errors.Is(err, service.ErrInvalidCredentials):
		observability.RecordAuthFlow(r.Context(), operation, "invalid_credentials")
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return "invalid_credentials"
	case errors.Is(err, service.ErrInvalidToken):
		observability.RecordAuthFlow(r.Context(), operation, "invalid_token")
		response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "Invalid verification token")
		return "invalid_token"
	case errors.As(err, &rateErr):
		observability.RecordAuthFlow(r.Context(), operation, "rate_limited")
		response.RateLimited(w, r, rateErr.Error(), rateErr.RemainingSeconds())
		return "rate_limited"
	default:
		observability.RecordAuthFlow(r.Context(), operation, "error")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		return "error"
	}
}
