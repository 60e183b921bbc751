package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// RetryAfterSeconds accompanies 429 responses only.
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	JSON(w, r, status, errorBody{Code: code, Message: message})
}

func RateLimited(w http.ResponseWriter, r *http.Request, message string, retryAfterSeconds int64) {
	w.Header().Set("Retry-After", formatSeconds(retryAfterSeconds))
	JSON(w, r, http.StatusTooManyRequests, errorBody{
		Code:              "RATE_LIMITED",
		Message:           message,
		RetryAfterSeconds: retryAfterSeconds,
	})
}

func formatSeconds(s int64) string {
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10)
}
