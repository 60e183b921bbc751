package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/opsarena/mailauth/internal/health"
	"github.com/opsarena/mailauth/internal/http/handler"
	"github.com/opsarena/mailauth/internal/http/middleware"
	"github.com/opsarena/mailauth/internal/http/response"
	"github.com/opsarena/mailauth/internal/security"
)

type (
	GlobalRateLimiterFunc func(http.Handler) http.Handler
	AuthRateLimiterFunc   func(http.Handler) http.Handler
)

type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	JWTManager          *security.JWTManager
	APIRateLimitPerMin  int
	AuthRateLimitPerMin int
	GlobalRateLimiter   GlobalRateLimiterFunc
	AuthRateLimiter     AuthRateLimiterFunc
	Readiness           *health.ProbeRunner
	EnableOTelHTTP      bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	globalLimiter := dep.GlobalRateLimiter
	if globalLimiter == nil {
		globalLimiter = middleware.NewRateLimiter(dep.APIRateLimitPerMin, time.Minute, "api").Middleware()
	}
	r.Use(globalLimiter)

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitPerMin, time.Minute, "auth").Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.JSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "unready", "checks": results})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
		r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
		r.With(authLimiter).Get("/verify", dep.AuthHandler.VerifyEmail)
		r.With(middleware.AuthMiddleware(dep.JWTManager)).Get("/test", dep.AuthHandler.Protected)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
