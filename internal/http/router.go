package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/abhi-yo/quilly-sub000/internal/auth"
	"github.com/abhi-yo/quilly-sub000/internal/http/handlers"
	"github.com/abhi-yo/quilly-sub000/internal/middleware"
	"github.com/abhi-yo/quilly-sub000/internal/ratelimit"
	"github.com/abhi-yo/quilly-sub000/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	tokens *auth.TokenService,
	users repo.UserRepo,
	limiter *ratelimit.Limiter,
	production bool,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(production))
	r.Use(middleware.RateLimit(limiter))
	r.Use(middleware.Gate(tokens, users))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Post("/signup", authHandler.HandleSignup)
	r.Post("/signin", authHandler.HandleSignin)
	r.Post("/verify", authHandler.HandleVerify)
	r.Post("/resend-otp", authHandler.HandleResendOTP)

	// Protected routes (the gate denies everything not on the public list)
	r.Post(middleware.ProfileCompletionPath, authHandler.HandleCompleteProfile)
	r.Post("/link-wallet", authHandler.HandleLinkWallet)
	r.Get("/me", authHandler.HandleMe)
	r.Get("/session", authHandler.HandleSession)

	return r
}
