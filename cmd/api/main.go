package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhi-yo/quilly-sub000/internal/auth"
	"github.com/abhi-yo/quilly-sub000/internal/config"
	"github.com/abhi-yo/quilly-sub000/internal/db"
	httphandler "github.com/abhi-yo/quilly-sub000/internal/http"
	"github.com/abhi-yo/quilly-sub000/internal/http/handlers"
	"github.com/abhi-yo/quilly-sub000/internal/mail"
	"github.com/abhi-yo/quilly-sub000/internal/ratelimit"
	"github.com/abhi-yo/quilly-sub000/internal/repo"
)

const emailEndpoint = "https://api.resend.com/emails"

func main() {
	// Load .env if present (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOTPRepo(database)

	// Collaborators and services
	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.EmailAPIKey != "" {
		mailer = mail.NewHTTPMailer(emailEndpoint, cfg.EmailAPIKey, cfg.EmailFrom)
	}

	limiter := ratelimit.New()
	defer limiter.Stop()

	otpService := auth.NewOTPService(otpRepo, userRepo, mailer)
	tokenService := auth.NewTokenService(cfg.SessionSecret)
	authService := auth.NewService(userRepo, otpService, tokenService)

	// Handlers and router
	authHandler := handlers.NewAuthHandler(authService, tokenService, limiter)
	router := httphandler.NewRouter(authHandler, tokenService, userRepo, limiter, cfg.IsProduction())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
