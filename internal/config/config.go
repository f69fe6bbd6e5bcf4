package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
)

const sandboxFromAddress = "onboarding@quilly.dev"

// Config holds the application configuration
type Config struct {
	DatabaseURL   string
	Port          string
	SessionSecret string
	AppURL        string
	AppEnv        string

	EmailAPIKey string
	EmailFrom   string

	RazorpayKeyID     string
	RazorpayKeySecret string

	GoogleClientID     string
	GoogleClientSecret string
}

// IsProduction reports whether the app runs with production hardening
// (HSTS/CSP headers, strict config validation).
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads configuration from environment variables. Required variables
// missing in production are returned as errors so startup can fail fast;
// optional ones log a warning and fall back to a default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:   "8080",
		AppEnv: "development",
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.AppEnv = v
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	logDatabaseTarget(cfg.DatabaseURL)

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	if len(cfg.SessionSecret) < 32 {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters in production")
		}
		log.Printf("WARNING: SESSION_SECRET is shorter than 32 characters")
	}

	cfg.AppURL = os.Getenv("APP_URL")
	if cfg.IsProduction() {
		if cfg.AppURL == "" {
			return nil, fmt.Errorf("APP_URL environment variable is required in production")
		}
		if !strings.HasPrefix(cfg.AppURL, "https://") {
			return nil, fmt.Errorf("APP_URL must use https in production, got %q", cfg.AppURL)
		}
	}

	cfg.EmailAPIKey = os.Getenv("EMAIL_API_KEY")
	if cfg.EmailAPIKey == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("EMAIL_API_KEY environment variable is required in production")
	}

	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	if cfg.EmailFrom == "" {
		log.Printf("WARNING: EMAIL_FROM not set, using sandbox address %s", sandboxFromAddress)
		cfg.EmailFrom = sandboxFromAddress
	}

	// Payment and federated login credentials are optional: the features are
	// disabled when unset.
	cfg.RazorpayKeyID = os.Getenv("RAZORPAY_KEY_ID")
	cfg.RazorpayKeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		log.Printf("WARNING: Razorpay credentials not set, payments disabled")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		log.Printf("WARNING: Google OAuth credentials not set, federated login disabled")
	}

	return cfg, nil
}

// logDatabaseTarget logs connection details with the password masked.
func logDatabaseTarget(databaseURL string) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	user := u.User.Username()
	if user == "" {
		user = "(none)"
	}
	log.Printf("DB connect: host=%s port=%s db=%s user=%s", host, port, dbName, user)
}
