package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration for the portal auth service.
type Server struct {
	Addr            string
	SigningKey      string
	Issuer          string
	SessionTTL      time.Duration
	AdminIdleTTL    time.Duration
	NativeIdleTTL   time.Duration
	OTPChallengeTTL time.Duration
	OTPMaxAttempts  int

	// BootstrapEmail is the distinguished super-admin address exempt from the
	// OTP gate and role-exclusivity checks.
	BootstrapEmail    string
	BootstrapPassword string

	// MailRelayURL, when set, switches the OTP channel from the logging
	// sender to the HTTP mail relay.
	MailRelayURL string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            ":8080",
		Issuer:          "civita",
		SessionTTL:      24 * time.Hour,
		AdminIdleTTL:    20 * time.Minute,
		NativeIdleTTL:   30 * time.Minute,
		OTPChallengeTTL: 5 * time.Minute,
		OTPMaxAttempts:  5,
		BootstrapEmail:  "admin@civita.example",
	}

	if v := os.Getenv("CIVITA_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CIVITA_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("CIVITA_ADMIN_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AdminIdleTTL = d
		}
	}
	if v := os.Getenv("CIVITA_NATIVE_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.NativeIdleTTL = d
		}
	}
	if v := os.Getenv("CIVITA_OTP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OTPChallengeTTL = d
		}
	}
	if v := os.Getenv("CIVITA_OTP_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OTPMaxAttempts = n
		}
	}
	if v := os.Getenv("CIVITA_BOOTSTRAP_EMAIL"); v != "" {
		cfg.BootstrapEmail = v
	}
	cfg.BootstrapPassword = os.Getenv("CIVITA_BOOTSTRAP_PASSWORD")
	cfg.MailRelayURL = os.Getenv("CIVITA_MAIL_RELAY_URL")

	cfg.SigningKey = os.Getenv("CIVITA_SIGNING_KEY")
	if cfg.SigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.SigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}
