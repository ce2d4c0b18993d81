package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EngineConfig holds the tuning knobs of the match-lifecycle engine.
// Tolerances bound the allowed skill gap between players (or a player and a
// match average); the windows are business deadlines, not I/O timeouts.
type EngineConfig struct {
	DefaultTolerance  float64
	ExtendedTolerance float64
	// MinPlayersToOpen is the minimum membership for a player-initiated match
	// to stay open after a departure.
	MinPlayersToOpen int
	// MinPlayersToKeep is the minimum remaining members for a match to be
	// worth repairing after a departure.
	MinPlayersToKeep int
	PlayersPerMatch  int
	// ConfirmationWindow is how long a player has to answer an invitation.
	ConfirmationWindow time.Duration
	// LastMinuteWindow classifies departures close to the scheduled time.
	LastMinuteWindow time.Duration
	// MaxWaitingAge is how long an incomplete match may wait before expiry.
	MaxWaitingAge          time.Duration
	MaxReplacementAttempts int
	BalancePairings        bool
	NotifyOnCancellation   bool
}

// Config holds all runtime configuration of the application.
type Config struct {
	ServerPort   int
	DatabaseURL  string
	JWTSecretKey string

	// Cloudflare R2 (avatar storage). Optional: empty disables uploads.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// WhatsApp Cloud API. Optional: empty falls back to the log sender.
	WhatsAppToken   string
	WhatsAppPhoneID string

	// MatchmakingHour is the local hour of day the daily run fires.
	MatchmakingHour int
	// ScanInterval drives the high-frequency confirmation scan.
	ScanInterval time.Duration

	Engine EngineConfig
}

// Load reads configuration from environment variables. A .env file is loaded
// if present; a missing one is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	matchmakingHour, err := envInt("MATCHMAKING_HOUR", 9)
	if err != nil {
		return nil, err
	}
	if matchmakingHour < 0 || matchmakingHour > 23 {
		return nil, fmt.Errorf("MATCHMAKING_HOUR must be between 0 and 23, got %d", matchmakingHour)
	}

	scanSeconds, err := envInt("SCAN_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	engine, err := loadEngine()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:   port,
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		WhatsAppToken:   os.Getenv("WHATSAPP_TOKEN"),
		WhatsAppPhoneID: os.Getenv("WHATSAPP_PHONE_ID"),

		MatchmakingHour: matchmakingHour,
		ScanInterval:    time.Duration(scanSeconds) * time.Second,

		Engine: engine,
	}

	return cfg, nil
}

func loadEngine() (EngineConfig, error) {
	var zero EngineConfig

	defaultTol, err := envFloat("DEFAULT_LEVEL_TOLERANCE", 1.0)
	if err != nil {
		return zero, err
	}
	extendedTol, err := envFloat("EXTENDED_LEVEL_TOLERANCE", 1.5)
	if err != nil {
		return zero, err
	}
	if extendedTol < defaultTol {
		return zero, fmt.Errorf("EXTENDED_LEVEL_TOLERANCE (%g) must not be below DEFAULT_LEVEL_TOLERANCE (%g)", extendedTol, defaultTol)
	}

	minOpen, err := envInt("MIN_PLAYERS_TO_OPEN", 1)
	if err != nil {
		return zero, err
	}
	minKeep, err := envInt("MIN_PLAYERS_TO_KEEP", 3)
	if err != nil {
		return zero, err
	}
	confirmationMinutes, err := envInt("CONFIRMATION_WINDOW_MINUTES", 60)
	if err != nil {
		return zero, err
	}
	lastMinuteHours, err := envInt("LAST_MINUTE_WINDOW_HOURS", 12)
	if err != nil {
		return zero, err
	}
	maxWaitingHours, err := envInt("MAX_WAITING_HOURS", 48)
	if err != nil {
		return zero, err
	}
	maxAttempts, err := envInt("MAX_REPLACEMENT_ATTEMPTS", 3)
	if err != nil {
		return zero, err
	}
	if maxAttempts < 1 {
		return zero, fmt.Errorf("MAX_REPLACEMENT_ATTEMPTS must be at least 1, got %d", maxAttempts)
	}

	return EngineConfig{
		DefaultTolerance:       defaultTol,
		ExtendedTolerance:      extendedTol,
		MinPlayersToOpen:       minOpen,
		MinPlayersToKeep:       minKeep,
		PlayersPerMatch:        4,
		ConfirmationWindow:     time.Duration(confirmationMinutes) * time.Minute,
		LastMinuteWindow:       time.Duration(lastMinuteHours) * time.Hour,
		MaxWaitingAge:          time.Duration(maxWaitingHours) * time.Hour,
		MaxReplacementAttempts: maxAttempts,
		BalancePairings:        envBool("BALANCE_PAIRINGS", true),
		NotifyOnCancellation:   envBool("NOTIFY_ON_CANCELLATION", true),
	}, nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
