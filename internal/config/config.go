package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/smschat/server/internal/secrets"
)

// Config holds the application configuration.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	Twilio      TwilioConfig
	Redis       RedisConfig
	SeedUsers   bool
}

// TwilioConfig holds the resolved provider credentials. Values are resolved at
// startup and injected; nothing reads the environment after Load returns.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	StatusCallbackURL string
}

// Configured reports whether every credential needed to send SMS is present.
// When false the send path short-circuits to a failed delivery.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// RedisConfig holds the optional message-list cache settings. The cache is
// disabled when REDIS_ADDR is unset.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Load reads configuration from environment variables. Twilio credentials are
// resolved from the environment first, falling back to the encrypted
// credentials file when one is configured.
func Load() (*Config, error) {
	cfg := &Config{
		Port: "8080",
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.Twilio = loadTwilioConfig()
	cfg.Redis = loadRedisConfig()
	cfg.SeedUsers = os.Getenv("SEED_USERS") == "true"

	return cfg, nil
}

// loadTwilioConfig resolves provider credentials: environment variables take
// precedence, the encrypted credentials file fills in anything missing.
// Decryption failures are logged by the secrets store and surface here as
// absent values, never as errors.
func loadTwilioConfig() TwilioConfig {
	store := secrets.Open(
		os.Getenv("TWILIO_CREDENTIALS_FILE"),
		os.Getenv("TWILIO_CREDENTIALS_IDENTITY"),
	)

	resolve := func(envKey, storeKey string) string {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
		return store.Get(storeKey)
	}

	return TwilioConfig{
		AccountSID:        resolve("TWILIO_ACCOUNT_SID", "twilio_account_sid"),
		AuthToken:         resolve("TWILIO_AUTH_TOKEN", "twilio_auth_token"),
		FromNumber:        resolve("TWILIO_PHONE_NUMBER", "twilio_phone_number"),
		StatusCallbackURL: os.Getenv("STATUS_CALLBACK_URL"),
	}
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 300)) * time.Second,
	}
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
