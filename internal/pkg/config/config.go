package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coursepass/coursepass/internal/pkg/env"
)

// Gateway holds the startup settings for one payment gateway integration.
type Gateway struct {
	Name    string `validate:"required"`
	Secret  string `validate:"required"`
	Enabled bool
}

// Config is the immutable startup configuration. It is built once in Load
// and passed by reference into each component; nothing mutates it afterwards.
type Config struct {
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`

	DBUser     string `validate:"required"`
	DBPassword string
	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBName     string `validate:"required"`

	CacheHost string `validate:"required"`
	CachePort string `validate:"required,numeric"`

	// Telegram access gateway
	BotToken     string `validate:"required"`
	AdminChatIDs []int64

	// Admin endpoints (basic auth; password stored as bcrypt hash)
	AdminUser         string
	AdminPasswordHash string

	SweepInterval    time.Duration `validate:"gt=0"`
	SweepBatchSize   int           `validate:"gt=0"`
	SweepConcurrency int           `validate:"gt=0"`
	RevokeTimeout    time.Duration `validate:"gt=0"`

	Gateways map[string]Gateway `validate:"min=1,dive"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AppHost: env.GetEnv("APP_HOST", "localhost"),
		AppPort: env.GetEnv("APP_PORT", "4000"),

		DBUser:     env.GetEnv("DB_USER", ""),
		DBPassword: env.GetEnv("DB_PASSWORD", ""),
		DBHost:     env.GetEnv("DB_HOST", "127.0.0.1"),
		DBPort:     env.GetEnv("DB_PORT", "3306"),
		DBName:     env.GetEnv("DB_NAME", ""),

		CacheHost: env.GetEnv("CACHE_HOST", "localhost"),
		CachePort: env.GetEnv("CACHE_PORT", "6379"),

		BotToken: env.GetEnv("TELEGRAM_BOT_TOKEN", ""),

		AdminUser:         env.GetEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: env.GetEnv("ADMIN_PASSWORD_HASH", ""),

		SweepInterval:    durationEnv("SWEEP_INTERVAL", time.Hour),
		SweepBatchSize:   intEnv("SWEEP_BATCH_SIZE", 200),
		SweepConcurrency: intEnv("SWEEP_CONCURRENCY", 4),
		RevokeTimeout:    durationEnv("REVOKE_TIMEOUT", 15*time.Second),
	}

	adminIDs, err := parseAdminIDs(env.GetEnv("ADMIN_IDS", ""))
	if err != nil {
		return nil, err
	}
	cfg.AdminChatIDs = adminIDs

	cfg.Gateways = loadGateways()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Gateway returns the integration config for a gateway name, or nil if the
// gateway is not configured at all.
func (c *Config) Gateway(name string) *Gateway {
	g, ok := c.Gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return &g
}

// loadGateways reads GATEWAYS (comma-separated names) plus per-gateway
// <NAME>_SECRET and <NAME>_ENABLED variables. Gateways without a secret are
// skipped; they would fail every verification anyway.
func loadGateways() map[string]Gateway {
	out := make(map[string]Gateway)
	for _, raw := range strings.Split(env.GetEnv("GATEWAYS", "payform"), ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		prefix := strings.ToUpper(name)
		secret := env.GetEnv(prefix+"_SECRET", "")
		if secret == "" {
			continue
		}
		out[name] = Gateway{
			Name:    name,
			Secret:  secret,
			Enabled: boolEnv(prefix+"_ENABLED", true),
		}
	}
	return out
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func boolEnv(key string, def bool) bool {
	switch strings.ToLower(env.GetEnv(key, strconv.FormatBool(def))) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(env.GetEnv(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(env.GetEnv(key, def.String()))
	if err != nil {
		return def
	}
	return v
}
