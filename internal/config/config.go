package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StoreConfig is the part of the configuration the CLI needs.
type StoreConfig struct {
	Backend        string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string

	StandingsStrategy string
	PairingStrategy   string
}

type AppConfig struct {
	Store StoreConfig

	IrisBaseURL string
	IrisWSURL   string
	EgressMode  string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	AllowedRooms []string
	AdminUsers   []string

	MessagesDir string
	MetricsAddr string

	BroadcastCron  string
	BroadcastRooms []string
}

// LoadDotEnv reads a .env file when present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load %s: %w", strings.Join(existing, ","), err)
	}
	return nil
}

// LoadStore reads the backend and strategy keys only.
func LoadStore() (*StoreConfig, error) {
	sc := &StoreConfig{
		Backend:           strings.ToLower(getenvDefault("STORE_BACKEND", BackendMemory)),
		DatabaseURL:       env("DATABASE_URL"),
		RedisURL:          env("REDIS_URL"),
		RedisKeyPrefix:    getenvDefault("REDIS_KEY_PREFIX", "swiss"),
		StandingsStrategy: strings.ToLower(getenvDefault("STANDINGS_STRATEGY", "derived")),
		PairingStrategy:   strings.ToLower(getenvDefault("PAIRING_STRATEGY", "adjacent")),
	}

	switch sc.Backend {
	case BackendMemory:
	case BackendPostgres:
		if sc.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	case BackendRedis:
		if sc.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for STORE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", sc.Backend)
	}

	switch sc.StandingsStrategy {
	case "derived", "cached":
	default:
		return nil, fmt.Errorf("unknown STANDINGS_STRATEGY %q", sc.StandingsStrategy)
	}
	switch sc.PairingStrategy {
	case "adjacent", "greedy":
	default:
		return nil, fmt.Errorf("unknown PAIRING_STRATEGY %q", sc.PairingStrategy)
	}
	return sc, nil
}

func Load() (*AppConfig, error) {
	sc, err := LoadStore()
	if err != nil {
		return nil, err
	}
	cfg := &AppConfig{
		Store:       *sc,
		EgressMode:  strings.ToLower(getenvDefault("EGRESS_MODE", "http")),
		MessagesDir: env("MESSAGES_DIR"),
		MetricsAddr: env("METRICS_ADDR"),
	}

	cfg.IrisBaseURL = env("IRIS_BASE_URL")
	cfg.IrisWSURL = env("IRIS_WS_URL")
	cfg.BotPrefix = env("BOT_PREFIX")

	cfg.XUserID = env("X_USER_ID")
	cfg.XUserEmail = env("X_USER_EMAIL")
	cfg.XSessionID = env("X_SESSION_ID")

	cfg.AllowedRooms = splitList(os.Getenv("ALLOWED_ROOMS"))
	cfg.AdminUsers = splitList(os.Getenv("ADMIN_USERS"))

	cfg.BroadcastCron = env("BROADCAST_CRON")
	cfg.BroadcastRooms = splitList(os.Getenv("BROADCAST_ROOMS"))

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	switch cfg.EgressMode {
	case "http", "ws", "auto":
	default:
		return nil, fmt.Errorf("unknown EGRESS_MODE %q", cfg.EgressMode)
	}
	if cfg.BroadcastCron != "" && len(cfg.BroadcastRooms) == 0 {
		return nil, errors.New("BROADCAST_ROOMS is required when BROADCAST_CRON is set")
	}

	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func getenvDefault(k, def string) string {
	if v := env(k); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
