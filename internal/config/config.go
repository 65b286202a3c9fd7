package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// セッションレジストリの保存先。
const (
	SessionStorePostgres = "postgres"
	SessionStoreMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret   string
	TokenMaxAge time.Duration

	// Login
	LoginMaxAttempts    int
	LoginThrottleWindow time.Duration
	BcryptCost          int

	// Session
	SessionStore         string
	SessionPurgeInterval time.Duration // 0の場合は期限切れセッションを削除しない

	// Seed
	SeedUsersPath string

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenMaxAge = getEnvDuration("TOKEN_MAX_AGE", time.Hour)
	cfg.LoginMaxAttempts = getEnvInt("LOGIN_MAX_ATTEMPTS", 5)
	cfg.LoginThrottleWindow = getEnvDuration("LOGIN_THROTTLE_WINDOW", 15*time.Minute)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.SessionStore = getEnvString("SESSION_STORE", SessionStorePostgres)
	cfg.SessionPurgeInterval = getEnvDuration("SESSION_PURGE_INTERVAL", 0)
	cfg.SeedUsersPath = getEnvString("SEED_USERS_PATH", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE %q: must be %q or %q",
			cfg.SessionStore, SessionStorePostgres, SessionStoreMemory)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
