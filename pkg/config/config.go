package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full application configuration, loaded once at startup.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	ProviderKey ProviderKeyConfig
	MFA         MFAConfig
	Signature   SignatureConfig
	Notifx      NotifxConfig
	Tasks       TasksConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int
	AppName     string
	BodyLimit   int
	IdleTimeout time.Duration
}

// Load reads the whole configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("SERVER_PORT", 8080),
			AppName:     getEnv("SERVER_APP_NAME", "TrustGate Auth Broker"),
			BodyLimit:   getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024),
			IdleTimeout: getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database:    loadDatabaseConfig(),
		Redis:       loadRedisConfig(),
		Auth:        loadAuthConfig(),
		ProviderKey: loadProviderKeyConfig(),
		MFA:         loadMFAConfig(),
		Signature:   loadSignatureConfig(),
		Notifx:      loadNotifxConfig(),
		Tasks:       loadTasksConfig(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
