package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// CookieEndpointURL is where the syncer pushes snapshots. Empty means
	// the service's own /api/cart endpoint.
	CookieEndpointURL string
	SyncDebounce      time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppEnv:            getEnv("APP_ENV", "dev"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CookieEndpointURL: getEnv("COOKIE_ENDPOINT_URL", ""),
		SyncDebounce:      getEnvDuration("SYNC_DEBOUNCE", 250*time.Millisecond),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:      getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "checkout-completed"),
	}
}

// Production reports whether the service runs outside local development.
// Controls the Secure attribute on issued cookies.
func (c Config) Production() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
