package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the env-driven layer of configuration, read by
// cmd/server's cobra/pflag/viper layer as the lowest-priority
// defaults (CLI flags win over env vars win over these). Grounded in
// the teacher's internal/config.Load (godotenv.Load then os.Getenv
// reads), generalized from DB/JWT/bot-token fields to this server's
// actual inputs.
type Config struct {
	ListenAddr        string
	WordsPath         string
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	LogLevel          string
	LogJSON           bool
	AllowedOrigin     string
	PublicBaseURL     string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:        getenv("LISTEN_ADDR", "0.0.0.0:8080"),
		WordsPath:         os.Getenv("WORDS_PATH"),
		HeartbeatInterval: getenvSeconds("HEARTBEAT_INTERVAL_SECONDS", 5),
		ClientTimeout:     getenvSeconds("CLIENT_TIMEOUT_SECONDS", 10),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogJSON:           getenvBool("LOG_JSON", false),
		AllowedOrigin:     os.Getenv("ALLOWED_ORIGIN"),
		PublicBaseURL:     os.Getenv("PUBLIC_BASE_URL"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvSeconds(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(fallback) * time.Second
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
