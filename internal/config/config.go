package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           int
	NatsURL        string
	NatsToken      string
	DatabaseURL    string
	LogLevel       string
	GeminiAPIKey   string
	GeminiModel    string
	BatchThreshold int
	BatchWindowMax int
	SessionGap     time.Duration
	ModelTimeout   time.Duration
	AnalyzeWorkers int
	AnalyzeCron    string
}

func Load() Config {
	return Config{
		Port:           envInt("PAGEPULSE_PORT", 8640),
		NatsURL:        envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:      envStr("NATS_TOKEN", ""),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		GeminiAPIKey:   envStr("GEMINI_API_KEY", ""),
		GeminiModel:    envStr("PAGEPULSE_MODEL", "gemini-2.0-flash"),
		BatchThreshold: envInt("BATCH_THRESHOLD", 25),
		BatchWindowMax: envInt("BATCH_WINDOW_MAX", 100),
		SessionGap:     time.Duration(envInt("SESSION_GAP_HOURS", 24)) * time.Hour,
		ModelTimeout:   envDur("MODEL_TIMEOUT", 120*time.Second),
		AnalyzeWorkers: envInt("ANALYZE_WORKERS", 4),
		AnalyzeCron:    envStr("ANALYZE_CRON", "0 */6 * * *"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
