package engine

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all env-parsed configuration for the zone engine service.
type Config struct {
	Pairs []string

	HysteresisThreshold float64       // fractional move that marks a pair stale
	DebounceInterval    time.Duration // minimum spacing between runs per pair
	TickInterval        time.Duration // coordinator loop tick
	DiagInterval        time.Duration // diagnostics publish interval

	ZoneCount          int
	TimeDecayFactor    float64
	RelevancyThreshold float64
	MinLookbackDays    int
	IntervalMinutes    int

	Workers    int
	JobTimeout time.Duration // 0 disables the per-job watchdog

	RingSize    int
	EventBuffer int

	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string

	// ReloadTOTPSecret guards the admin /reload endpoint. Empty disables
	// the check (local development).
	ReloadTOTPSecret string
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() Config {
	workers, _ := strconv.Atoi(getEnv("CALC_WORKERS", "0"))
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return Config{
		Pairs: parsePairs(getEnv("PAIRS", "BTCUSDT,ETHUSDT")),

		HysteresisThreshold: getEnvFloat("HYSTERESIS_THRESHOLD", 0.01),
		DebounceInterval:    time.Duration(getEnvInt("DEBOUNCE_INTERVAL_SEC", 60)) * time.Second,
		TickInterval:        time.Duration(getEnvInt("TICK_INTERVAL_MS", 250)) * time.Millisecond,
		DiagInterval:        time.Duration(getEnvInt("DIAG_INTERVAL_SEC", 10)) * time.Second,

		ZoneCount:          getEnvInt("ZONE_COUNT", 100),
		TimeDecayFactor:    getEnvFloat("TIME_DECAY_FACTOR", 3.0),
		RelevancyThreshold: getEnvFloat("RELEVANCY_THRESHOLD", 0.15),
		MinLookbackDays:    getEnvInt("MIN_LOOKBACK_DAYS", 7),
		IntervalMinutes:    getEnvInt("INTERVAL_MINUTES", 15),

		Workers:    workers,
		JobTimeout: time.Duration(getEnvInt("JOB_TIMEOUT_SEC", 0)) * time.Second,

		RingSize:    getEnvInt("TICK_RING_SIZE", 8192),
		EventBuffer: getEnvInt("EVENT_BUFFER", 1024),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9105"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":9106"),

		ReloadTOTPSecret: getEnv("RELOAD_TOTP_SECRET", ""),
	}
}

func parsePairs(s string) []string {
	var pairs []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
