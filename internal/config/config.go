// Package config reads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        string
	DBPath      string
	DataDir     string
	BanksConfig string // empty: embedded default
	RatesConfig string // empty: embedded default
	DefaultBank string
	LogLevel    string
	ReadWorkers int

	// Transaction-type substrings dropped by the successful-transaction filter.
	ExcludeTypes []string

	PeriodGranularity string
	CacheTTL          time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded, using environment and defaults")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "posrecon.db"),
		DataDir:           getEnv("DATA_DIR", "data/raw"),
		BanksConfig:       getEnv("BANKS_CONFIG", ""),
		RatesConfig:       getEnv("RATES_CONFIG", ""),
		DefaultBank:       getEnv("DEFAULT_BANK", "Vakıfbank"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ReadWorkers:       getEnvAsInt("READ_WORKERS", 4),
		ExcludeTypes:      getEnvAsList("EXCLUDE_TRANSACTION_TYPES", []string{"İPTAL", "IPTAL", "BAŞARISIZ"}),
		PeriodGranularity: getEnv("PERIOD_GRANULARITY", "month"),
		CacheTTL:          getEnvAsDuration("CACHE_TTL", 0),
	}
	if cfg.ReadWorkers < 1 {
		log.Warn().Int("read_workers", cfg.ReadWorkers).Msg("READ_WORKERS must be positive, using 1")
		cfg.ReadWorkers = 1
	}
	if cfg.PeriodGranularity != "month" && cfg.PeriodGranularity != "quarter" {
		log.Warn().Str("granularity", cfg.PeriodGranularity).Msg("unknown PERIOD_GRANULARITY, using month")
		cfg.PeriodGranularity = "month"
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("invalid integer, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if valueStr == "0" {
		return 0
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("invalid duration, using default")
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
