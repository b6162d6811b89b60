package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/mediguard/mediguard/backend/simulator"
)

// Config holds the process configuration, read from environment variables
// with sensible defaults.
type Config struct {
	ListenAddr  string
	CatalogPath string
	ModelPath   string

	// AlertBackend selects the alert store: memory, postgres or redis.
	AlertBackend string
	PostgresURL  string
	RedisAddr    string

	// ReferenceDate is the single reference date used for every
	// days-to-expiry computation (scoring and evaluation alike). Defaults
	// to process start; pin it with REFERENCE_DATE=YYYY-MM-DD for
	// reproducible demos.
	ReferenceDate time.Time

	Generator simulator.GeneratorConfig
}

// LoadConfig reads the environment.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:   envStr("LISTEN_ADDR", ":8000"),
		CatalogPath:  os.Getenv("CATALOG_PATH"),
		ModelPath:    os.Getenv("MODEL_PATH"),
		AlertBackend: envStr("ALERT_STORE", "memory"),
		PostgresURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    envStr("REDIS_ADDR", "localhost:6379"),
		Generator:    simulator.DefaultGeneratorConfig(),
	}

	cfg.ReferenceDate = time.Now().UTC()
	if v := os.Getenv("REFERENCE_DATE"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			cfg.ReferenceDate = t
		} else {
			log.Printf("config: ignoring invalid REFERENCE_DATE %q: %v", v, err)
		}
	}

	cfg.Generator.Seed = envInt64("SIM_SEED", cfg.Generator.Seed)
	cfg.Generator.SensorChannels = int(envInt64("SENSOR_CHANNELS", int64(cfg.Generator.SensorChannels)))
	cfg.Generator.FailureRate = envFloat("FAILURE_RATE", cfg.Generator.FailureRate)
	if ms := envInt64("LATENCY_MIN_MS", cfg.Generator.LatencyMin.Milliseconds()); ms >= 0 {
		cfg.Generator.LatencyMin = time.Duration(ms) * time.Millisecond
	}
	if ms := envInt64("LATENCY_MAX_MS", cfg.Generator.LatencyMax.Milliseconds()); ms >= 0 {
		cfg.Generator.LatencyMax = time.Duration(ms) * time.Millisecond
	}

	log.Printf("config: addr=%s catalog=%q model=%q store=%s reference_date=%s",
		cfg.ListenAddr, cfg.CatalogPath, cfg.ModelPath, cfg.AlertBackend,
		cfg.ReferenceDate.Format("2006-01-02"))
	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		log.Printf("config: ignoring invalid %s=%q", key, v)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: ignoring invalid %s=%q", key, v)
	}
	return def
}
