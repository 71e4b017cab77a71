// Package config loads the tracker's ambient configuration (component
// 4.J) the way the teacher's internal/config does: env vars with
// fallback defaults, `.env` loaded first via godotenv, validated with
// go-playground/validator before the result is handed to tracker.New.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the env-driven superset of tracker.Config plus the
// surrounding demo/admin wiring (health address, Postgres/Redis URLs).
type Config struct {
	Env string `validate:"required"`

	MaxDeliveryAttempts int           `validate:"gte=1"`
	ReclaimIdleAfter    time.Duration `validate:"gt=0"`
	CleanupInterval     time.Duration `validate:"gt=0"`
	CleanupTaskName     string        `validate:"required"`

	HealthAddr string `validate:"required"`
	DBURL      string `validate:"required"`
	DBMaxConns int32  `validate:"gte=0"`
	RedisAddr  string `validate:"required"`
}

var validate = validator.New()

// Load reads .env (if present) then the environment, applying the
// tracker's own spec-mandated defaults (spec §3/§6) for anything unset.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                  getEnv("APP_ENV", "dev"),
		MaxDeliveryAttempts:  getEnvInt("TRACKER_MAX_DELIVERY_ATTEMPTS", 5),
		ReclaimIdleAfter:     getEnvDuration("TRACKER_RECLAIM_IDLE_AFTER", 10*time.Minute),
		CleanupInterval:      getEnvDuration("TRACKER_CLEANUP_INTERVAL", 60*time.Second),
		CleanupTaskName:      getEnv("TRACKER_CLEANUP_TASK_NAME", "CleanupTrackedErrors"),
		HealthAddr:           getEnv("TRACKER_HEALTH_ADDR", ":8090"),
		DBURL:                buildDBURL(),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 5)),
		RedisAddr:            getEnv("TRACKER_REDIS_ADDR", "127.0.0.1:6379"),
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "errortracker")
	pass := getEnv("DB_PASSWORD", "errortracker")
	name := getEnv("DB_NAME", "errortracker")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
			return fallback
		}
		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Println(err)
			return fallback
		}
		return d
	}
	return fallback
}
