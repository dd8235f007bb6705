// Package storage is the thin Persistence adapter (spec §6.2) over the
// managed PostgreSQL store (Supabase): hand-written SQL via
// github.com/jackc/pgx/v5 against JSON-typed columns, one file per
// domain aggregate. Grounded on tarsy's pkg/database/client.go
// connection-pool/migration shape; entgo.io/ent itself is dropped
// (see DESIGN.md) since code generation is unavailable in this
// exercise.
package storage

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the connection-pool tuning knob set, loaded from env the
// same way tarsy's pkg/database/config.go does, adapted to the
// Supabase env vars spec §6.3 names.
type Config struct {
	DSN string

	MaxOpenConns    int32
	MaxIdleConns    int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfigFromEnv builds a Config from SUPABASE_URL (a full
// postgres:// DSN for the managed instance) and DB_MAX_* pool-tuning
// overrides, mirroring tarsy's production defaults (25 max open, 10
// max idle).
func LoadConfigFromEnv() (Config, error) {
	dsn := os.Getenv("SUPABASE_URL")
	if dsn == "" {
		return Config{}, fmt.Errorf("SUPABASE_URL is required")
	}

	maxOpen, err := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	maxLifetime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_IDLE_TIME: %w", err)
	}

	cfg := Config{
		DSN:             dsn,
		MaxOpenConns:    int32(maxOpen),
		MaxIdleConns:    int32(maxIdle),
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// ServiceKey resolves the preferred Supabase credential: the service
// role key if present, else the legacy service key, per spec §6.3.
func ServiceKey() string {
	if k := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); k != "" {
		return k
	}
	return os.Getenv("SUPABASE_SERVICE_KEY")
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
