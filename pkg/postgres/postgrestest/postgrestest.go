// Package postgrestest connects tests to a local PostgreSQL. Tests using it
// are skipped when the database is unreachable.
//
// Run with:
//
//	go test -tags=integration ./...
package postgrestest

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// Config reads TEST_POSTGRES_* variables, falling back to local defaults.
func Config() config.PostgresConfig {
	return config.PostgresConfig{
		Enabled:         true,
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "docsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "docsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Open connects to the test database and drops tables when the test ends.
func Open(t *testing.T, dropTables ...string) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, Config())
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() {
		for _, table := range dropTables {
			_ = db.Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
		}
		db.Close()
	})
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
