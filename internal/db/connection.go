package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/polematch/internal/config"
)

// Connection holds the database connection
type Connection struct {
	DB *sql.DB
}

// DSN builds a lib/pq connection string from the PG* environment
// variables. POLEMATCH_DATABASE_URL, when set, wins.
func DSN() string {
	if url := config.GetEnv(config.EnvPrefix+"DATABASE_URL", ""); url != "" {
		return url
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.GetEnv("PGHOST", "localhost"),
		config.GetEnv("PGPORT", "5432"),
		config.GetEnv("PGUSER", "polematch"),
		config.GetEnv("PGPASSWORD", "polematch"),
		config.GetEnv("PGDATABASE", "polematch"),
		config.GetEnv("PGSSLMODE", "disable"))
}

// NewConnection opens and pings a database. An empty dsn uses DSN().
func NewConnection(ctx context.Context, dsn string) (*Connection, error) {
	if dsn == "" {
		dsn = DSN()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(config.GetEnvInt(config.EnvPrefix+"DB_MAX_CONNS", 20))
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return &Connection{DB: db}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
