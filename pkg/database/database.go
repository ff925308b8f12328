// Package database opens the directory database for the configured driver
// (PostgreSQL through lib/pq, SQLite through go-sqlite3) and provides a
// transaction helper.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
)

// sqliteDriver is go-sqlite3 with a Unicode-aware LOWER. The built-in one
// only folds ASCII, so "Álvarez" would never match "álvarez".
const sqliteDriver = "sqlite3_unicode"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
}

// unicodeLower mirrors SQL LOWER: NULL stays NULL and other values are
// lower-cased as text.
func unicodeLower(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		return strings.ToLower(v)
	case []byte:
		if v == nil {
			return nil
		}
		return strings.ToLower(string(v))
	default:
		return fmt.Sprint(v)
	}
}

type Client struct {
	DB     *sql.DB
	Driver string
}

func New(cfg config.DatabaseConfig) (*Client, error) {
	driverName := cfg.Driver
	if driverName == config.DriverSQLite {
		driverName = sqliteDriver
	}
	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver == config.DriverSQLite {
		// A single long-lived connection avoids SQLITE_BUSY during seeding
		// and keeps ":memory:" databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", cfg.Driver, err)
	}
	return &Client{DB: db, Driver: cfg.Driver}, nil
}

// Wrap adapts an already opened handle, e.g. an in-memory SQLite database in
// tests.
func Wrap(db *sql.DB, driver string) *Client {
	return &Client{DB: db, Driver: driver}
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
