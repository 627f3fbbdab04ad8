package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DB wraps sql.DB with additional functionality. DB takes the write lock at
// BEGIN; Reader defers locking so its transactions read a WAL snapshot
// without blocking writers.
type DB struct {
	*sql.DB
	Reader *sql.DB
	logger *zap.Logger
}

// New creates a new database connection
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	// WAL lets list queries read while a transition commits
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_txlock=immediate",
		cfg.Path, busy.Milliseconds())

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Opened after the writer so the file is already in WAL mode
	readerDSN := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=deferred&_query_only=true",
		cfg.Path, busy.Milliseconds())

	reader, err := sql.Open("sqlite3", readerDSN)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}

	reader.SetMaxOpenConns(cfg.MaxOpenConns)
	reader.SetMaxIdleConns(cfg.MaxIdleConns)
	reader.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := reader.Ping(); err != nil {
		_ = reader.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping read pool: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		Reader: reader,
		logger: logger,
	}

	logger.Info("Database connection established", zap.String("path", cfg.Path))
	return db, nil
}

// WithTx executes fn within a plain transaction. Used by the migrator;
// application code goes through the context-carrying transaction manager.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes both pools
func (db *DB) Close() error {
	db.logger.Info("Closing database connection")
	return errors.Join(db.Reader.Close(), db.DB.Close())
}
