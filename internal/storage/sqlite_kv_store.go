package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteKVStore implements KVStore backed by the registry table of a SQLite
// database.
type SQLiteKVStore struct {
	db *sql.DB
}

// NewSQLiteKVStore returns a new SQLiteKVStore.
func NewSQLiteKVStore(db *sql.DB) *SQLiteKVStore {
	return &SQLiteKVStore{db: db}
}

// OpenSQLiteKVStore opens the database at path and returns a store that owns it.
func OpenSQLiteKVStore(path string) (*SQLiteKVStore, error) {
	db, err := NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteKVStore(db), nil
}

// DB exposes the underlying database so other stores can share it.
func (s *SQLiteKVStore) DB() *sql.DB {
	return s.db
}

// Put upserts a single key.
func (s *SQLiteKVStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registry (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("putting key %q: %w", key, err)
	}
	return nil
}

// Get returns the value for key or ErrNotFound.
func (s *SQLiteKVStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM registry WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting key %q: %w", key, err)
	}
	return value, nil
}

// Update runs a compare-and-swap loop: the new value is written only if
// the row still holds the value fn was computed from. Each statement runs
// in autocommit mode, so other processes sharing the file are serialized
// by SQLite's write lock.
func (s *SQLiteKVStore) Update(ctx context.Context, key string, fn UpdateFunc) (string, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		old, err := s.Get(ctx, key)
		exists := true
		if errors.Is(err, ErrNotFound) {
			exists = false
		} else if err != nil {
			return "", err
		}

		next, err := fn(old, exists)
		if err != nil {
			return "", err
		}

		var res sql.Result
		if exists {
			res, err = s.db.ExecContext(ctx,
				"UPDATE registry SET value = ? WHERE key = ? AND value = ?",
				next, key, old,
			)
		} else {
			res, err = s.db.ExecContext(ctx,
				"INSERT INTO registry (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
				key, next,
			)
		}
		if err != nil {
			return "", fmt.Errorf("updating key %q: %w", key, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("updating key %q: %w", key, err)
		}
		if n == 1 {
			return next, nil
		}
	}
	return "", fmt.Errorf("updating key %q: %w", key, ErrUpdateContention)
}

// Close closes the underlying database.
func (s *SQLiteKVStore) Close() error {
	return s.db.Close()
}
