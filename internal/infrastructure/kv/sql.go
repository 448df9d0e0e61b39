package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SiteAuditor/internal/ports"
)

const table = "kv_store"

// dialect carries what differs between the SQL backends.
type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	schema      string
	upsert      func(sq.InsertBuilder) sq.InsertBuilder
	stamp       func(time.Time) any
}

// SQLStore keeps values in a single kv_store table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ ports.KeyValueStore = (*SQLStore)(nil)

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("%s: create %s: %w", d.name, table, err)
	}
	return &SQLStore{db: db, dialect: d, now: time.Now}, nil
}

// Get reads the value for key.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.getQuery(key)
	if err != nil {
		return "", false, err
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: get %q: %w", s.dialect.name, key, err)
	}
	return value, true, nil
}

// Set upserts the value for key in one statement.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query, args, err := s.setQuery(key, value)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: set %q: %w", s.dialect.name, key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) getQuery(key string) (string, []any, error) {
	query, args, err := sq.Select("value").
		From(table).
		Where(sq.Eq{"key": key}).
		PlaceholderFormat(s.dialect.placeholder).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build get query: %w", err)
	}
	return query, args, nil
}

func (s *SQLStore) setQuery(key, value string) (string, []any, error) {
	insert := sq.Insert(table).
		Columns("key", "value", "updated_at").
		Values(key, value, s.dialect.stamp(s.now())).
		PlaceholderFormat(s.dialect.placeholder)

	query, args, err := s.dialect.upsert(insert).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build set query: %w", err)
	}
	return query, args, nil
}
