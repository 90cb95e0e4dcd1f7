// Package sqlite implements store.Store on a single SQLite file (modernc.org/sqlite,
// no cgo), for local single-user deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/2beens/gymlog/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite [%s]: %w", path, err)
	}
	// one connection: pragmas stick and :memory: stays a single database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	log.Debugf("sqlite store opened: %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Select(ctx context.Context, q store.Query) (_ []store.Row, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args := store.BuildSelect(q, store.QuestionPlaceholder)
	rows, err := s.db.QueryContext(ctx, query, toSqliteArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}

		row := make(store.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) error {
	if err := store.ValidateRow(table, row); err != nil {
		return err
	}

	query, args := store.BuildInsert(table, row, store.QuestionPlaceholder)
	if _, err := s.db.ExecContext(ctx, query, toSqliteArgs(args)...); err != nil {
		return fmt.Errorf("insert %s: %w", table, mapError(err))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, where []store.Cond, patch store.Row) (int64, error) {
	if err := store.ValidateWrite(table, where, patch); err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, nil
	}

	query, args := store.BuildUpdate(table, where, patch, store.QuestionPlaceholder)
	res, err := s.db.ExecContext(ctx, query, toSqliteArgs(args)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, mapError(err))
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, table string, where []store.Cond) (int64, error) {
	if err := store.ValidateWrite(table, where, nil); err != nil {
		return 0, err
	}

	query, args := store.BuildDelete(table, where, store.QuestionPlaceholder)
	res, err := s.db.ExecContext(ctx, query, toSqliteArgs(args)...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, mapError(err))
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toSqliteArgs(args []any) []any {
	converted := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case time.Time:
			converted[i] = v.UTC().Format(store.TimeLayout)
		case bool:
			if v {
				converted[i] = 1
			} else {
				converted[i] = 0
			}
		default:
			converted[i] = a
		}
	}
	return converted
}

func mapError(err error) error {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %s", store.ErrConflict, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %s", store.ErrReference, err)
	default:
		return err
	}
}
