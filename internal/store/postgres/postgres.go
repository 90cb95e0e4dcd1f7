// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gymlog/internal/store"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
	"github.com/2beens/gymlog/pkg"
)

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) Select(ctx context.Context, q store.Query) (_ []store.Row, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.postgres.select")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("table", q.Table))

	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args := store.BuildSelect(q, store.DollarPlaceholder)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result []store.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("row values %s: %w", q.Table, err)
		}
		row := make(store.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s rows: %w", q.Table, err)
	}

	span.SetAttributes(attribute.Int("rows", len(result)))
	return result, nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.postgres.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("table", table))

	if err := store.ValidateRow(table, row); err != nil {
		return err
	}

	query, args := store.BuildInsert(table, row, store.DollarPlaceholder)
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, mapError(err))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, where []store.Cond, patch store.Row) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.postgres.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("table", table))

	if err := store.ValidateWrite(table, where, patch); err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, nil
	}

	query, args := store.BuildUpdate(table, where, patch, store.DollarPlaceholder)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, mapError(err))
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Delete(ctx context.Context, table string, where []store.Cond) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.postgres.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("table", table))

	if err := store.ValidateWrite(table, where, nil); err != nil {
		return 0, err
	}

	query, args := store.BuildDelete(table, where, store.DollarPlaceholder)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, mapError(err))
	}
	return tag.RowsAffected(), nil
}

// Close is a no-op; the pool is owned and closed by the server.
func (s *Store) Close() error {
	return nil
}

func mapError(err error) error {
	switch {
	case pkg.IsUniqueViolationError(err):
		return fmt.Errorf("%w: %s", store.ErrConflict, err)
	case pkg.IsForeignKeyViolationError(err):
		return fmt.Errorf("%w: %s", store.ErrReference, err)
	default:
		return err
	}
}
