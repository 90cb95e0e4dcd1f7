// Package memstore is an in-process store.Store, used for development and tests.
// It keeps rows in insertion order and has no foreign keys or cascades.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/2beens/gymlog/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string][]store.Row
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	tables := make(map[string][]store.Row)
	for _, t := range store.Tables() {
		tables[t] = nil
	}
	return &Store{tables: tables}
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var rows []store.Row
	for _, r := range s.tables[q.Table] {
		if store.Matches(r, q.Where) {
			rows = append(rows, r.Clone())
		}
	}
	s.mu.RUnlock()

	if len(q.OrderBy) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, o := range q.OrderBy {
				c := store.Compare(rows[i][o.Column], rows[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	return rows, nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateRow(table, row); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pk := store.PrimaryKey(table)
	if id, ok := row[pk]; ok {
		for _, existing := range s.tables[table] {
			if store.Compare(existing[pk], id) == 0 {
				return fmt.Errorf("%w: %s %s=%v", store.ErrConflict, table, pk, id)
			}
		}
	}

	s.tables[table] = append(s.tables[table], row.Clone())
	return nil
}

func (s *Store) Update(ctx context.Context, table string, where []store.Cond, patch store.Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := store.ValidateWrite(table, where, patch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, r := range s.tables[table] {
		if !store.Matches(r, where) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		affected++
	}
	return affected, nil
}

func (s *Store) Delete(ctx context.Context, table string, where []store.Cond) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := store.ValidateWrite(table, where, nil); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tables[table][:0]
	var affected int64
	for _, r := range s.tables[table] {
		if store.Matches(r, where) {
			affected++
			continue
		}
		kept = append(kept, r)
	}
	s.tables[table] = kept
	return affected, nil
}

func (s *Store) Close() error {
	return nil
}
