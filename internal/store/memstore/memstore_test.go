package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymlog/internal/store"
	"github.com/2beens/gymlog/internal/store/memstore"
	"github.com/2beens/gymlog/internal/store/storetest"
)

func TestMemstore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memstore.New()
	})
}

func TestMemstore_SelectReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Insert(ctx, store.TableWorkouts, store.Row{"id": "w-1", "name": "Push"}))

	rows, err := s.Select(ctx, store.Query{Table: store.TableWorkouts})
	require.NoError(t, err)
	rows[0]["name"] = "mutated"

	rows, err = s.Select(ctx, store.Query{Table: store.TableWorkouts})
	require.NoError(t, err)
	assert.Equal(t, "Push", rows[0].String("name"))
}

func TestMemstore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memstore.New()
	_, err := s.Select(ctx, store.Query{Table: store.TableWorkouts})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Insert(ctx, store.TableWorkouts, store.Row{"id": "w"}), context.Canceled)
}
