package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/coocood/freecache"
)

var _ Backend = (*Freecache)(nil)

// Freecache is an in-process Backend with bounded memory.
type Freecache struct {
	cache *freecache.Cache
}

func NewFreecache(sizeMB int) *Freecache {
	megabyte := 1024 * 1024
	return &Freecache{
		cache: freecache.NewCache(sizeMB * megabyte),
	}
}

func (f *Freecache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, err := f.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set fails with freecache.ErrLargeEntry for values above 1/1024 of the cache size.
func (f *Freecache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if err := f.cache.Set([]byte(key), val, expireSeconds(ttl)); err != nil {
		return fmt.Errorf("freecache set %s (%d bytes): %w", key, len(val), err)
	}
	return nil
}

func (f *Freecache) Del(_ context.Context, key string) error {
	f.cache.Del([]byte(key))
	return nil
}

func (f *Freecache) DeletePrefix(_ context.Context, prefix string) error {
	// collect first, deleting while iterating skips entries
	var keys [][]byte
	it := f.cache.NewIterator()
	for entry := it.Next(); entry != nil; entry = it.Next() {
		if bytes.HasPrefix(entry.Key, []byte(prefix)) {
			keys = append(keys, entry.Key)
		}
	}
	for _, k := range keys {
		f.cache.Del(k)
	}
	return nil
}

// freecache treats 0 as no expiry and works in whole seconds
func expireSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int(math.Ceil(ttl.Seconds()))
}
