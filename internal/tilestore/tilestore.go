// Package tilestore is the durable tile store: a persistent backend fronted
// by a strict LRU cache. Writes go through to the backend before the cache is
// touched, so the cache never holds bytes the backend does not.
package tilestore

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cesargomez89/tilevault/internal/cache"
	"github.com/cesargomez89/tilevault/internal/domain"
)

// Backend is the persistent side of the store. *store.DB implements it.
type Backend interface {
	GetTile(ctx context.Context, key domain.TileKey) ([]byte, bool, error)
	HasTile(ctx context.Context, key domain.TileKey) (bool, error)
	PutTile(ctx context.Context, key domain.TileKey, data []byte) error
	DeleteTileRange(ctx context.Context, source string, r domain.TileRange) (int64, error)
	TileStats(ctx context.Context) ([]domain.SourceStats, error)
	CountTiles(ctx context.Context) (int64, error)
}

type Store struct {
	backend Backend
	cache   *cache.LRU
	loads   singleflight.Group

	// deletes is bumped by every range delete; a backend read that raced
	// with one must not publish into the cache.
	deletes atomic.Uint64
}

// New wraps backend with an LRU holding up to cacheSize tiles.
func New(backend Backend, cacheSize int) *Store {
	return &Store{
		backend: backend,
		cache:   cache.NewLRU(cacheSize),
	}
}

type loadResult struct {
	data  []byte
	found bool
}

// Get returns a tile's bytes. found is false when the tile is not stored.
// Concurrent misses on the same key share one backend read.
func (s *Store) Get(ctx context.Context, source string, z, x, y int) (data []byte, found bool, err error) {
	key := domain.TileKey{Source: source, Z: z, X: x, Y: y}
	if data, ok := s.cache.Get(key); ok {
		return data, true, nil
	}

	v, err, _ := s.loads.Do(flightKey(key), func() (interface{}, error) {
		gen := s.deletes.Load()
		data, found, err := s.backend.GetTile(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			s.cache.Add(key, data, func() bool { return s.deletes.Load() == gen })
		}
		return loadResult{data: data, found: found}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read tile %s: %w", flightKey(key), err)
	}
	res := v.(loadResult)
	return res.data, res.found, nil
}

// Has reports whether a tile is stored, checking the cache first.
func (s *Store) Has(ctx context.Context, source string, z, x, y int) (bool, error) {
	key := domain.TileKey{Source: source, Z: z, X: x, Y: y}
	if s.cache.Has(key) {
		return true, nil
	}

	ok, err := s.backend.HasTile(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check tile %s: %w", flightKey(key), err)
	}
	return ok, nil
}

// Put stores a tile, replacing any previous bytes, and refreshes the cached
// copy as most recently used.
func (s *Store) Put(ctx context.Context, source string, z, x, y int, data []byte) error {
	key := domain.TileKey{Source: source, Z: z, X: x, Y: y}
	if err := s.backend.PutTile(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write tile %s: %w", flightKey(key), err)
	}
	s.cache.Set(key, data)
	return nil
}

// DeleteRange removes every tile of source at r.Z inside r from both the
// backend and the cache, and returns the number of backend rows removed.
func (s *Store) DeleteRange(ctx context.Context, source string, r domain.TileRange) (int64, error) {
	n, err := s.backend.DeleteTileRange(ctx, source, r)
	s.deletes.Add(1)
	// Evicted even when the backend delete fails.
	s.cache.RemoveRange(source, r)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tiles for %s at z%d: %w", source, r.Z, err)
	}
	return n, nil
}

func (s *Store) Stats(ctx context.Context) ([]domain.SourceStats, error) {
	stats, err := s.backend.TileStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile stats: %w", err)
	}
	return stats, nil
}

func (s *Store) TotalCount(ctx context.Context) (int64, error) {
	n, err := s.backend.CountTiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count tiles: %w", err)
	}
	return n, nil
}

func (s *Store) CacheLen() int { return s.cache.Len() }

func (s *Store) CacheCap() int { return s.cache.Cap() }

func flightKey(k domain.TileKey) string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Source, k.Z, k.X, k.Y)
}
