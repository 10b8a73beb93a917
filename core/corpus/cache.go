/*
Tile caching. Values are normalized tiles; keys carry the tile size so
differently-sized runs never see each other's entries. The redis impl
stores tiles PNG-encoded.
*/
package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss signals an absent entry. Any other Get error is a cache
// failure, which Load degrades around.
var ErrCacheMiss = errors.New("corpus: tile cache miss")

// TileCache stores normalized tiles.
type TileCache interface {
	Get(ctx context.Context, key string) (image.Image, error)
	Set(ctx context.Context, key string, tile image.Image) error
}

func cacheKey(key string, size int) string {
	return fmt.Sprintf("tile:%d:%s", size, key)
}

// MemoryCache is a process-local TileCache. Safe for concurrent use.
type MemoryCache struct {
	mx    sync.Mutex
	tiles map[string]image.Image
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tiles: make(map[string]image.Image)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (image.Image, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	tile, ok := c.tiles[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return tile, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, tile image.Image) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.tiles[key] = tile
	return nil
}

// RedisCache keeps tiles in redis so repeated runs against the same
// corpus skip the fetch+normalize work.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func (c *RedisCache) Get(ctx context.Context, key string) (image.Image, error) {
	b, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}

func (c *RedisCache) Set(ctx context.Context, key string, tile image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, tile); err != nil {
		return err
	}
	return c.Client.Set(ctx, key, buf.Bytes(), c.TTL).Err()
}
