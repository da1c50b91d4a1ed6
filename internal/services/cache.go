package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a TodoStore with a Redis read-through cache for Get.
// Update and Delete evict before and after the write; List and Create pass
// straight through. A Get that read the old item before the write can still
// repopulate it after the second eviction, so entries are bounded by the TTL.
type Cache struct {
	base  TodoStore
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching TodoStore using the provided Redis client and TTL.
func NewCache(base TodoStore, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("services.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

func (c *Cache) List(ctx context.Context) ([]*Todo, error) {
	return c.base.List(ctx)
}

func (c *Cache) Create(ctx context.Context, fields map[string]any) (*Todo, error) {
	return c.base.Create(ctx, fields)
}

func (c *Cache) Get(ctx context.Context, id string) (*Todo, error) {
	if todo, ok := c.load(ctx, id); ok {
		return todo, nil
	}

	todo, err := c.base.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, todo)
	return todo, nil
}

func (c *Cache) Update(ctx context.Context, id string, fields map[string]any) (*Todo, error) {
	c.evict(ctx, id)
	todo, err := c.base.Update(ctx, id, fields)
	c.evict(ctx, id)
	return todo, err
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	c.evict(ctx, id)
	err := c.base.Delete(ctx, id)
	c.evict(ctx, id)
	return err
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) Close(ctx context.Context) error {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	return c.base.Close(ctx)
}

func (c *Cache) load(ctx context.Context, id string) (*Todo, bool) {
	if c.redis == nil || id == "" {
		return nil, false
	}
	data, err := c.redis.Get(ctx, todoCacheKey(id)).Bytes()
	if err != nil {
		// Misses and redis errors both fall back to the backing store.
		return nil, false
	}
	var todo Todo
	if err := todo.UnmarshalJSON(data); err != nil || todo.ID != id {
		_ = c.redis.Del(ctx, todoCacheKey(id)).Err()
		return nil, false
	}
	return &todo, true
}

func (c *Cache) store(ctx context.Context, todo *Todo) {
	if c.redis == nil || todo == nil {
		return
	}
	data, err := todo.MarshalJSON()
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, todoCacheKey(todo.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id string) {
	if c.redis == nil || id == "" {
		return
	}
	_ = c.redis.Del(ctx, todoCacheKey(id)).Err()
}

func todoCacheKey(id string) string {
	return "todo:" + id
}
