// Copyright 2023 N4-Networks.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"
)

// RedisTrigger subscribes to a channel and calls a Trigger for every
// message received -- an alternative, routable-IP-free way to poke a
// simulator behind NAT, with the same effect as a connection-request HTTP
// GET (SPEC_FULL.md sec 4.9), grounded on internal/db/conn.go's
// ConnectCache.
type RedisTrigger struct {
	client *redis.Client
	sub    *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisTrigger connects to addr and subscribes to channel, invoking
// trig.OnConnectionRequest() in its own goroutine for every message.
func NewRedisTrigger(addr, channel string, trig Trigger) (*RedisTrigger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}
	sub := client.Subscribe(ctx, channel)
	t := &RedisTrigger{client: client, sub: sub, cancel: cancel}

	go func() {
		ch := sub.Channel()
		for range ch {
			logger.Println("trigger channel message received")
			trig.OnConnectionRequest()
		}
	}()

	return t, nil
}

// Close stops the subscription loop and the client.
func (t *RedisTrigger) Close() {
	t.cancel()
	_ = t.sub.Close()
	_ = t.client.Close()
}

// NameCache caches the sorted GetParameterNames result across simulator
// processes sharing one Redis instance in a fleet run (SPEC_FULL.md sec
// 4.9). Falls back to a process-local map when Redis is disabled,
// matching the single-process cache-invalidate-on-Add/Delete contract for
// the common case (spec.md sec 4.2 GetParameterNames).
type NameCache struct {
	redisCache *cache.Cache

	mu    sync.RWMutex
	local map[string][]string
}

// NewNameCache wraps a connected Redis client with go-redis/cache's local
// TinyLFU tier.
func NewNameCache(client *redis.Client) *NameCache {
	return &NameCache{
		redisCache: cache.New(&cache.Options{
			Redis:      client,
			LocalCache: cache.NewTinyLFU(1000, time.Minute),
		}),
	}
}

// NewNameCacheFromAddr dials addr and returns a Redis-backed NameCache, for
// callers that only need the cache (not the trigger subscription).
func NewNameCacheFromAddr(addr string) (*NameCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return NewNameCache(client), nil
}

// NewLocalNameCache returns a NameCache with no Redis backing, used when
// fleet.redis is disabled.
func NewLocalNameCache() *NameCache {
	return &NameCache{local: make(map[string][]string)}
}

// Get returns the cached path list for key ("prefix\x00nextLevel"), if any.
func (c *NameCache) Get(ctx context.Context, key string) ([]string, bool) {
	if c.redisCache != nil {
		var names []string
		if err := c.redisCache.Get(ctx, key, &names); err == nil {
			return names, true
		}
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.local[key]
	return names, ok
}

// Set stores names under key with a short TTL (Redis tier) or forever
// (local tier, invalidated explicitly by Invalidate).
func (c *NameCache) Set(ctx context.Context, key string, names []string) {
	if c.redisCache != nil {
		_ = c.redisCache.Set(&cache.Item{
			Ctx:   ctx,
			Key:   key,
			Value: names,
			TTL:   time.Minute,
		})
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = names
}

// Invalidate is called after AddObject/DeleteObject. On a process-local
// cache it drops every cached entry. On a Redis-backed cache it deletes
// nothing: entries there, and in its TinyLFU local tier, expire only when
// their one-minute TTL runs out.
func (c *NameCache) Invalidate(ctx context.Context) {
	if c.redisCache == nil {
		c.mu.Lock()
		c.local = make(map[string][]string)
		c.mu.Unlock()
	}
}
