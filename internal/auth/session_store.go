// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/samber/oops"
)

// SessionStore binds session tokens to users. A user holds at most one token.
type SessionStore interface {
	// Get returns the user bound to token. Returns ErrNotFound on miss.
	Get(ctx context.Context, token string) (int64, error)

	// Set binds token to userID, replacing the user's previous token.
	Set(ctx context.Context, token string, userID int64) error

	// Delete removes the user's binding. Deleting an absent binding is not an error.
	Delete(ctx context.Context, userID int64) error
}

// CachedSessionStore fronts a SessionStore with an in-process expirable LRU.
// Writes through this store invalidate cached entries for the user; writes made by
// other processes become visible once the entry expires, so use it only with a
// single instance or a short TTL.
type CachedSessionStore struct {
	inner   SessionStore
	entries *expirable.LRU[string, cachedSession]

	mu     sync.Mutex
	writes uint64
	gens   map[int64]uint64
}

// cachedSession is valid while gen matches the user's current generation.
type cachedSession struct {
	userID int64
	gen    uint64
}

// NewCachedSessionStore wraps inner with a cache of at most size entries.
func NewCachedSessionStore(inner SessionStore, size int, ttl time.Duration) (*CachedSessionStore, error) {
	if inner == nil {
		return nil, oops.Code("SESSION_CACHE_INVALID").Errorf("inner session store is required")
	}
	if size <= 0 {
		return nil, oops.Code("SESSION_CACHE_INVALID").With("size", size).Errorf("cache size must be positive")
	}
	return &CachedSessionStore{
		inner:   inner,
		entries: expirable.NewLRU[string, cachedSession](size, nil, ttl),
		gens:    make(map[int64]uint64),
	}, nil
}

// Get returns the cached binding or loads it from the inner store.
func (c *CachedSessionStore) Get(ctx context.Context, token string) (int64, error) {
	c.mu.Lock()
	entry, ok := c.entries.Get(token)
	if ok && entry.gen != c.gens[entry.userID] {
		c.entries.Remove(token)
		ok = false
	}
	before := c.writes
	c.mu.Unlock()

	if ok {
		return entry.userID, nil
	}

	userID, err := c.inner.Get(ctx, token)
	if err != nil {
		return 0, err
	}

	// Skip caching when any write landed during the load.
	c.mu.Lock()
	if c.writes == before {
		c.entries.Add(token, cachedSession{userID: userID, gen: c.gens[userID]})
	}
	c.mu.Unlock()

	return userID, nil
}

// Set writes through to the inner store and invalidates the user's cached token.
func (c *CachedSessionStore) Set(ctx context.Context, token string, userID int64) error {
	defer c.invalidate(userID)
	return c.inner.Set(ctx, token, userID)
}

// Delete writes through to the inner store and invalidates the user's cached token.
func (c *CachedSessionStore) Delete(ctx context.Context, userID int64) error {
	defer c.invalidate(userID)
	return c.inner.Delete(ctx, userID)
}

func (c *CachedSessionStore) invalidate(userID int64) {
	c.mu.Lock()
	c.writes++
	c.gens[userID]++
	c.mu.Unlock()
}

var _ SessionStore = (*CachedSessionStore)(nil)
