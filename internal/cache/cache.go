// Package cache implements the reader cache the state layer uses to
// avoid re-issuing metadata reads within a session: an in-memory map
// by default, or a Redis-backed shared cache when a sibling snowcap
// process needs to see the same entries (spec §5, §4.5).
package cache

import (
	"context"
	"sync"
)

// Cache stores arbitrary fetch results keyed by (sessionID, role, key),
// and supports dropping every entry for a role in one call — the
// coarse-but-correct invalidation the executor performs after every
// mutating statement (spec §4.5 "Caching").
type Cache interface {
	Get(ctx context.Context, sessionID, role, key string) (any, bool, error)
	Set(ctx context.Context, sessionID, role, key string, value any) error
	InvalidateRole(ctx context.Context, sessionID, role string) error
	Close() error
}

// InMemory is the default Cache: a single process's reader cache, held
// for the lifetime of one Plan/Apply run. Keys are the triple
// (sessionID, role, key) joined with a separator that cannot appear in
// any of its parts (role and session IDs are UUIDs/locators; key is a
// caller-chosen fetch identifier).
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewInMemory builds an empty in-memory cache.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]any)}
}

func (c *InMemory) Get(_ context.Context, sessionID, role, key string) (any, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[compositeKey(sessionID, role, key)]

	return v, ok, nil
}

func (c *InMemory) Set(_ context.Context, sessionID, role, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[compositeKey(sessionID, role, key)] = value

	return nil
}

// InvalidateRole drops every entry recorded under (sessionID, role). A
// linear scan is acceptable here: entry counts are bounded by the
// number of distinct object kinds fetched in a single plan/apply run,
// not by warehouse data volume.
func (c *InMemory) InvalidateRole(_ context.Context, sessionID, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := compositeKey(sessionID, role, "")

	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}

	return nil
}

func (c *InMemory) Close() error { return nil }

func compositeKey(sessionID, role, key string) string {
	return sessionID + "\x00" + role + "\x00" + key
}
