// Package cache holds a small per-process TTL cache of user documents,
// fronting the store on read paths. Writers must invalidate their user's
// entry; staleness is otherwise bounded by the TTL.
package cache

import (
	"sync"
	"time"

	"github.com/rohanmainali/sharelytics/internal/domain/user"
)

type Users struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	u   user.User
	exp time.Time
}

func New(ttl time.Duration) *Users {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Users{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (c *Users) Get(userID string) (user.User, bool) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[userID]
	c.mu.RUnlock()
	if !ok {
		return user.User{}, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, userID)
		c.mu.Unlock()
		return user.User{}, false
	}

	return e.u, true
}

func (c *Users) Set(userID string, u user.User) {
	c.mu.Lock()
	c.m[userID] = entry{u: u, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the cached document after any mutation for that user.
func (c *Users) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.m, userID)
	c.mu.Unlock()
}

func (c *Users) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
