// Package session caches the signed-in user's profile. Entries are loaded
// on first use, concurrent loads for the same user share one store call,
// and sign-out drops the entry.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/golf-intranet/internal/model"
)

// Loader fetches a user from the backing store.
type Loader func(ctx context.Context, userID uint64) (*model.User, error)

type entry struct {
	user    *model.User
	expires time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	load Loader
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[uint64]entry
	// gen is bumped by Invalidate so a load that started before the
	// invalidation does not repopulate the entry.
	gen map[uint64]uint64
}

// New returns a cache whose entries live for ttl. A zero ttl keeps
// entries until invalidated.
func New(load Loader, ttl time.Duration) *Cache {
	return &Cache{
		load:    load,
		ttl:     ttl,
		now:     time.Now,
		entries: map[uint64]entry{},
		gen:     map[uint64]uint64{},
	}
}

// Get returns the cached user, loading it when absent or expired. The
// returned value is a copy.
func (c *Cache) Get(ctx context.Context, userID uint64) (*model.User, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	gen := c.gen[userID]
	c.mu.RUnlock()
	if ok && (c.ttl == 0 || c.now().Before(e.expires)) {
		u := *e.user
		return &u, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(userID, 10), func() (interface{}, error) {
		u, err := c.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen[userID] == gen {
			c.entries[userID] = entry{user: u, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	u := *v.(*model.User)
	return &u, nil
}

// Invalidate drops the user's entry. Call it on sign-out and after
// editing the user.
func (c *Cache) Invalidate(userID uint64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.gen[userID]++
	c.mu.Unlock()
	c.group.Forget(strconv.FormatUint(userID, 10))
}

// Len reports the number of cached users.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
