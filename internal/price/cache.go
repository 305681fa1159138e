// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package price

import (
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cached memoizes quotes of another Oracle per asset and calendar day.
// Its lifetime is that of the value; create one per run.
type Cached struct {
	next   Oracle
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps next. Entries never expire.
func NewCached(next Oracle) *Cached {
	return &Cached{
		next:  next,
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *Cached) Quote(asset string, at time.Time) Quote {
	key := strings.ToUpper(asset) + "|" + day(at).Format("2006-01-02")
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		q := v.(Quote)
		q.Date = at
		return q
	}
	c.misses.Add(1)
	q := c.next.Quote(asset, at)
	c.store.Set(key, q, gocache.NoExpiration)
	return q
}

// Stats returns the number of cache hits and misses so far.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Flush drops every memoized quote.
func (c *Cached) Flush() {
	c.store.Flush()
}
