// Package cache keeps local snapshots of remote lists and categories and
// decides when they are too old to trust.
package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"grocat/backend"
	"grocat/internal/utils"
)

// DefaultTTL is the staleness window of a snapshot.
const DefaultTTL = 10 * time.Minute

// Fetcher is the subset of backend.ListService the cache reads from.
type Fetcher interface {
	ListItems(ctx context.Context, listID string) (*backend.Snapshot, error)
	CategoryItems(ctx context.Context) (*backend.Snapshot, error)
}

// Cache returns snapshots from a Store, refreshing them from a Fetcher when stale.
type Cache struct {
	store   Store
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the staleness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source used to stamp and age snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache over store that refreshes from fetcher.
func New(store Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the staleness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the snapshot for key, fetching a fresh one when none is stored,
// when the stored one does not parse, has no refresh_date or is older than the TTL.
func (c *Cache) Get(ctx context.Context, key Key) (*backend.Snapshot, error) {
	snap, ok, err := c.store.Load(key)
	if errors.Is(err, ErrCorrupt) {
		utils.Warnf("%v, refreshing", err)
		return c.Refresh(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		utils.Debugf("no cached %s snapshot, fetching", key)
		return c.Refresh(ctx, key)
	}

	if snap.RefreshDate == nil {
		utils.Warnf("cached %s snapshot has no refresh_date, refreshing", key)
		return c.Refresh(ctx, key)
	}

	age := c.now().Sub(unixToTime(*snap.RefreshDate))
	utils.Debugf("%s list is %d minutes old", key.Kind, int(math.Round(age.Minutes())))
	if age > c.ttl {
		utils.Debugf("updating %s list as it is older than %s", key.Kind, c.ttl)
		return c.Refresh(ctx, key)
	}
	return snap, nil
}

// Refresh always fetches key from the remote service, stamps it and persists it.
func (c *Cache) Refresh(ctx context.Context, key Key) (*backend.Snapshot, error) {
	var (
		snap *backend.Snapshot
		err  error
	)
	switch key.Kind {
	case backend.KindGroceries:
		snap, err = c.fetcher.ListItems(ctx, key.ListID)
	case backend.KindCategories:
		snap, err = c.fetcher.CategoryItems(ctx)
	default:
		return nil, fmt.Errorf("unknown snapshot kind %q", key.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key.Kind, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("fetch %s returned no snapshot", key.Kind)
	}
	if snap.List.Items == nil {
		snap.List.Items = []backend.Item{}
	}

	c.Stamp(snap)
	if err := c.store.Save(key, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Put persists snap for key as is.
func (c *Cache) Put(key Key, snap *backend.Snapshot) error {
	return c.store.Save(key, snap)
}

// Invalidate drops the stored snapshot so the next Get fetches.
func (c *Cache) Invalidate(key Key) error {
	return c.store.Delete(key)
}

// Stamp sets the snapshot's refresh_date to now.
func (c *Cache) Stamp(snap *backend.Snapshot) {
	ts := timeToUnix(c.now())
	snap.RefreshDate = &ts
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func unixToTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}
