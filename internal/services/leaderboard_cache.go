// Package services – LeaderboardCache
//
// LeaderboardCache keeps the most recent top-N snapshot in memory so that
// leaderboard reads and stream subscribers do not hit the store. It is
// refreshed by the poll job and by change-feed events; whichever refresh
// completes last wins.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/fallfest-referrals/internal/domain"
)

// TopReferrersSource is the aggregation the cache snapshots.
type TopReferrersSource interface {
	TopReferrers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// SnapshotPublisher fans out refreshed snapshots.
type SnapshotPublisher interface {
	Publish(s domain.LeaderboardSnapshot) int
}

// LeaderboardCache holds the latest snapshot.
type LeaderboardCache struct {
	Source    TopReferrersSource
	Size      int
	Snapshots SnapshotPublisher // optional

	mu    sync.RWMutex
	snap  domain.LeaderboardSnapshot
	ready bool

	now func() time.Time
}

// NewLeaderboardCache returns an empty cache of size entries.
func NewLeaderboardCache(src TopReferrersSource, size int, pub SnapshotPublisher) *LeaderboardCache {
	if size <= 0 {
		size = 10
	}
	return &LeaderboardCache{
		Source:    src,
		Size:      size,
		Snapshots: pub,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Refresh recomputes the snapshot, stores it and publishes it. On error the
// previous snapshot is kept.
func (c *LeaderboardCache) Refresh(ctx context.Context, reason string) (domain.LeaderboardSnapshot, error) {
	entries, err := c.Source.TopReferrers(ctx, c.Size)
	if err != nil {
		leaderboardRefreshes.WithLabelValues(reason, "error").Inc()
		return domain.LeaderboardSnapshot{}, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	at := time.Now().UTC()
	if c.now != nil {
		at = c.now()
	}
	snap := domain.LeaderboardSnapshot{Entries: entries, RefreshedAt: at, Reason: reason}

	c.mu.Lock()
	c.snap = snap
	c.ready = true
	c.mu.Unlock()

	leaderboardRefreshes.WithLabelValues(reason, "ok").Inc()
	if c.Snapshots != nil {
		c.Snapshots.Publish(snap)
	}
	return snap, nil
}

// Snapshot returns the latest snapshot and whether one exists.
func (c *LeaderboardCache) Snapshot() (domain.LeaderboardSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.ready
}

// Top serves limit entries from the snapshot when it can. It reports false
// when the snapshot is missing or shorter than limit requires.
func (c *LeaderboardCache) Top(limit int) ([]domain.LeaderboardEntry, bool) {
	snap, ok := c.Snapshot()
	if !ok || limit <= 0 || limit > c.Size {
		return nil, false
	}
	entries := snap.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	return out, true
}
