// Package rebuild keeps the vocabulary index in step with the directory.
// A Coordinator rebuilds the engine's index and then drops cached results;
// directory-changed notifications from Kafka are funnelled through it.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SojoC/PPAM-WEB-APP/internal/analytics"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/vocabulary"
	"github.com/SojoC/PPAM-WEB-APP/pkg/kafka"
)

// DirectoryChanged is published whenever persons, units or sub-areas are
// created, edited or removed.
type DirectoryChanged struct {
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

// Indexer is the part of the engine the coordinator drives.
type Indexer interface {
	Rebuild(ctx context.Context) (vocabulary.Stats, error)
	LastRebuild() time.Time
}

// Invalidator drops cached search results after the index changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Coordinator serializes index rebuilds and invalidates the cache after
// each successful one.
type Coordinator struct {
	indexer Indexer
	cache   Invalidator
	tracker analytics.Tracker
	logger  *slog.Logger

	mu sync.Mutex
}

// NewCoordinator wires indexer to cache. cache and tracker may be nil.
func NewCoordinator(indexer Indexer, cache Invalidator, tracker analytics.Tracker) *Coordinator {
	return &Coordinator{
		indexer: indexer,
		cache:   cache,
		tracker: tracker,
		logger:  slog.Default().With("component", "rebuild-coordinator"),
	}
}

// Rebuild installs a fresh index and invalidates the query cache. A failed
// invalidation is logged; stale entries then age out with the cache TTL.
func (c *Coordinator) Rebuild(ctx context.Context, reason string) (vocabulary.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildLocked(ctx, reason)
}

func (c *Coordinator) rebuildLocked(ctx context.Context, reason string) (vocabulary.Stats, error) {
	start := time.Now()
	stats, err := c.indexer.Rebuild(ctx)
	c.track(reason, stats, err == nil, start)
	if err != nil {
		return vocabulary.Stats{}, fmt.Errorf("rebuild (%s): %w", reason, err)
	}
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx); err != nil {
			c.logger.Warn("cache invalidation after rebuild failed", "reason", reason, "error", err)
		}
	}
	c.logger.Info("index rebuilt", "reason", reason, "words", stats.Words)
	return stats, nil
}

// RebuildIfStale rebuilds unless a rebuild started at or after changedAt
// already covers the change. It reports whether a rebuild ran.
func (c *Coordinator) RebuildIfStale(ctx context.Context, reason string, changedAt time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last := c.indexer.LastRebuild(); !changedAt.IsZero() && !last.IsZero() && !changedAt.After(last) {
		c.logger.Debug("change already covered", "reason", reason, "changed_at", changedAt, "last_rebuild", last)
		return false, nil
	}
	if _, err := c.rebuildLocked(ctx, reason); err != nil {
		return false, err
	}
	return true, nil
}

// HandleMessage returns a Kafka handler for directory-changed events.
// Undecodable events are acknowledged; failed rebuilds are returned so the
// message is retried.
func (c *Coordinator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[DirectoryChanged](msg.Value)
		if err != nil {
			c.logger.Error("failed to decode directory change", "error", err, "key", string(msg.Key))
			return nil
		}
		changedAt := event.ChangedAt
		if changedAt.IsZero() {
			changedAt = msg.Time
		}
		reason := event.Reason
		if reason == "" {
			reason = "directory-changed"
		}
		_, err = c.RebuildIfStale(ctx, reason, changedAt)
		return err
	}
}

func (c *Coordinator) track(reason string, stats vocabulary.Stats, ok bool, start time.Time) {
	if c.tracker == nil {
		return
	}
	c.tracker.Track(analytics.RebuildEvent{
		Type:      analytics.EventRebuild,
		Reason:    reason,
		Success:   ok,
		Words:     stats.Words,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: start.UTC(),
	})
}

// Notify publishes a directory-changed event.
func Notify(ctx context.Context, pub kafka.Publisher, reason string) error {
	return pub.Publish(ctx, kafka.Event{
		Key:   "directory",
		Value: DirectoryChanged{Reason: reason, ChangedAt: time.Now().UTC()},
	})
}
