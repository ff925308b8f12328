package rebuild

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SojoC/PPAM-WEB-APP/internal/analytics"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/vocabulary"
	"github.com/SojoC/PPAM-WEB-APP/pkg/kafka"
)

type fakeIndexer struct {
	calls int
	last  time.Time
	err   error
}

func (f *fakeIndexer) Rebuild(context.Context) (vocabulary.Stats, error) {
	f.calls++
	if f.err != nil {
		return vocabulary.Stats{}, f.err
	}
	f.last = time.Now()
	return vocabulary.Stats{Words: 7}, nil
}

func (f *fakeIndexer) LastRebuild() time.Time { return f.last }

type fakeCache struct {
	invalidations int
	err           error
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.invalidations++
	return f.err
}

type recordingPublisher struct {
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...kafka.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestRebuildInvalidatesCache(t *testing.T) {
	ix, cache, agg := &fakeIndexer{}, &fakeCache{}, analytics.NewAggregator()
	c := NewCoordinator(ix, cache, agg)

	stats, err := c.Rebuild(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Words)
	assert.Equal(t, 1, cache.invalidations)
	assert.Equal(t, int64(1), agg.Stats().Rebuilds)
}

func TestRebuildFailureKeepsCache(t *testing.T) {
	ix, cache, agg := &fakeIndexer{err: errors.New("db down")}, &fakeCache{}, analytics.NewAggregator()
	c := NewCoordinator(ix, cache, agg)

	_, err := c.Rebuild(context.Background(), "api")
	assert.ErrorIs(t, err, ix.err)
	assert.Zero(t, cache.invalidations)
	assert.Equal(t, int64(1), agg.Stats().FailedRebuilds)
}

func TestInvalidationFailureIsNotFatal(t *testing.T) {
	c := NewCoordinator(&fakeIndexer{}, &fakeCache{err: errors.New("redis down")}, nil)
	_, err := c.Rebuild(context.Background(), "api")
	assert.NoError(t, err)
}

func TestRebuildIfStaleCoalesces(t *testing.T) {
	ix := &fakeIndexer{}
	c := NewCoordinator(ix, nil, nil)
	ctx := context.Background()

	before := time.Now()
	ran, err := c.RebuildIfStale(ctx, "first", before)
	require.NoError(t, err)
	assert.True(t, ran, "no rebuild has happened yet")

	ran, err = c.RebuildIfStale(ctx, "burst", before)
	require.NoError(t, err)
	assert.False(t, ran, "change predates the last rebuild")

	ran, err = c.RebuildIfStale(ctx, "later", ix.last.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = c.RebuildIfStale(ctx, "unknown time", time.Time{})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, ix.calls)
}

func TestHandleMessage(t *testing.T) {
	ix := &fakeIndexer{}
	c := NewCoordinator(ix, nil, nil)
	handle := c.HandleMessage()
	ctx := context.Background()

	require.NoError(t, handle(ctx, kafka.Message{Value: []byte(`garbage`)}))
	assert.Zero(t, ix.calls)

	value, _ := json.Marshal(DirectoryChanged{Reason: "import", ChangedAt: time.Now()})
	require.NoError(t, handle(ctx, kafka.Message{Value: value}))
	assert.Equal(t, 1, ix.calls)

	old, _ := json.Marshal(DirectoryChanged{})
	require.NoError(t, handle(ctx, kafka.Message{Value: old, Time: ix.last.Add(-time.Minute)}))
	assert.Equal(t, 1, ix.calls, "message time is used when changed_at is missing")

	ix.err = errors.New("db down")
	value, _ = json.Marshal(DirectoryChanged{ChangedAt: time.Now().Add(time.Hour)})
	assert.Error(t, handle(ctx, kafka.Message{Value: value}))
}

func TestNotify(t *testing.T) {
	pub := &recordingPublisher{}
	require.NoError(t, Notify(context.Background(), pub, "seed"))
	require.Len(t, pub.events, 1)
	ev := pub.events[0].Value.(DirectoryChanged)
	assert.Equal(t, "seed", ev.Reason)
	assert.False(t, ev.ChangedAt.IsZero())
}
