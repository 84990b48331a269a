package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/model"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(ttl time.Duration, maxEntries int) (*ResultCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewResultCache(nil, ttl, zap.NewNop())
	c.now = clock.now
	c.maxEntries = maxEntries
	return c, clock
}

func TestResultCache_ExpiresEntries(t *testing.T) {
	c, clock := newTestCache(time.Hour, 10)
	ctx := context.Background()

	c.Put(ctx, &model.EvaluationResult{ID: "e1"})
	got, ok := c.Get(ctx, "e1")
	require.True(t, ok)
	assert.Equal(t, "e1", got.ID)

	clock.advance(time.Hour)
	_, ok = c.Get(ctx, "e1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResultCache_BoundsSize(t *testing.T) {
	c, clock := newTestCache(time.Hour, 2)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		c.Put(ctx, &model.EvaluationResult{ID: id})
		clock.advance(time.Second)
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "e1")
	assert.False(t, ok)
	for _, id := range []string{"e2", "e3"} {
		_, ok := c.Get(ctx, id)
		assert.True(t, ok, id)
	}
}

func TestResultCache_PrefersExpiredOverOldest(t *testing.T) {
	c, clock := newTestCache(time.Minute, 2)
	ctx := context.Background()

	c.Put(ctx, &model.EvaluationResult{ID: "old"})
	clock.advance(30 * time.Second)
	c.Put(ctx, &model.EvaluationResult{ID: "mid"})
	clock.advance(40 * time.Second)
	c.Put(ctx, &model.EvaluationResult{ID: "new"})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "mid")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "new")
	assert.True(t, ok)
}

func TestService_GetAfterEvictionReadsRepository(t *testing.T) {
	f := newFixture(t, greetings()...)
	ctx := context.Background()
	f.svc.cache.maxEntries = 1

	first := &model.EvaluationResult{ID: "first", WorkspaceID: "ws", Timestamp: time.Now()}
	require.NoError(t, f.repo.Create(ctx, first))
	f.svc.cache.Put(ctx, first)
	f.svc.cache.Put(ctx, &model.EvaluationResult{ID: "second", WorkspaceID: "ws"})

	got, err := f.svc.Get(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)
}
