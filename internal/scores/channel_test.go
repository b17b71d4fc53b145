package scores

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"voka/internal/models"
	"voka/internal/pkg/logger"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}

func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type post struct {
	at    time.Time
	score models.Score
}

type recordingPoster struct {
	mu    sync.Mutex
	clock *fakeClock
	posts []post
	err   error
}

func (p *recordingPoster) Post(_ context.Context, score models.Score) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.posts = append(p.posts, post{at: p.clock.Now(), score: score})
	return nil
}

func (p *recordingPoster) values(profileID int64) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int
	for _, post := range p.posts {
		if post.score.ProfileID == profileID {
			out = append(out, post.score.Score)
		}
	}
	return out
}

func newTestChannel() (*Channel, *fakeClock, *recordingPoster) {
	clock := newFakeClock()
	poster := &recordingPoster{clock: clock}
	return NewChannel(poster, clock, DefaultWindow, logger.Nop()), clock, poster
}

func score(profileID int64, value int) models.Score {
	return models.Score{ProfileID: profileID, Score: value, Category: "animals"}
}

func TestSubmitBuffersWithinWindow(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()
	start := clock.Now()

	posted, err := ch.Submit(ctx, score(1, 10))
	require.NoError(t, err)
	assert.True(t, posted)
	assert.Equal(t, []int{10}, poster.values(1))

	clock.Advance(10 * time.Second)
	posted, err = ch.Submit(ctx, score(1, 15))
	require.NoError(t, err)
	assert.False(t, posted)

	clock.Advance(10 * time.Second)
	posted, err = ch.Submit(ctx, score(1, 12))
	require.NoError(t, err)
	assert.False(t, posted)

	pending, ok := ch.pending(1)
	require.True(t, ok)
	assert.Equal(t, 15, pending.Score)
	assert.Equal(t, 1, clock.active(), "one timer per window")

	clock.Advance(39 * time.Second)
	assert.Equal(t, []int{10}, poster.values(1))

	clock.Advance(time.Second)
	assert.Equal(t, []int{10, 15}, poster.values(1))
	assert.Equal(t, start.Add(60*time.Second), poster.posts[1].at)

	_, ok = ch.pending(1)
	assert.False(t, ok)
}

func TestFlushOpensNewWindow(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()

	_, _ = ch.Submit(ctx, score(1, 3))
	clock.Advance(30 * time.Second)
	_, _ = ch.Submit(ctx, score(1, 4))
	clock.Advance(30 * time.Second)
	assert.Equal(t, []int{3, 4}, poster.values(1))

	clock.Advance(20 * time.Second)
	posted, err := ch.Submit(ctx, score(1, 1))
	require.NoError(t, err)
	assert.False(t, posted, "the flush opened a window at t=60s")

	clock.Advance(40 * time.Second)
	assert.Equal(t, []int{3, 4, 1}, poster.values(1))

	clock.Advance(60 * time.Second)
	assert.Zero(t, clock.active(), "an empty window is forgotten")

	posted, err = ch.Submit(ctx, score(1, 2))
	require.NoError(t, err)
	assert.True(t, posted)
	assert.Equal(t, []int{3, 4, 1, 2}, poster.values(1))
}

func TestQuietWindowPostsNothing(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()

	_, _ = ch.Submit(ctx, score(1, 7))
	clock.Advance(5 * time.Minute)

	assert.Equal(t, []int{7}, poster.values(1))
	assert.Zero(t, clock.active())
}

func TestAtMostTwoPostsPerWindow(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()

	submitted := []int{5, 9, 2, 30, 11, 29, 30, 1}
	for _, v := range submitted {
		_, err := ch.Submit(ctx, score(1, v))
		require.NoError(t, err)
		clock.Advance(5 * time.Second)
	}
	clock.Advance(DefaultWindow)

	assert.Equal(t, []int{5, 30}, poster.values(1))
}

func TestProfilesAreIndependent(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()

	_, _ = ch.Submit(ctx, score(1, 10))
	clock.Advance(20 * time.Second)
	posted, _ := ch.Submit(ctx, score(2, 4))
	assert.True(t, posted)
	_, _ = ch.Submit(ctx, score(1, 11))
	_, _ = ch.Submit(ctx, score(2, 8))
	assert.Equal(t, 2, clock.active())

	clock.Advance(40 * time.Second)
	assert.Equal(t, []int{10, 11}, poster.values(1))
	assert.Equal(t, []int{4}, poster.values(2))

	clock.Advance(20 * time.Second)
	assert.Equal(t, []int{4, 8}, poster.values(2))
}

func TestConcurrentSubmitsOneImmediatePost(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, _ = ch.Submit(ctx, score(1, v))
		}(i)
	}
	wg.Wait()

	require.Len(t, poster.values(1), 1)
	assert.Equal(t, 1, clock.active())

	clock.Advance(DefaultWindow)
	values := poster.values(1)
	require.Len(t, values, 2)
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	assert.Equal(t, 50, sorted[1], "the maximum is eventually posted")
}

func TestPostFailureIsLoggedAndNotRetried(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	poster := &recordingPoster{clock: clock, err: errors.New("connection refused")}
	core, logs := observer.New(zap.ErrorLevel)
	ch := NewChannel(poster, clock, DefaultWindow, &logger.Logger{Logger: zap.New(core)})

	posted, err := ch.Submit(ctx, score(1, 10))
	require.NoError(t, err)
	assert.True(t, posted)
	_, _ = ch.Submit(ctx, score(1, 12))
	clock.Advance(DefaultWindow)
	clock.Advance(DefaultWindow)

	assert.Equal(t, 2, logs.Len())
	assert.Empty(t, poster.values(1))

	poster.mu.Lock()
	poster.err = nil
	poster.mu.Unlock()
	posted, err = ch.Submit(ctx, score(1, 1))
	require.NoError(t, err)
	assert.True(t, posted)
	assert.Equal(t, []int{1}, poster.values(1))
}

func TestCloseFlushesBuffered(t *testing.T) {
	ctx := context.Background()
	ch, clock, poster := newTestChannel()

	_, _ = ch.Submit(ctx, score(1, 1))
	_, _ = ch.Submit(ctx, score(1, 6))
	_, _ = ch.Submit(ctx, score(2, 2))

	ch.Close(ctx)
	assert.Equal(t, []int{1, 6}, poster.values(1))
	assert.Equal(t, []int{2}, poster.values(2))
	assert.Zero(t, clock.active())

	_, err := ch.Submit(ctx, score(1, 3))
	assert.ErrorIs(t, err, ErrClosed)

	clock.Advance(DefaultWindow)
	assert.Equal(t, []int{1, 6}, poster.values(1))
}
