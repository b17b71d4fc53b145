// Package scores throttles score posting per profile. The first score of a burst is posted
// at once and opens a window; scores submitted while the window is open are collapsed into
// their maximum, which is posted when the window expires.
package scores

import (
	"context"
	"errors"
	"sync"
	"time"

	"voka/internal/models"
	"voka/internal/pkg/logger"
)

// DefaultWindow is the length of a throttling window.
const DefaultWindow = 60 * time.Second

const flushTimeout = 10 * time.Second

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("scores: channel closed")

// Poster writes a score record to the backing store.
type Poster interface {
	Post(ctx context.Context, score models.Score) error
}

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock is the time source of a Channel.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type window struct {
	start    time.Time
	buffered *models.Score
	timer    Timer
}

// Channel is the per-profile throttle in front of a Poster.
type Channel struct {
	poster Poster
	clock  Clock
	length time.Duration
	log    *logger.Logger

	mu      sync.Mutex
	windows map[int64]*window
	closed  bool
}

// NewChannel creates a channel posting through poster with windows of the given length.
func NewChannel(poster Poster, clock Clock, length time.Duration, log *logger.Logger) *Channel {
	if clock == nil {
		clock = SystemClock
	}
	if length <= 0 {
		length = DefaultWindow
	}
	return &Channel{
		poster:  poster,
		clock:   clock,
		length:  length,
		log:     log,
		windows: make(map[int64]*window),
	}
}

// Submit hands a finished run to the channel. It reports whether the score was posted right
// away; a buffered score is posted when the profile's window expires.
func (c *Channel) Submit(ctx context.Context, score models.Score) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}

	if w, ok := c.windows[score.ProfileID]; ok {
		if w.buffered == nil || score.Score > w.buffered.Score {
			buffered := score
			w.buffered = &buffered
		}
		c.mu.Unlock()
		return false, nil
	}

	w := &window{start: c.clock.Now()}
	w.timer = c.clock.AfterFunc(c.length, func() { c.flush(score.ProfileID, w) })
	c.windows[score.ProfileID] = w
	c.mu.Unlock()

	c.post(ctx, score)
	return true, nil
}

// pending returns the buffered score of a profile, if any.
func (c *Channel) pending(profileID int64) (models.Score, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[profileID]
	if !ok || w.buffered == nil {
		return models.Score{}, false
	}
	return *w.buffered, true
}

// Close stops every window timer and posts the scores still buffered.
// Submit fails with ErrClosed afterwards.
func (c *Channel) Close(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	pending := make([]models.Score, 0, len(c.windows))
	for id, w := range c.windows {
		w.timer.Stop()
		if w.buffered != nil {
			pending = append(pending, *w.buffered)
		}
		delete(c.windows, id)
	}
	c.mu.Unlock()

	for _, score := range pending {
		c.post(ctx, score)
	}
}

func (c *Channel) flush(profileID int64, w *window) {
	c.mu.Lock()
	if current, ok := c.windows[profileID]; !ok || current != w {
		c.mu.Unlock()
		return
	}
	if w.buffered == nil {
		delete(c.windows, profileID)
		c.mu.Unlock()
		return
	}

	score := *w.buffered
	w.buffered = nil
	w.start = c.clock.Now()
	w.timer = c.clock.AfterFunc(c.length, func() { c.flush(profileID, w) })
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	c.post(ctx, score)
}

func (c *Channel) post(ctx context.Context, score models.Score) {
	if score.CreatedAt.IsZero() {
		score.CreatedAt = c.clock.Now()
	}
	if err := c.poster.Post(ctx, score); err != nil {
		c.log.Sugar().Errorf("Failed to post score %d of profile %d: %s", score.Score, score.ProfileID, err)
	}
}
