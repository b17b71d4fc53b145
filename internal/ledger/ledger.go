// Package ledger implements the consumable resource counter that gates play: hearts for
// anonymous devices and credits for signed-in profiles. A Ledger keeps the counter in memory,
// writes every mutation through to a Store, and hands out reservations so that passing the
// gate and spending the resource happen as one check-and-reserve step.
package ledger

import (
	"context"
	"sync"

	"voka/internal/pkg/logger"
)

// Store persists counters. Add must apply delta atomically and never go below zero.
type Store interface {
	Load(ctx context.Context, key string) (value int, found bool, err error)
	Save(ctx context.Context, key string, value int) error
	Add(ctx context.Context, key string, delta int) (int, error)
}

// Ledger is one counter identified by key.
type Ledger struct {
	store Store
	key   string
	def   int
	log   *logger.Logger

	mu            sync.Mutex
	initialized   bool
	value         int
	reserved      int
	outOfResource bool
	listeners     map[int]func(int)
	nextListener  int
}

// New creates a ledger for key. def is the value used when nothing is persisted yet.
func New(store Store, key string, def int, log *logger.Logger) *Ledger {
	return &Ledger{
		store:     store,
		key:       key,
		def:       def,
		log:       log,
		value:     def,
		listeners: make(map[int]func(int)),
	}
}

func (l *Ledger) holdsReservations() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved > 0
}

// Initialize loads the persisted counter, seeding the default when none exists.
// Once a load succeeds later calls do nothing. A failed load leaves the default in place and
// is retried by the next call.
func (l *Ledger) Initialize(ctx context.Context) {
	l.mu.Lock()
	if l.initialized {
		l.mu.Unlock()
		return
	}

	value, found, err := l.store.Load(ctx, l.key)
	if err != nil {
		l.mu.Unlock()
		l.log.Sugar().Errorf("Failed to load ledger %s, using default %d: %s", l.key, l.def, err)
		return
	}
	l.initialized = true

	switch {
	case !found:
		l.value = l.def
		if err := l.store.Save(ctx, l.key, l.def); err != nil {
			l.log.Sugar().Errorf("Failed to persist default of ledger %s: %s", l.key, err)
		}
	default:
		l.value = max(0, value)
	}
	current := l.value
	l.mu.Unlock()

	l.notify(current)
}

// Get returns the current counter.
func (l *Ledger) Get() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// CanPlay reports whether at least one unit is available.
func (l *Ledger) CanPlay() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value-l.reserved > 0
}

// OutOfResource reports whether the last attempt hit an empty counter.
func (l *Ledger) OutOfResource() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outOfResource
}

// DismissOutOfResource clears the out-of-resource flag.
func (l *Ledger) DismissOutOfResource() {
	l.mu.Lock()
	l.outOfResource = false
	l.mu.Unlock()
}

// Attempt reserves one unit. It returns false and raises the out-of-resource flag
// when nothing is available.
func (l *Ledger) Attempt(ctx context.Context) (*Reservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.value-l.reserved <= 0 {
		l.outOfResource = true
		return nil, false
	}
	l.reserved++
	l.outOfResource = false
	return &Reservation{ledger: l}, true
}

// Consume spends one unit without a prior reservation.
func (l *Ledger) Consume(ctx context.Context) {
	l.apply(ctx, -1)
}

// Refill adds n units.
func (l *Ledger) Refill(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	l.apply(ctx, n)
}

// Reset puts the counter back to its default.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	l.value = l.def
	l.outOfResource = false
	if err := l.store.Save(ctx, l.key, l.def); err != nil {
		l.log.Sugar().Errorf("Failed to persist reset of ledger %s: %s", l.key, err)
	}
	current := l.value
	l.mu.Unlock()

	l.notify(current)
}

// Reload replaces the in-memory counter with the persisted one.
func (l *Ledger) Reload(ctx context.Context) {
	l.mu.Lock()
	value, found, err := l.store.Load(ctx, l.key)
	if err != nil {
		l.mu.Unlock()
		l.log.Sugar().Errorf("Failed to reload ledger %s: %s", l.key, err)
		return
	}
	if found {
		l.value = max(0, value)
	}
	current := l.value
	l.mu.Unlock()

	l.notify(current)
}

// OnChange registers fn to be called with the new counter after every mutation.
// The returned function unregisters it.
func (l *Ledger) OnChange(fn func(value int)) (cancel func()) {
	l.mu.Lock()
	id := l.nextListener
	l.nextListener++
	l.listeners[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *Ledger) apply(ctx context.Context, delta int) {
	l.mu.Lock()
	l.applyLocked(ctx, delta)
	current := l.value
	l.mu.Unlock()

	l.notify(current)
}

func (l *Ledger) applyLocked(ctx context.Context, delta int) {
	next := max(0, l.value+delta)
	stored, err := l.store.Add(ctx, l.key, delta)
	if err != nil {
		l.log.Sugar().Errorf("Failed to persist ledger %s: %s", l.key, err)
	} else {
		next = stored
	}
	l.value = next
	if l.value > 0 {
		l.outOfResource = false
	}
}

func (l *Ledger) notify(value int) {
	l.mu.Lock()
	fns := make([]func(int), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Reservation is one unit held between the gate check and the actual spend.
type Reservation struct {
	ledger *Ledger
	done   bool
}

// Commit spends the reserved unit. Calls after the first Commit or Release are no-ops.
func (r *Reservation) Commit(ctx context.Context) {
	l := r.ledger
	l.mu.Lock()
	if r.done {
		l.mu.Unlock()
		return
	}
	r.done = true
	l.reserved--
	l.applyLocked(ctx, -1)
	current := l.value
	l.mu.Unlock()

	l.notify(current)
}

// Release gives the reserved unit back.
func (r *Reservation) Release() {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	l.reserved--
}
