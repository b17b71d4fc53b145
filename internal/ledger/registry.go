package ledger

import (
	"context"
	"sync"
	"time"

	"voka/internal/pkg/logger"
)

type entry struct {
	ledger   *Ledger
	lastUsed time.Time
}

// Registry owns the ledgers of one Store, creating and initializing them on first use.
type Registry struct {
	store Store
	def   int
	log   *logger.Logger

	mu      sync.Mutex
	ledgers map[string]*entry
	watch   func(key string, value int)
}

// NewRegistry creates a registry whose ledgers start at def.
func NewRegistry(store Store, def int, log *logger.Logger) *Registry {
	return &Registry{store: store, def: def, log: log, ledgers: make(map[string]*entry)}
}

// Watch installs fn as change listener of every ledger the registry creates from now on.
func (r *Registry) Watch(fn func(key string, value int)) {
	r.mu.Lock()
	r.watch = fn
	r.mu.Unlock()
}

// Get returns the initialized ledger of key.
func (r *Registry) Get(ctx context.Context, key string) *Ledger {
	r.mu.Lock()
	e, ok := r.ledgers[key]
	if !ok {
		l := New(r.store, key, r.def, r.log)
		if watch := r.watch; watch != nil {
			l.OnChange(func(value int) { watch(key, value) })
		}
		e = &entry{ledger: l}
		r.ledgers[key] = e
	}
	e.lastUsed = time.Now()
	l := e.ledger
	r.mu.Unlock()

	l.Initialize(ctx)
	return l
}

// Reload refreshes a cached ledger after its row was changed behind the registry's back.
func (r *Registry) Reload(ctx context.Context, key string) {
	r.mu.Lock()
	e, ok := r.ledgers[key]
	r.mu.Unlock()
	if ok {
		e.ledger.Reload(ctx)
	}
}

// Sweep drops the ledgers not used since now-idle and returns how many were dropped.
// Ledgers holding reservations are kept. A dropped ledger is loaded again from the store on
// its next Get.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.ledgers {
		if now.Sub(e.lastUsed) <= idle || e.ledger.holdsReservations() {
			continue
		}
		delete(r.ledgers, key)
		removed++
	}
	return removed
}
