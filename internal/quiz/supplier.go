// Package quiz streams vocabulary for an endless multiple-choice run. A Supplier pulls
// deduplicated random batches from a Catalog and prefetches the next batch before the
// loaded words run out; a Session walks the words, builds answer options and keeps score.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"voka/internal/models"
	"voka/internal/pkg/logger"
)

// MinCatalogSize is the smallest catalog that can produce a question with three distractors.
const MinCatalogSize = 4

const maxBatchRetries = 5

// ErrInsufficientCatalog is returned when the catalog holds fewer than MinCatalogSize words.
var ErrInsufficientCatalog = errors.New("quiz: not enough words in catalog")

// Catalog is the vocabulary source of one quiz run, usually one category.
type Catalog interface {
	Count(ctx context.Context) (int64, error)
	Fetch(ctx context.Context, offset, limit int) ([]models.Word, error)
}

// Config tunes batching and prefetch.
type Config struct {
	BatchSize         int
	PrefetchThreshold int
	FetchTimeout      time.Duration
}

// Supplier delivers words of a catalog, each at most once.
type Supplier struct {
	catalog Catalog
	cfg     Config
	log     *logger.Logger

	mu        sync.Mutex
	total     int64
	words     []models.Word
	seen      map[int64]struct{}
	inflight  chan struct{}
	exhausted bool
	lastErr   error
}

// NewSupplier creates a supplier over catalog.
func NewSupplier(catalog Catalog, cfg Config, log *logger.Logger) *Supplier {
	if cfg.BatchSize < MinCatalogSize {
		cfg.BatchSize = MinCatalogSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Supplier{
		catalog: catalog,
		cfg:     cfg,
		log:     log,
		total:   -1,
		seen:    make(map[int64]struct{}),
	}
}

// LoadInitialBatch fetches the first batch of a run and appends it to the delivered words.
func (s *Supplier) LoadInitialBatch(ctx context.Context, size int) ([]models.Word, error) {
	batch, err := s.fetchBatch(ctx, size)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.words = append(s.words, batch...)
	if len(batch) == 0 {
		s.exhausted = true
	}
	s.mu.Unlock()

	return batch, nil
}

// MaybePrefetch starts a background fetch of the next batch when at most PrefetchThreshold
// words are left after currentIndex. It reports whether a fetch was started; it never starts
// one while another is in flight.
func (s *Supplier) MaybePrefetch(currentIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted || s.inflight != nil {
		return false
	}
	if len(s.words)-currentIndex > s.cfg.PrefetchThreshold {
		return false
	}
	s.startFetchLocked()
	return true
}

// WaitMore blocks until a word exists at index. It joins the prefetch in flight or starts a
// fetch itself. It returns false once the catalog is exhausted.
func (s *Supplier) WaitMore(ctx context.Context, index int) (bool, error) {
	for {
		s.mu.Lock()
		if index < len(s.words) {
			s.mu.Unlock()
			return true, nil
		}
		if s.exhausted {
			s.mu.Unlock()
			return false, nil
		}
		done := s.startFetchLocked()
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return false, ctx.Err()
		}

		s.mu.Lock()
		have, err := index < len(s.words), s.lastErr
		s.mu.Unlock()
		if !have && err != nil {
			return false, err
		}
	}
}

// Words returns the delivered words in order. The slice must not be modified.
func (s *Supplier) Words() []models.Word {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words[:len(s.words):len(s.words)]
}

// Len returns the number of delivered words.
func (s *Supplier) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.words)
}

// fetching reports whether a prefetch is in flight.
func (s *Supplier) fetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

// Exhausted reports whether the catalog has no undelivered words left.
func (s *Supplier) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

func (s *Supplier) startFetchLocked() chan struct{} {
	if s.inflight != nil {
		return s.inflight
	}
	done := make(chan struct{})
	s.inflight = done

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		defer cancel()

		batch, err := s.fetchBatch(ctx, s.cfg.BatchSize)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.inflight = nil
		s.lastErr = err
		if err != nil {
			s.log.Sugar().Errorf("Failed to prefetch quiz words: %s", err)
			return
		}
		if len(batch) == 0 {
			s.exhausted = true
			return
		}
		s.words = append(s.words, batch...)
	}()

	return done
}

func (s *Supplier) ensureTotal(ctx context.Context) (int64, error) {
	s.mu.Lock()
	total := s.total
	s.mu.Unlock()
	if total >= 0 {
		return total, nil
	}

	total, err := s.catalog.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("quiz: count catalog: %w", err)
	}

	s.mu.Lock()
	s.total = total
	s.mu.Unlock()
	return total, nil
}

// fetchBatch collects up to size words not delivered before. Random windows are tried first;
// a sequential sweep runs only when they found nothing new, so an empty result means the
// catalog is used up.
func (s *Supplier) fetchBatch(ctx context.Context, size int) ([]models.Word, error) {
	total, err := s.ensureTotal(ctx)
	if err != nil {
		return nil, err
	}
	if total < MinCatalogSize {
		return nil, ErrInsufficientCatalog
	}

	picked := make(map[int64]struct{}, size)
	batch := make([]models.Word, 0, size)
	collect := func(words []models.Word) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, w := range words {
			if _, ok := s.seen[w.ID]; ok {
				continue
			}
			if _, ok := picked[w.ID]; ok {
				continue
			}
			picked[w.ID] = struct{}{}
			batch = append(batch, w)
		}
	}

	for attempt := 0; attempt < maxBatchRetries && len(batch) < size; attempt++ {
		offset := 0
		if int(total) > size {
			offset = rand.IntN(int(total) - size + 1)
		}
		words, err := s.catalog.Fetch(ctx, offset, size)
		if err != nil {
			return nil, fmt.Errorf("quiz: fetch words: %w", err)
		}
		collect(words)
	}

	for offset := 0; len(batch) == 0 && offset < int(total); offset += size {
		words, err := s.catalog.Fetch(ctx, offset, size)
		if err != nil {
			return nil, fmt.Errorf("quiz: fetch words: %w", err)
		}
		collect(words)
	}

	rand.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
	if len(batch) > size {
		batch = batch[:size]
	}

	s.mu.Lock()
	for _, w := range batch {
		s.seen[w.ID] = struct{}{}
	}
	s.mu.Unlock()

	return batch, nil
}
