package quiz

import (
	"context"
	"errors"
	"sync"
	"time"

	"voka/internal/models"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateExhausted State = "exhausted"
	StateGameOver  State = "game_over"
	StateError     State = "error"
)

// Terminal reports whether no further questions will be served.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateGameOver || s == StateError
}

// ErrSessionOver is returned when answering in a terminal session.
var ErrSessionOver = errors.New("quiz: session is over")

// Session is one quiz run. Every correct answer adds a point and moves to the next word;
// the first wrong answer ends the run.
type Session struct {
	id        string
	profileID int64
	category  string
	supplier  *Supplier
	batchSize int

	mu         sync.Mutex
	state      State
	cursor     int
	score      int
	options    map[int][]string
	err        error
	lastActive time.Time
}

// NewSession creates a session in the loading state.
func NewSession(id string, profileID int64, category string, supplier *Supplier, batchSize int) *Session {
	return &Session{
		id:         id,
		profileID:  profileID,
		category:   category,
		supplier:   supplier,
		batchSize:  batchSize,
		state:      StateLoading,
		options:    make(map[int][]string),
		lastActive: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ProfileID returns the player the session belongs to.
func (s *Session) ProfileID() int64 { return s.profileID }

// Category returns the category the words are drawn from.
func (s *Session) Category() string { return s.category }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Score returns the number of correct answers so far.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Err returns the failure that moved the session to StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Start loads the first batch.
func (s *Session) Start(ctx context.Context) error {
	_, err := s.supplier.LoadInitialBatch(ctx, s.batchSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	if err != nil {
		s.state = StateError
		s.err = err
		return err
	}
	s.state = StateReady
	return nil
}

// Question returns the current question, waiting for more words when the loaded ones are
// used up. Options are fixed per question once built.
func (s *Session) Question(ctx context.Context) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if s.state != StateReady {
		return s.snapshotLocked(), nil
	}

	ok, err := s.supplier.WaitMore(ctx, s.cursor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.state = StateError
		s.err = err
		return nil, err
	}
	if !ok {
		s.state = StateExhausted
		return s.snapshotLocked(), nil
	}

	words := s.supplier.Words()
	word := words[s.cursor]
	options, cached := s.options[s.cursor]
	if !cached {
		options = BuildOptions(words, word)
		s.options[s.cursor] = options
	}
	s.supplier.MaybePrefetch(s.cursor)

	return &models.Question{
		SessionID: s.id,
		Index:     s.cursor,
		WordID:    word.ID,
		Term:      word.Term,
		Options:   options,
		Score:     s.score,
		State:     string(s.state),
	}, nil
}

// Answer checks selected against the current word.
func (s *Session) Answer(ctx context.Context, selected string) (*models.AnswerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if s.state != StateReady {
		return nil, ErrSessionOver
	}

	ok, err := s.supplier.WaitMore(ctx, s.cursor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.state = StateError
		s.err = err
		return nil, err
	}
	if !ok {
		s.state = StateExhausted
		return nil, ErrSessionOver
	}

	word := s.supplier.Words()[s.cursor]
	if selected != word.Meaning {
		s.state = StateGameOver
		return &models.AnswerResponse{
			Correct:       false,
			CorrectAnswer: word.Meaning,
			Score:         s.score,
			State:         string(s.state),
		}, nil
	}

	delete(s.options, s.cursor)
	s.score++
	s.cursor++
	if s.cursor >= s.supplier.Len() && s.supplier.Exhausted() {
		s.state = StateExhausted
	} else {
		s.supplier.MaybePrefetch(s.cursor)
	}

	return &models.AnswerResponse{
		Correct:       true,
		CorrectAnswer: word.Meaning,
		Score:         s.score,
		State:         string(s.state),
	}, nil
}

func (s *Session) snapshotLocked() *models.Question {
	return &models.Question{
		SessionID: s.id,
		Index:     s.cursor,
		Score:     s.score,
		State:     string(s.state),
	}
}
