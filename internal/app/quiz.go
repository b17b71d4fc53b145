package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"voka/internal/models"
	"voka/internal/pkg/auth"
	"voka/internal/quiz"
	"voka/internal/storage"
)

// categoryCatalog serves one category of the word table to a quiz supplier.
type categoryCatalog struct {
	db       storage.Storage
	category string
}

func (c categoryCatalog) Count(ctx context.Context) (int64, error) {
	return c.db.CountWords(ctx, c.category)
}

func (c categoryCatalog) Fetch(ctx context.Context, offset, limit int) ([]models.Word, error) {
	return c.db.FetchWords(ctx, c.category, offset, limit)
}

type run struct {
	session  *quiz.Session
	finished bool
}

// sessionStore holds the live quiz sessions of this process. Idle sessions expire after ttl.
type sessionStore struct {
	ttl time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, runs: make(map[string]*run)}
}

func (s *sessionStore) put(session *quiz.Session) {
	s.mu.Lock()
	s.runs[session.ID()] = &run{session: session}
	s.mu.Unlock()
}

func (s *sessionStore) get(id string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}

// markFinished reports whether the run was still open.
func (s *sessionStore) markFinished(r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.finished {
		return false
	}
	r.finished = true
	return true
}

func (s *sessionStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.runs {
		if now.Sub(r.session.LastActive()) > s.ttl {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// StartQuiz opens a quiz run. Picking the spirit animal spends one heart or credit, but only
// once the first batch of words is loaded; a run that fails to start costs nothing.
func (app *App) StartQuiz(ctx context.Context, claims *auth.Claims, req models.StartQuizRequest) (*models.Question, error) {
	if err := app.validateRequest(req); err != nil {
		return nil, err
	}
	app.expireIdle(time.Now())

	l := app.resource(ctx, claims)
	reservation, ok := l.Attempt(ctx)
	if !ok {
		return nil, ErrOutOfResource
	}

	supplier := quiz.NewSupplier(categoryCatalog{db: app.db, category: req.Category}, app.cfg.Quiz, app.log)
	session := quiz.NewSession(uuid.NewString(), claims.ProfileID, req.Category, supplier, app.cfg.Quiz.BatchSize)
	if err := session.Start(ctx); err != nil {
		reservation.Release()
		return nil, err
	}
	reservation.Commit(ctx)

	app.sessions.put(session)
	app.log.Sugar().Infof("Profile %d started quiz %s in %s with %s", claims.ProfileID, session.ID(), req.Category, req.SpiritAnimal)

	return app.Question(ctx, claims, session.ID())
}

// Question returns the current question of a quiz run.
func (app *App) Question(ctx context.Context, claims *auth.Claims, sessionID string) (*models.Question, error) {
	r, err := app.lookupRun(claims, sessionID)
	if err != nil {
		return nil, err
	}

	q, err := r.session.Question(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		app.finishRun(ctx, r)
		return nil, err
	}
	if quiz.State(q.State).Terminal() {
		app.finishRun(ctx, r)
	}
	return q, nil
}

// Answer submits the player's pick for the current question. The first wrong answer ends the
// run and its score is submitted.
func (app *App) Answer(ctx context.Context, claims *auth.Claims, sessionID string, req models.AnswerRequest) (*models.AnswerResponse, error) {
	if err := app.validateRequest(req); err != nil {
		return nil, err
	}
	r, err := app.lookupRun(claims, sessionID)
	if err != nil {
		return nil, err
	}

	res, err := r.session.Answer(ctx, req.Selected)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			app.finishRun(ctx, r)
		}
		return nil, err
	}
	if quiz.State(res.State).Terminal() {
		app.finishRun(ctx, r)
	}
	return res, nil
}

// expireIdle drops quiz sessions and cached ledgers nobody touched for a session lifetime.
func (app *App) expireIdle(now time.Time) {
	if removed := app.sessions.sweep(now); removed > 0 {
		app.log.Sugar().Infof("Expired %d idle quiz sessions", removed)
	}
	hearts := app.hearts.Sweep(now, app.cfg.SessionTTL)
	credits := app.credits.Sweep(now, app.cfg.SessionTTL)
	if hearts+credits > 0 {
		app.log.Sugar().Infof("Evicted %d hearts and %d credits ledgers", hearts, credits)
	}
}

func (app *App) lookupRun(claims *auth.Claims, sessionID string) (*run, error) {
	r, ok := app.sessions.get(sessionID)
	if !ok || r.session.ProfileID() != claims.ProfileID {
		return nil, ErrNotFound
	}
	return r, nil
}

// finishRun submits the score of a run that ended, once.
func (app *App) finishRun(ctx context.Context, r *run) {
	if !app.sessions.markFinished(r) {
		return
	}
	session := r.session
	app.recordScore(ctx, models.Score{
		ProfileID: session.ProfileID(),
		Score:     session.Score(),
		Category:  session.Category(),
	})
}
