// Package local keeps a single-user board in a snapshot store. The snapshot
// is read once at start and the whole board is written back after every
// change.
package local

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/metrics"
	"github.com/nick-dorsch/swimlane/internal/notify"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides the time used to stamp the seed board.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

type Session struct {
	store    SnapshotStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	watchers *notify.Broker

	mu      sync.Mutex
	state   board.State
	started bool
	loaded  bool
}

func NewSession(store SnapshotStore, opts ...Option) *Session {
	s := &Session{
		store:    store,
		logger:   zap.NewNop(),
		now:      time.Now,
		watchers: notify.NewBroker(),
		state:    board.Empty(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the snapshot once. A missing or unreadable snapshot yields the
// seed board; Start itself never fails. Operations issued before the load
// completes are ignored so they cannot overwrite the stored snapshot.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	state := s.load(ctx)

	s.mu.Lock()
	s.state = state
	s.loaded = true
	s.mu.Unlock()
	s.changed()
}

func (s *Session) load(ctx context.Context) board.State {
	data, err := s.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("no snapshot, using seed board")
		return board.Seed(s.now().UTC())
	}
	if err != nil {
		s.logger.Warn("failed to load snapshot, using seed board", zap.Error(err))
		return board.Seed(s.now().UTC())
	}

	state, err := board.DecodeSnapshot(data)
	if err != nil {
		s.logger.Warn("discarding malformed snapshot", zap.Error(err))
		return board.Seed(s.now().UTC())
	}
	return state
}

func (s *Session) State() board.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) Watch() (<-chan struct{}, func()) {
	return s.watchers.Subscribe(context.Background())
}

func (s *Session) Add(stage models.Stage, title string) (models.Task, bool) {
	var task models.Task
	changed := s.update(func(st board.State) (board.State, bool) {
		next, t, ok := st.Add(stage, title)
		task = t
		return next, ok
	})
	return task, changed
}

func (s *Session) Remove(stage models.Stage, id string) {
	s.update(func(st board.State) (board.State, bool) {
		return st.Remove(stage, id), st.Contains(stage, id)
	})
}

func (s *Session) Move(from, to models.Stage, id string) {
	s.update(func(st board.State) (board.State, bool) {
		return st.Move(from, to, id), st.Contains(from, id) && to.Valid()
	})
}

func (s *Session) MoveTo(from, to models.Stage, id string, index int) {
	s.update(func(st board.State) (board.State, bool) {
		return st.MoveTo(from, to, id, index), st.Contains(from, id) && to.Valid()
	})
}

// Reset drops the stored snapshot and returns to the seed board.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		return nil
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear snapshot", zap.Error(err))
	}

	s.mu.Lock()
	s.state = board.Seed(s.now().UTC())
	s.save(ctx)
	s.mu.Unlock()

	s.changed()
	return nil
}

// update applies fn and, when it changed the board, persists the result
// while holding the lock so saves happen in the same order as changes.
func (s *Session) update(fn func(board.State) (board.State, bool)) bool {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return false
	}
	next, changed := fn(s.state)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.save(context.Background())
	s.mu.Unlock()

	s.changed()
	return true
}

// save must be called with mu held. Failures are logged and swallowed.
func (s *Session) save(ctx context.Context) {
	data, err := board.EncodeSnapshot(s.state)
	if err == nil {
		err = s.store.Save(ctx, data)
	}
	s.metrics.SnapshotSave(err)
	if err != nil {
		s.logger.Warn("failed to save snapshot", zap.Error(err))
	}
}

func (s *Session) changed() {
	_ = s.watchers.Publish(context.Background())
}
