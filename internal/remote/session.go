// Package remote keeps a board in sync with a shared task table. Local edits
// are applied optimistically and written in the background; any change
// notification from the table triggers a full reload that replaces the
// local board.
package remote

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

// Store is the tabular backend. *db.DB implements it.
type Store interface {
	FetchAll(ctx context.Context) ([]models.Record, error)
	CreateTask(ctx context.Context, r *models.Record) error
	UpdateTaskStatus(ctx context.Context, id string, status models.Stage) error
	DeleteTask(ctx context.Context, id string) error
	DeleteAllTasks(ctx context.Context) error
}

// Subscriber delivers a signal whenever any row of the table changes.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan struct{}, func())
}

const DefaultWriteTimeout = 10 * time.Second

var ErrAlreadyStarted = errors.New("session already started")

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

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type Session struct {
	store        Store
	sub          Subscriber
	logger       *zap.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	watchers     *notify.Broker

	mu          sync.Mutex
	state       board.State
	alive       bool
	started     bool
	base        context.Context
	fetchSeq    uint64
	appliedSeq  uint64
	unsubscribe func()
	listenDone  chan struct{}

	inflightMu sync.Mutex
	inflight   map[uint64]string
	queue      []pendingWrite
	draining   bool
	nextOp     uint64
	writes     sync.WaitGroup
}

type pendingWrite struct {
	id   uint64
	op   string
	base context.Context
	run  func(ctx context.Context) error
	done chan error
}

func NewSession(store Store, sub Subscriber, opts ...Option) *Session {
	s := &Session{
		store:        store,
		sub:          sub,
		logger:       zap.NewNop(),
		writeTimeout: DefaultWriteTimeout,
		watchers:     notify.NewBroker(),
		state:        board.Empty(),
		inflight:     make(map[uint64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the board, then subscribes to table changes. The subscription
// lives until Close or until ctx is done.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.alive = true
	s.base = context.WithoutCancel(ctx)
	s.mu.Unlock()

	if err := s.Refetch(ctx); err != nil {
		s.Close()
		return err
	}

	if s.sub == nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, unsubscribe := s.sub.Subscribe(subCtx)
	done := make(chan struct{})

	s.mu.Lock()
	s.unsubscribe = func() {
		cancel()
		unsubscribe()
	}
	s.listenDone = done
	s.mu.Unlock()

	go s.listen(subCtx, ch, done)
	return nil
}

func (s *Session) listen(ctx context.Context, ch <-chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			// Errors are logged inside Refetch; the next change retries.
			_ = s.Refetch(ctx)
		}
	}
}

// Close deactivates the session and tears down the subscription. Writes
// already in flight are left to finish; late refetch results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.alive = false
	unsubscribe := s.unsubscribe
	done := s.listenDone
	s.unsubscribe = nil
	s.listenDone = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if done != nil {
		<-done
	}
}

// Active reports whether the session still applies results.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Refetch reloads every row and replaces the board wholesale. A result that
// arrives after Close, or after a newer refetch was applied, is dropped.
func (s *Session) Refetch(ctx context.Context) error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return nil
	}
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	records, err := s.store.FetchAll(ctx)
	s.metrics.Refetch(err)
	if err != nil {
		s.logger.Warn("refetch failed", zap.Error(err))
		return err
	}

	next, skipped := board.FromRecords(records)
	for _, r := range skipped {
		s.logger.Warn("skipping task with unknown status", zap.String("id", r.ID), zap.String("status", string(r.Status)))
	}

	s.mu.Lock()
	if !s.alive || seq < s.appliedSeq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale refetch", zap.Uint64("seq", seq))
		return nil
	}
	s.appliedSeq = seq
	s.state = next
	s.mu.Unlock()

	s.changed()
	return nil
}

// State returns a copy of the current board.
func (s *Session) State() board.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) Watch() (<-chan struct{}, func()) {
	return s.watchers.Subscribe(context.Background())
}

func (s *Session) Add(stage models.Stage, title string) (models.Task, bool) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return models.Task{}, false
	}
	next, task, ok := s.state.Add(stage, title)
	if !ok {
		s.mu.Unlock()
		return models.Task{}, false
	}
	s.state = next
	s.enqueue("insert", func(ctx context.Context) error {
		r := models.NewRecord(task, stage)
		return s.store.CreateTask(ctx, &r)
	})
	s.mu.Unlock()

	s.changed()
	return task, true
}

func (s *Session) Remove(stage models.Stage, id string) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	next := s.state.Remove(stage, id)
	if len(next[stage]) == len(s.state[stage]) {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.enqueue("delete", func(ctx context.Context) error {
		return s.store.DeleteTask(ctx, id)
	})
	s.mu.Unlock()

	s.changed()
}

func (s *Session) Move(from, to models.Stage, id string) {
	s.move(from, to, id, func(st board.State) board.State { return st.Move(from, to, id) })
}

func (s *Session) MoveTo(from, to models.Stage, id string, index int) {
	s.move(from, to, id, func(st board.State) board.State { return st.MoveTo(from, to, id, index) })
}

func (s *Session) move(from, to models.Stage, id string, apply func(board.State) board.State) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	if stage, _, ok := s.state.Find(id); !ok || stage != from || !to.Valid() {
		s.mu.Unlock()
		return
	}
	s.state = apply(s.state)
	// Order within a stage is not persisted.
	if from != to {
		s.enqueue("update_status", func(ctx context.Context) error {
			return s.store.UpdateTaskStatus(ctx, id, to)
		})
	}
	s.mu.Unlock()

	s.changed()
}

// Reset deletes every persisted task and reloads the empty board. The delete
// is queued behind writes already issued, so none of them can land after it.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return nil
	}
	s.state = board.Empty()
	done := s.enqueue("delete_all", s.store.DeleteAllTasks)
	s.mu.Unlock()
	s.changed()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Refetch(ctx)
}

// InFlight is the number of background writes not yet finished.
func (s *Session) InFlight() int {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	return len(s.inflight)
}

// Wait blocks until every background write issued so far has finished.
func (s *Session) Wait() {
	s.writes.Wait()
}

// enqueue schedules a background write and must be called with mu held, so
// writes reach the store in the same order as the board changes they mirror.
// A single drain goroutine runs them one at a time. Writes are not cancelled
// by Close and never retried; a failure is only logged and counted. The
// returned channel receives the write's result.
func (s *Session) enqueue(op string, run func(ctx context.Context) error) <-chan error {
	w := pendingWrite{op: op, base: s.base, run: run, done: make(chan error, 1)}

	s.inflightMu.Lock()
	s.nextOp++
	w.id = s.nextOp
	s.inflight[w.id] = op
	s.queue = append(s.queue, w)
	s.writes.Add(1)
	start := !s.draining
	s.draining = true
	s.inflightMu.Unlock()

	if start {
		go s.drain()
	}
	return w.done
}

func (s *Session) drain() {
	for {
		s.inflightMu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.inflightMu.Unlock()
			return
		}
		w := s.queue[0]
		s.queue = s.queue[1:]
		s.inflightMu.Unlock()

		w.done <- s.write(w)

		s.inflightMu.Lock()
		delete(s.inflight, w.id)
		s.inflightMu.Unlock()
		s.writes.Done()
	}
}

func (s *Session) write(w pendingWrite) error {
	ctx, cancel := context.WithTimeout(w.base, s.writeTimeout)
	defer cancel()

	err := w.run(ctx)
	s.metrics.Write(w.op, err)
	if err != nil {
		s.logger.Warn("store write failed", zap.String("op", w.op), zap.Error(err))
		return err
	}
	s.logger.Debug("store write done", zap.String("op", w.op))
	return nil
}

func (s *Session) changed() {
	_ = s.watchers.Publish(context.Background())
}
