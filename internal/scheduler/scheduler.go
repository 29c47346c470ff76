package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"homechat/internal/domain"
)

// Scheduler manages timer scheduling and execution.
type Scheduler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	workers    int
	maxPending int
	now        func() time.Time

	mu        sync.Mutex
	queue     entryHeap
	recurring map[string]*Entry
	seq       uint64
	observers []Observer
	running   bool
	stopped   bool
	cancel    context.CancelFunc

	wake chan struct{}
	jobs chan *Entry
	wg   sync.WaitGroup

	fired    atomic.Int64
	inflight atomic.Int64
}

// New creates a scheduler. Call Start to begin firing timers; timers
// scheduled before Start are kept and fire once it runs.
func New(cfg Config, dispatcher Dispatcher, logger *slog.Logger, observers ...Observer) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	return &Scheduler{
		dispatcher: dispatcher,
		logger:     logger,
		workers:    cfg.Workers,
		maxPending: cfg.MaxPending,
		now:        time.Now,
		observers:  observers,
		recurring:  make(map[string]*Entry),
		wake:       make(chan struct{}, 1),
		jobs:       make(chan *Entry),
	}
}

// AddObserver registers another sink for firings.
func (s *Scheduler) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Start launches the scheduling loop and the worker pool. They run until ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1 + s.workers)
	go s.loop(ctx)
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}

	s.logger.Debug("scheduler started", "workers", s.workers, "max_pending", s.maxPending)
	return nil
}

// Stop halts the scheduler and waits for in-flight dispatches. Pending
// timers are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	dropped := len(s.queue)
	s.queue = nil
	s.recurring = make(map[string]*Entry)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped", "dropped", dropped)
}

// Schedule queues a timer and returns at once.
func (s *Scheduler) Schedule(sessionID string, t domain.Timer) (Entry, error) {
	now := s.now()
	delay := t.Delay()

	e := &Entry{
		ID:          newID(),
		SessionID:   sessionID,
		EntityID:    t.EntityID(),
		Action:      t.Action(),
		Delay:       delay,
		Recurrence:  t.Recurrence(),
		Period:      t.Period(),
		ScheduledAt: now,
		Due:         now.Add(delay),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Entry{}, ErrSchedulerStopped
	}
	if len(s.queue) >= s.maxPending {
		s.mu.Unlock()
		return Entry{}, ErrQueueFull
	}
	s.push(e)
	if e.Period > 0 {
		s.recurring[e.ID] = e
	}
	// The loop and workers own e once the lock is released.
	out := *e
	s.mu.Unlock()
	s.poke()

	s.logger.Info("timer scheduled",
		"timer", e.ID,
		"session", sessionID,
		"entity", e.EntityID,
		"delay", delay,
		"recurrence", e.Recurrence,
	)

	return out, nil
}

// DropSession cancels the recurring timers of a session that has ended,
// including one being fired right now. One-shot timers still fire. It
// returns how many timers were dropped.
func (s *Scheduler) DropSession(sessionID string) int {
	s.mu.Lock()
	dropped := 0
	for id, e := range s.recurring {
		if e.SessionID != sessionID {
			continue
		}
		e.dropped = true
		if e.index >= 0 && e.index < len(s.queue) && s.queue[e.index] == e {
			heap.Remove(&s.queue, e.index)
		}
		delete(s.recurring, id)
		dropped++
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.poke()
		s.logger.Info("dropped recurring timers of ended session", "session", sessionID, "count", dropped)
	}
	return dropped
}

// Pending returns the queued timers ordered by due time.
func (s *Scheduler) Pending() []Entry {
	return s.PendingFor("")
}

// PendingFor returns the queued timers of one session, or of all sessions
// when sessionID is empty.
func (s *Scheduler) PendingFor(sessionID string) []Entry {
	s.mu.Lock()
	result := make([]Entry, 0, len(s.queue))
	for _, e := range s.queue {
		if sessionID == "" || e.SessionID == sessionID {
			result = append(result, *e)
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Due.Equal(result[j].Due) {
			return result[i].seq < result[j].seq
		}
		return result[i].Due.Before(result[j].Due)
	})
	return result
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	pending := len(s.queue)
	s.mu.Unlock()

	return Stats{
		Pending: pending,
		Running: s.inflight.Load(),
		Fired:   s.fired.Load(),
		Workers: s.workers,
	}
}

// push must be called with s.mu held.
func (s *Scheduler) push(e *Entry) {
	s.seq++
	e.seq = s.seq
	heap.Push(&s.queue, e)
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// popDue removes every entry that is due and reports how long to wait for
// the next one (negative when nothing is queued).
func (s *Scheduler) popDue() ([]*Entry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*Entry
	for len(s.queue) > 0 && !s.queue[0].Due.After(now) {
		due = append(due, heap.Pop(&s.queue).(*Entry))
	}
	if len(s.queue) == 0 {
		return due, -1
	}
	return due, s.queue[0].Due.Sub(now)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.jobs)

	for {
		due, wait := s.popDue()
		for _, e := range due {
			select {
			case s.jobs <- e:
			case <-ctx.Done():
				return
			}
		}
		if len(due) > 0 {
			continue
		}

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
		case <-s.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for e := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.fire(ctx, e)
	}
}

func (s *Scheduler) fire(ctx context.Context, e *Entry) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	e.Runs++
	result := s.dispatcher.Dispatch(ctx, e.Action)
	s.fired.Add(1)

	f := Firing{
		TimerID:   e.ID,
		SessionID: e.SessionID,
		EntityID:  e.EntityID,
		Result:    result,
		FiredAt:   s.now(),
		Run:       e.Runs,
		Recurring: e.Period > 0,
	}

	s.logger.Info("timer fired",
		"timer", e.ID,
		"session", e.SessionID,
		"entity", e.EntityID,
		"run", e.Runs,
		"result", result,
	)

	s.mu.Lock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.TimerFired(ctx, f)
	}

	if e.Period > 0 {
		s.reschedule(e)
	}
}

func (s *Scheduler) reschedule(e *Entry) {
	now := s.now()
	next := e.Due.Add(e.Period)
	for !next.After(now) {
		next = next.Add(e.Period)
	}

	s.mu.Lock()
	if s.stopped || e.dropped {
		s.mu.Unlock()
		return
	}
	e.Due = next
	s.push(e)
	s.mu.Unlock()
	s.poke()

	s.logger.Debug("timer rescheduled", "timer", e.ID, "next", next)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
