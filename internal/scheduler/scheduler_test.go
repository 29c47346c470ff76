package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homechat/internal/domain"
	"homechat/internal/scheduler"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	actions []domain.Action
	calls   chan domain.Action
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{calls: make(chan domain.Action, 64)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, action domain.Action) string {
	d.mu.Lock()
	d.actions = append(d.actions, action)
	d.mu.Unlock()
	select {
	case d.calls <- action:
	default:
	}
	return "ok: " + action.EntityID()
}

type blockingDispatcher struct {
	release chan struct{}
	current atomic.Int64
	peak    atomic.Int64
	done    chan struct{}
}

func (d *blockingDispatcher) Dispatch(_ context.Context, _ domain.Action) string {
	n := d.current.Add(1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-d.release
	d.current.Add(-1)
	d.done <- struct{}{}
	return "done"
}

type dispatchFunc func(domain.Action)

func (f dispatchFunc) Dispatch(_ context.Context, action domain.Action) string {
	f(action)
	return "ok"
}

type firingRecorder struct {
	mu      sync.Mutex
	firings []scheduler.Firing
}

func (r *firingRecorder) TimerFired(_ context.Context, f scheduler.Firing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, f)
}

func (r *firingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.firings)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitCalls(t *testing.T, calls <-chan domain.Action, n int) []domain.Action {
	t.Helper()
	var got []domain.Action
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case a := <-calls:
			got = append(got, a)
		case <-timeout:
			t.Fatalf("timeout waiting for dispatches: got %d, want %d", len(got), n)
		}
	}
	return got
}

func TestSchedule_NonNumericDelayIsExactlyFiveSeconds(t *testing.T) {
	s := scheduler.New(scheduler.Config{}, newRecordingDispatcher(), testLogger())

	for _, raw := range []any{"haftasonu9_hesapla", "", true, map[string]any{"h": 9}} {
		entry, err := s.Schedule("sess", domain.Timer{"entity_id": "switch.robot_supurge", "delay_seconds": raw})
		if err != nil {
			t.Fatalf("Schedule error: %v", err)
		}
		if entry.Delay != 5*time.Second {
			t.Errorf("delay for %v: got %v, want exactly 5s", raw, entry.Delay)
		}
		if got := entry.Due.Sub(entry.ScheduledAt); got != 5*time.Second {
			t.Errorf("due offset for %v: got %v, want exactly 5s", raw, got)
		}
	}
}

func TestSchedule_DelayedAction(t *testing.T) {
	s := scheduler.New(scheduler.Config{}, newRecordingDispatcher(), testLogger())

	entry, err := s.Schedule("sess", domain.Timer{
		"entity_id":     "light.salon_isigi",
		"delay_seconds": float64(1800),
		"state":         "off",
	})
	if err != nil {
		t.Fatalf("Schedule error: %v", err)
	}

	if entry.Delay != 1800*time.Second {
		t.Errorf("delay: got %v, want 1800s", entry.Delay)
	}

	want := domain.Action{"entity_id": "light.salon_isigi", "state": "off"}
	if !reflect.DeepEqual(entry.Action, want) {
		t.Errorf("action: got %v, want %v", entry.Action, want)
	}

	pending := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending: got %d, want 1", len(pending))
	}
	if pending[0].ID != entry.ID {
		t.Errorf("pending id: got %s, want %s", pending[0].ID, entry.ID)
	}
	if entry.Recurrence != domain.RecurNone {
		t.Errorf("recurrence: got %q, want none", entry.Recurrence)
	}
}

func TestScheduler_FiresEachTimerOnce(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	recorder := &firingRecorder{}
	s := scheduler.New(scheduler.Config{Workers: 2}, dispatcher, testLogger(), recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	ids := []string{"fan.fan_salon", "switch.kahve_makinesi", "light.mutfak_isigi"}
	for _, id := range ids {
		if _, err := s.Schedule("sess", domain.Timer{"entity_id": id, "delay_seconds": 0.01, "state": "on"}); err != nil {
			t.Fatalf("Schedule error: %v", err)
		}
	}

	got := waitCalls(t, dispatcher.calls, len(ids))
	if len(got) != len(ids) {
		t.Fatalf("dispatches: got %d, want %d", len(got), len(ids))
	}

	select {
	case a := <-dispatcher.calls:
		t.Errorf("unexpected extra dispatch: %v", a)
	case <-time.After(100 * time.Millisecond):
	}

	deadline := time.Now().Add(2 * time.Second)
	for recorder.count() < len(ids) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if recorder.count() != len(ids) {
		t.Errorf("observed firings: got %d, want %d", recorder.count(), len(ids))
	}
	if st := s.Stats(); st.Fired != int64(len(ids)) || st.Pending != 0 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestScheduler_FiresInDueOrder(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	s := scheduler.New(scheduler.Config{Workers: 1}, dispatcher, testLogger())

	if _, err := s.Schedule("sess", domain.Timer{"entity_id": "second", "delay_seconds": 0.08}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule("sess", domain.Timer{"entity_id": "first", "delay_seconds": 0.02}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	got := waitCalls(t, dispatcher.calls, 2)
	if got[0].EntityID() != "first" || got[1].EntityID() != "second" {
		t.Errorf("order: got %s then %s", got[0].EntityID(), got[1].EntityID())
	}
}

func TestScheduler_WorkerPoolBoundsConcurrency(t *testing.T) {
	dispatcher := &blockingDispatcher{
		release: make(chan struct{}),
		done:    make(chan struct{}, 8),
	}
	s := scheduler.New(scheduler.Config{Workers: 2}, dispatcher, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	for i := 0; i < 5; i++ {
		if _, err := s.Schedule("sess", domain.Timer{"entity_id": "fan.fan_salon"}); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		dispatcher.release <- struct{}{}
		<-dispatcher.done
	}

	if peak := dispatcher.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency: got %d, want <= 2", peak)
	}
}

func TestScheduler_MaxPending(t *testing.T) {
	s := scheduler.New(scheduler.Config{MaxPending: 2}, newRecordingDispatcher(), testLogger())

	timer := domain.Timer{"entity_id": "fan.fan_salon", "delay_seconds": float64(3600)}
	for i := 0; i < 2; i++ {
		if _, err := s.Schedule("sess", timer); err != nil {
			t.Fatalf("Schedule %d error: %v", i, err)
		}
	}

	if _, err := s.Schedule("sess", timer); !errors.Is(err, scheduler.ErrQueueFull) {
		t.Errorf("third Schedule: got %v, want ErrQueueFull", err)
	}
}

func TestScheduler_ScheduleAfterStop(t *testing.T) {
	s := scheduler.New(scheduler.Config{}, newRecordingDispatcher(), testLogger())
	_ = s.Start(context.Background())
	s.Stop()

	if _, err := s.Schedule("sess", domain.Timer{"entity_id": "fan.fan_salon"}); !errors.Is(err, scheduler.ErrSchedulerStopped) {
		t.Errorf("Schedule after Stop: got %v, want ErrSchedulerStopped", err)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func waitPending(t *testing.T, s *scheduler.Scheduler, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for len(s.Pending()) != want && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := len(s.Pending()); got != want {
		t.Fatalf("pending: got %d, want %d", got, want)
	}
}

func TestScheduler_IntervalRecurs(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	recorder := &firingRecorder{}
	clock := newFakeClock()
	s := scheduler.New(scheduler.Config{}, dispatcher, testLogger(), recorder)
	s.SetClock(clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	entry, err := s.Schedule("sess", domain.Timer{
		"entity_id":     "switch.cay_makinesi",
		"delay_seconds": float64(60),
		"repeat":        "interval",
		"state":         "on",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Recurrence != domain.RecurInterval {
		t.Fatalf("recurrence: got %q, want interval", entry.Recurrence)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		s.Wake()
		waitCalls(t, dispatcher.calls, 1)
		// The entry is briefly out of the queue while it fires.
		waitPending(t, s, 1)
	}

	if got := recorder.count(); got != 3 {
		t.Errorf("firings: got %d, want 3", got)
	}
	if next := s.Pending()[0].Due; !next.Equal(clock.Now().Add(time.Minute)) {
		t.Errorf("next due: got %v, want %v", next, clock.Now().Add(time.Minute))
	}
}

func TestScheduler_TinyIntervalFiresOnce(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	s := scheduler.New(scheduler.Config{}, dispatcher, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	entry, err := s.Schedule("sess", domain.Timer{
		"entity_id":     "light.salon",
		"delay_seconds": 0.001,
		"repeat":        "interval",
		"state":         "on",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Period != 0 {
		t.Errorf("period: got %v, want 0", entry.Period)
	}

	waitCalls(t, dispatcher.calls, 1)
	select {
	case <-dispatcher.calls:
		t.Fatal("sub-minute interval fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
	if got := len(s.Pending()); got != 0 {
		t.Errorf("pending: got %d, want 0", got)
	}
}

func TestScheduler_ConcurrentSchedule(t *testing.T) {
	var dispatched atomic.Int64
	s := scheduler.New(scheduler.Config{MaxPending: 1000}, dispatchFunc(func(domain.Action) {
		dispatched.Add(1)
	}), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	const n = 500
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := s.Schedule("sess", domain.Timer{"entity_id": "light.salon", "delay_seconds": float64(0)})
			if err != nil {
				t.Errorf("Schedule error: %v", err)
				return
			}
			ids <- entry.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if id == "" || seen[id] {
			t.Errorf("bad or duplicate timer id %q", id)
		}
		seen[id] = true
	}

	deadline := time.Now().Add(2 * time.Second)
	for dispatched.Load() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := dispatched.Load(); got != n {
		t.Errorf("dispatched: got %d, want %d", got, n)
	}
}

func TestScheduler_DropSessionFreesQueue(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	clock := newFakeClock()
	s := scheduler.New(scheduler.Config{MaxPending: 2}, dispatcher, testLogger())
	s.SetClock(clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	daily := domain.Timer{"entity_id": "switch.kahve_makinesi", "delay_seconds": float64(60), "repeat": "daily"}
	for i := 0; i < 2; i++ {
		if _, err := s.Schedule("gone", daily); err != nil {
			t.Fatalf("Schedule %d error: %v", i, err)
		}
	}

	clock.Advance(time.Minute)
	s.Wake()
	waitCalls(t, dispatcher.calls, 2)
	waitPending(t, s, 2)

	oneShot := domain.Timer{"entity_id": "light.salon", "delay_seconds": float64(30)}
	if _, err := s.Schedule("next", oneShot); !errors.Is(err, scheduler.ErrQueueFull) {
		t.Fatalf("Schedule with full queue: got %v, want ErrQueueFull", err)
	}

	if got := s.DropSession("gone"); got != 2 {
		t.Errorf("DropSession: got %d, want 2", got)
	}
	if got := len(s.Pending()); got != 0 {
		t.Errorf("pending after drop: got %d, want 0", got)
	}
	if _, err := s.Schedule("next", oneShot); err != nil {
		t.Errorf("Schedule after drop: %v", err)
	}
	if got := s.DropSession("gone"); got != 0 {
		t.Errorf("second DropSession: got %d, want 0", got)
	}
}

func TestScheduler_DropSessionWhileFiring(t *testing.T) {
	dispatcher := &blockingDispatcher{
		release: make(chan struct{}),
		done:    make(chan struct{}, 1),
	}
	clock := newFakeClock()
	s := scheduler.New(scheduler.Config{Workers: 1}, dispatcher, testLogger())
	s.SetClock(clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx)
	defer s.Stop()

	if _, err := s.Schedule("gone", domain.Timer{
		"entity_id":     "fan.fan_salon",
		"delay_seconds": float64(120),
		"repeat":        "interval",
	}); err != nil {
		t.Fatal(err)
	}
	oneShot, err := s.Schedule("gone", domain.Timer{"entity_id": "light.salon", "delay_seconds": float64(600)})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	s.Wake()
	deadline := time.Now().Add(time.Second)
	for dispatcher.current.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if dispatcher.current.Load() != 1 {
		t.Fatal("interval timer did not start firing")
	}

	if got := s.DropSession("gone"); got != 1 {
		t.Errorf("DropSession: got %d, want 1", got)
	}
	close(dispatcher.release)
	<-dispatcher.done
	deadline = time.Now().Add(time.Second)
	for s.Stats().Running != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Only the one-shot timer is left.
	if got := len(s.Pending()); got != 1 {
		t.Fatalf("pending: got %d, want 1", got)
	}
	if got := s.Pending()[0].ID; got != oneShot.ID {
		t.Errorf("pending timer: got %s, want %s", got, oneShot.ID)
	}
}

func TestScheduler_PendingFor(t *testing.T) {
	s := scheduler.New(scheduler.Config{}, newRecordingDispatcher(), testLogger())
	timer := domain.Timer{"entity_id": "fan.fan_salon", "delay_seconds": float64(60)}

	_, _ = s.Schedule("a", timer)
	_, _ = s.Schedule("b", timer)
	_, _ = s.Schedule("a", timer)

	if got := len(s.PendingFor("a")); got != 2 {
		t.Errorf("PendingFor(a): got %d, want 2", got)
	}
	if got := len(s.Pending()); got != 3 {
		t.Errorf("Pending: got %d, want 3", got)
	}
}
