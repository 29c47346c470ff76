package scheduler

import "time"

// SetClock replaces the time source. Call it before Start.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Wake makes the loop re-check the queue, for use after moving a fake clock.
func (s *Scheduler) Wake() {
	s.poke()
}
