// Package scheduler runs deferred device actions. A single goroutine keeps
// pending timers ordered by due time and hands due ones to a fixed pool of
// workers, so both the number of outstanding timers and the number of
// concurrent dispatches are bounded.
package scheduler

import (
	"context"
	"errors"
	"time"

	"homechat/internal/domain"
)

var (
	ErrQueueFull        = errors.New("timer queue full")
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// Dispatcher carries out the action of a fired timer.
type Dispatcher interface {
	Dispatch(ctx context.Context, action domain.Action) string
}

// Observer is told about every firing after the dispatch completes.
type Observer interface {
	TimerFired(ctx context.Context, f Firing)
}

type Config struct {
	Workers    int
	MaxPending int
}

const (
	DefaultWorkers    = 4
	DefaultMaxPending = 256
)

// Entry is one scheduled timer.
type Entry struct {
	ID          string
	SessionID   string
	EntityID    string
	Action      domain.Action
	Delay       time.Duration
	Recurrence  domain.Recurrence
	Period      time.Duration
	ScheduledAt time.Time
	Due         time.Time
	Runs        int

	seq     uint64
	index   int
	dropped bool
}

// Firing describes one completed run of a timer.
type Firing struct {
	TimerID   string    `json:"timer_id"`
	SessionID string    `json:"session_id"`
	EntityID  string    `json:"entity_id"`
	Result    string    `json:"result"`
	FiredAt   time.Time `json:"fired_at"`
	Run       int       `json:"run"`
	Recurring bool      `json:"recurring"`
}

type Stats struct {
	Pending int   `json:"pending"`
	Running int64 `json:"running"`
	Fired   int64 `json:"fired"`
	Workers int   `json:"workers"`
}

// entryHeap orders entries by due time, then by scheduling order.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Due.Equal(h[j].Due) {
		return h[i].seq < h[j].seq
	}
	return h[i].Due.Before(h[j].Due)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
