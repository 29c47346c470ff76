package web

import (
	"context"
	"log/slog"
	"sync"

	"homechat/internal/scheduler"
)

const subscriberBuffer = 16

// Hub fans timer firings out to the websocket connections of the session
// that scheduled them. It implements scheduler.Observer.
type Hub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[chan scheduler.Firing]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[chan scheduler.Firing]struct{}),
	}
}

// Subscribe registers a listener for one session. The returned func
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan scheduler.Firing, func()) {
	ch := make(chan scheduler.Firing, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan scheduler.Firing]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// TimerFired delivers f to every listener of its session. Slow listeners
// miss the event rather than block the scheduler.
func (h *Hub) TimerFired(_ context.Context, f scheduler.Firing) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[f.SessionID] {
		select {
		case ch <- f:
		default:
			h.logger.Warn("websocket subscriber lagging, dropping firing", "session", f.SessionID, "timer", f.TimerID)
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
