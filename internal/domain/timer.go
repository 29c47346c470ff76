package domain

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// FallbackDelay replaces a delay_seconds value that is present but not a number.
	FallbackDelay = 5 * time.Second
	// MaxDelay bounds how far ahead a timer can be set.
	MaxDelay = 366 * 24 * time.Hour
	// MinInterval is the shortest period an interval timer may repeat at.
	MinInterval = time.Minute
)

// Timer is a deferred action as produced by the model.
type Timer map[string]any

type Recurrence string

const (
	RecurNone     Recurrence = ""
	RecurDaily    Recurrence = "daily"
	RecurWeekly   Recurrence = "weekly"
	RecurInterval Recurrence = "interval"
)

func (t Timer) EntityID() string {
	return stringField(t, KeyEntityID)
}

// Delay returns how long to wait before firing. A missing value means fire
// now, a negative one is clamped to zero and a non-numeric one becomes
// FallbackDelay.
func (t Timer) Delay() time.Duration {
	raw, ok := t[KeyDelaySeconds]
	if !ok || raw == nil {
		return 0
	}

	var secs float64
	switch v := raw.(type) {
	case float64:
		secs = v
	case int:
		secs = float64(v)
	case int64:
		secs = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return FallbackDelay
		}
		secs = f
	default:
		return FallbackDelay
	}

	if math.IsNaN(secs) || secs <= 0 {
		return 0
	}
	if secs >= MaxDelay.Seconds() {
		return MaxDelay
	}
	return time.Duration(secs * float64(time.Second))
}

// Recurrence returns the repeat mode only when it can really be honored.
// Unknown values and an interval shorter than MinInterval are one-shot.
func (t Timer) Recurrence() Recurrence {
	switch r := Recurrence(stringField(t, KeyRepeat)); r {
	case RecurDaily, RecurWeekly:
		return r
	case RecurInterval:
		if t.Delay() >= MinInterval {
			return r
		}
	}
	return RecurNone
}

// Period is the time between firings of a recurring timer.
func (t Timer) Period() time.Duration {
	switch t.Recurrence() {
	case RecurDaily:
		return 24 * time.Hour
	case RecurWeekly:
		return 7 * 24 * time.Hour
	case RecurInterval:
		return t.Delay()
	default:
		return 0
	}
}

// Action is the dispatch performed when the timer fires: the timer without
// its scheduling metadata.
func (t Timer) Action() Action {
	a := make(Action, len(t))
	for k, v := range t {
		switch k {
		case KeyDelaySeconds, KeyEntityID, KeyRepeat, KeyDuration:
			continue
		}
		a[k] = v
	}
	if id, ok := t[KeyEntityID]; ok {
		a[KeyEntityID] = id
	}
	return a
}
