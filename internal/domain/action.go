package domain

import "strings"

// Keys with meaning to the dispatcher and scheduler. Every other key in an
// action is passed through untouched.
const (
	KeyEntityID      = "entity_id"
	KeyState         = "state"
	KeyBrightnessPct = "brightness_pct"
	KeyTemperature   = "temperature"
	KeyDelaySeconds  = "delay_seconds"
	KeyRepeat        = "repeat"
	KeyDuration      = "duration"
)

// MissingEntityMessage is the dispatch result for an action without an entity id.
const MissingEntityMessage = "Hata: Cihaz ID yok"

// Action is one immediate state-change request as produced by the model.
type Action map[string]any

func (a Action) EntityID() string {
	return stringField(a, KeyEntityID)
}

func (a Action) State() string {
	return stringField(a, KeyState)
}

// TurnsOn reports whether the requested state is "on" or "open".
func (a Action) TurnsOn() bool {
	switch a.State() {
	case "on", "open":
		return true
	default:
		return false
	}
}

// ServiceData returns the body of a device service call: entity_id plus every
// field except entity_id and state.
func (a Action) ServiceData() map[string]any {
	data := make(map[string]any, len(a))
	for k, v := range a {
		if k == KeyEntityID || k == KeyState {
			continue
		}
		data[k] = v
	}
	data[KeyEntityID] = a.EntityID()
	return data
}

func (a Action) Clone() Action {
	out := make(Action, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
