package domain

import "time"

type JournalSource string

const (
	SourceAction JournalSource = "action"
	SourceTimer  JournalSource = "timer"
)

// JournalEntry is one recorded dispatch outcome.
type JournalEntry struct {
	ID        int64         `json:"id"`
	At        time.Time     `json:"at"`
	SessionID string        `json:"session_id"`
	Source    JournalSource `json:"source"`
	EntityID  string        `json:"entity_id"`
	Mode      string        `json:"mode"`
	Result    string        `json:"result"`
}
