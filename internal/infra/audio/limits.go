package audio

import (
	"errors"
	"time"
)

const (
	// RecordWaitLimit is how long to wait for speech to begin.
	RecordWaitLimit = 5 * time.Second
	// PhraseLimit caps the length of one command.
	PhraseLimit = 10 * time.Second
)

var ErrNoSpeech = errors.New("no speech detected")
