//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"

	"homechat/internal/application"
)

var errNoMicrophone = errors.New("microphone not available: rebuild with -tags portaudio")

// Microphone stub when portaudio is not available
type Microphone struct {
	logger *slog.Logger
}

func NewMicrophone(_ application.AudioFormat, logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

func (m *Microphone) Name() string {
	return "microphone"
}

func (m *Microphone) Start(_ context.Context) error {
	return errNoMicrophone
}

func (m *Microphone) Stop() error {
	return nil
}

func (m *Microphone) Record(_ context.Context) ([]byte, error) {
	return nil, errNoMicrophone
}
