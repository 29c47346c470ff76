//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"homechat/internal/application"
)

const (
	framesPerBuffer  = 1024
	silenceThreshold = int16(500)
)

// Microphone records one spoken command from the default input device. A
// recording ends after a second of silence following speech, or at the
// phrase limit.
type Microphone struct {
	format application.AudioFormat
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

func NewMicrophone(format application.AudioFormat, logger *slog.Logger) *Microphone {
	return &Microphone{format: format, logger: logger}
}

func (m *Microphone) Name() string {
	return "microphone"
}

func (m *Microphone) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	m.initialized = true
	m.logger.Info("microphone ready", "sampleRate", m.format.SampleRate)
	return nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil
	}
	m.initialized = false
	return portaudio.Terminate()
}

func (m *Microphone) Record(ctx context.Context) ([]byte, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	frame := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.format.SampleRate), framesPerBuffer, frame)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	rate := m.format.SampleRate
	waitLimit := rate * int(RecordWaitLimit.Seconds())
	phraseLimit := rate * int(PhraseLimit.Seconds())

	samples := make([]int16, 0, rate*5)
	heard := false
	waited := 0
	silence := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		quiet := isSilent(frame, silenceThreshold)
		if !heard {
			if quiet {
				waited += len(frame)
				if waited > waitLimit {
					return nil, ErrNoSpeech
				}
				continue
			}
			heard = true
		}

		samples = append(samples, frame...)

		if quiet {
			silence += len(frame)
		} else {
			silence = 0
		}

		if silence > rate || len(samples) > phraseLimit {
			break
		}
	}

	m.logger.Debug("recorded voice command", "samples", len(samples))
	return EncodeWAV(samples, m.format), nil
}
