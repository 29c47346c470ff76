// Package tui is the terminal chat client.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"homechat/internal/application"
	"homechat/internal/domain"
	"homechat/internal/scheduler"
)

const (
	title = "🏠 Grok AI Ev Asistanı"

	maxChatWidth = 100

	nameRequiredMessage = "Lütfen adınızı girin."
	audioFailedMessage  = "Ses anlaşılamadı."
	noMicrophoneMessage = "🎙️ Mikrofon kullanılamıyor."
	firingPrefix        = "⏰ Zamanlayıcı Bitti: "
)

// Router processes one user turn.
type Router interface {
	Handle(ctx context.Context, sess *application.Session, text string) (application.Outcome, error)
}

type Deps struct {
	Session *application.Session
	Router  Router
	// Recorder is nil when no microphone is available.
	Recorder application.VoiceRecorder
	STT      application.SpeechToText
	Weather  application.WeatherProvider
	Firings  <-chan scheduler.Firing
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

type entry struct {
	kind entryKind
	text string
}

type (
	responseMsg struct {
		out application.Outcome
		err error
	}
	transcriptMsg struct {
		text string
		err  error
	}
	firingMsg  scheduler.Firing
	weatherMsg domain.Reading
)

type Model struct {
	ctx  context.Context
	deps Deps

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries   []entry
	weather   *domain.Reading
	loading   bool
	recording bool
	width     int
	height    int
}
