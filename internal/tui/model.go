package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"homechat/internal/application"
	"homechat/internal/domain"
	"homechat/internal/scheduler"
)

func New(ctx context.Context, deps Deps) *Model {
	ti := textinput.New()
	ti.Placeholder = "Adınız..."
	ti.Prompt = "❯ "
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(muted)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accent)

	return &Model{
		ctx:      ctx,
		deps:     deps,
		viewport: viewport.New(60, 15),
		input:    ti,
		spinner:  sp,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.fetchWeather(),
		m.waitForFiring(),
	)
}

func (m *Model) chatting() bool {
	return m.deps.Session.Stage() == application.StageChat
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyCtrlR:
			return m, m.record()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.loading && !m.recording {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case responseMsg:
		m.loading = false
		if msg.err != nil {
			if !errors.Is(msg.err, application.ErrEmptyCommand) {
				m.add(entryError, "API Hatası: "+msg.err.Error())
			}
			return m, nil
		}
		m.add(entryAssistant, msg.out.Content)
		return m, nil

	case transcriptMsg:
		m.recording = false
		text := strings.TrimSpace(msg.text)
		if msg.err != nil || text == "" {
			m.add(entryError, audioFailedMessage)
			return m, nil
		}
		return m, m.send(text)

	case firingMsg:
		m.add(entryNotice, firingPrefix+msg.Result)
		return m, m.waitForFiring()

	case weatherMsg:
		r := domain.Reading(msg)
		m.weather = &r
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles enter: the name in the first stage, a command afterwards.
func (m *Model) submit() tea.Cmd {
	if m.loading || m.recording {
		return nil
	}
	text := strings.TrimSpace(m.input.Value())

	if !m.chatting() {
		if err := m.deps.Session.Start(text); err != nil {
			m.add(entryError, nameRequiredMessage)
			return nil
		}
		m.input.Reset()
		m.input.Placeholder = "Bir komut yazın..."
		m.entries = nil
		// Only the greeting exists at this point.
		for _, t := range m.deps.Session.Turns() {
			m.add(entryAssistant, t.Content)
		}
		return nil
	}

	if text == "" {
		return nil
	}
	m.input.Reset()
	return m.send(text)
}

func (m *Model) send(text string) tea.Cmd {
	m.add(entryUser, text)
	m.loading = true

	ctx, sess, router := m.ctx, m.deps.Session, m.deps.Router
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		out, err := router.Handle(ctx, sess, text)
		return responseMsg{out: out, err: err}
	})
}

func (m *Model) record() tea.Cmd {
	if !m.chatting() || m.loading || m.recording {
		return nil
	}
	if m.deps.Recorder == nil || m.deps.STT == nil {
		m.add(entryError, noMicrophoneMessage)
		return nil
	}

	m.recording = true
	m.add(entryNotice, "🎙️ Dinliyorum...")

	ctx, rec, stt := m.ctx, m.deps.Recorder, m.deps.STT
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		audio, err := rec.Record(ctx)
		if err != nil {
			return transcriptMsg{err: err}
		}
		text, err := stt.Transcribe(ctx, audio)
		return transcriptMsg{text: text, err: err}
	})
}

func (m *Model) fetchWeather() tea.Cmd {
	if m.deps.Weather == nil {
		return nil
	}
	ctx, w := m.ctx, m.deps.Weather
	return func() tea.Msg {
		return weatherMsg(w.Current(ctx))
	}
}

func (m *Model) waitForFiring() tea.Cmd {
	if m.deps.Firings == nil {
		return nil
	}
	ch := m.deps.Firings
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return firingMsg(f)
	}
}

func (m *Model) add(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

// Notifications forwards one session's timer firings to the program.
type Notifications struct {
	sessionID string
	ch        chan scheduler.Firing
}

func NewNotifications(sessionID string, buffer int) *Notifications {
	return &Notifications{sessionID: sessionID, ch: make(chan scheduler.Firing, buffer)}
}

func (n *Notifications) TimerFired(_ context.Context, f scheduler.Firing) {
	if f.SessionID != n.sessionID {
		return
	}
	select {
	case n.ch <- f:
	default:
	}
}

func (n *Notifications) C() <-chan scheduler.Firing {
	return n.ch
}
