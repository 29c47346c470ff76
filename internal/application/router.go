package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"homechat/internal/domain"
	"homechat/internal/scheduler"
)

var ErrEmptyCommand = errors.New("empty command")

type TimerScheduler interface {
	Schedule(sessionID string, timer domain.Timer) (scheduler.Entry, error)
}

// Outcome is what one processed turn produced.
type Outcome struct {
	// Content is the assistant turn exactly as stored in the session.
	Content    string
	Response   string
	Logs       []string
	Timers     []scheduler.Entry
	Structured bool
}

// Router turns one free-text command into a model call and carries out the
// actions and timers the model asked for.
type Router struct {
	completion CompletionClient
	weather    WeatherProvider
	dispatcher Dispatcher
	timers     TimerScheduler
	journal    Journal
	logger     *slog.Logger
	now        func() time.Time
}

func NewRouter(
	completion CompletionClient,
	weather WeatherProvider,
	dispatcher Dispatcher,
	timers TimerScheduler,
	journal Journal,
	logger *slog.Logger,
) *Router {
	if journal == nil {
		journal = NoopJournal{}
	}
	return &Router{
		completion: completion,
		weather:    weather,
		dispatcher: dispatcher,
		timers:     timers,
		journal:    journal,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle processes one user turn. The only error returned besides
// ErrEmptyCommand is a failed completion call; every other failure is folded
// into the outcome text.
func (r *Router) Handle(ctx context.Context, sess *Session, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyCommand
	}

	done := sess.beginTurn()
	defer done()

	sess.Append(domain.RoleUser, text)

	reading := r.weather.Current(ctx)
	system := SystemPrompt(sess.UserName(), reading)

	r.logger.Info("routing command", "session", sess.ID, "text", text)

	raw, err := r.completion.Complete(ctx, system, sess.Recent(domain.ContextTurns))
	if err != nil {
		return Outcome{}, fmt.Errorf("completion: %w", err)
	}

	reply := ParseReply(raw)
	if !reply.Structured {
		r.logger.Warn("model reply is not a command object, showing raw text", "session", sess.ID)
		sess.Append(domain.RoleAssistant, reply.Raw)
		return Outcome{Content: reply.Raw, Response: reply.Raw}, nil
	}

	if len(reply.Ignored) > 0 {
		r.logger.Warn("model reply fields are not lists, ignoring them", "session", sess.ID, "fields", reply.Ignored)
	}

	r.logger.Info("parsed reply",
		"session", sess.ID,
		"actions", len(reply.Actions),
		"timers", len(reply.Timers),
	)

	out := Outcome{Response: reply.Response, Structured: true}

	for _, action := range reply.Actions {
		result := r.dispatcher.Dispatch(ctx, action)
		out.Logs = append(out.Logs, result)
		r.record(ctx, sess.ID, action.EntityID(), result)
	}

	for _, timer := range reply.Timers {
		name := domain.DisplayName(timer.EntityID())
		entry, err := r.timers.Schedule(sess.ID, timer)
		if err != nil {
			r.logger.Warn("timer rejected", "session", sess.ID, "entity", timer.EntityID(), "error", err)
			if errors.Is(err, scheduler.ErrQueueFull) {
				out.Logs = append(out.Logs, fmt.Sprintf("⚠️ Zamanlayıcı kuyruğu dolu: %s", name))
			} else {
				out.Logs = append(out.Logs, fmt.Sprintf("⚠️ Zamanlayıcı kurulamadı: %s", name))
			}
			continue
		}
		out.Timers = append(out.Timers, entry)
		out.Logs = append(out.Logs, timerLine(name, entry))
	}

	out.Content = fmt.Sprintf("**%s**\n\n", reply.Response)
	if len(out.Logs) > 0 {
		out.Content += "---\n" + strings.Join(out.Logs, "\n\n")
	}

	sess.Append(domain.RoleAssistant, out.Content)
	return out, nil
}

func (r *Router) record(ctx context.Context, sessionID, entityID, result string) {
	err := r.journal.Record(ctx, domain.JournalEntry{
		At:        r.now(),
		SessionID: sessionID,
		Source:    domain.SourceAction,
		EntityID:  entityID,
		Mode:      r.dispatcher.Mode(),
		Result:    result,
	})
	if err != nil {
		r.logger.Error("journaling action", "entity", entityID, "error", err)
	}
}

func timerLine(name string, e scheduler.Entry) string {
	line := fmt.Sprintf("⏰ **Zamanlayıcı:** %s (%ssn)", name, FormatSeconds(e.Delay))
	if e.Recurrence != domain.RecurNone {
		line += fmt.Sprintf(" (Tekrar: %s)", e.Recurrence)
	}
	return line
}

// FormatSeconds renders a delay as a plain number of seconds ("1800", "1.5").
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
