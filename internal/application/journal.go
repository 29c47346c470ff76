package application

import (
	"context"
	"log/slog"

	"homechat/internal/domain"
	"homechat/internal/scheduler"
)

type Journal interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
	// Recent returns a session's newest entries, or every session's when
	// sessionID is empty.
	Recent(ctx context.Context, sessionID string, limit int) ([]domain.JournalEntry, error)
}

type NoopJournal struct{}

func (NoopJournal) Record(_ context.Context, _ domain.JournalEntry) error { return nil }

func (NoopJournal) Recent(_ context.Context, _ string, _ int) ([]domain.JournalEntry, error) {
	return nil, nil
}

// JournalObserver records timer firings.
type JournalObserver struct {
	journal Journal
	mode    string
	logger  *slog.Logger
}

func NewJournalObserver(journal Journal, mode string, logger *slog.Logger) *JournalObserver {
	return &JournalObserver{journal: journal, mode: mode, logger: logger}
}

func (o *JournalObserver) TimerFired(ctx context.Context, f scheduler.Firing) {
	err := o.journal.Record(ctx, domain.JournalEntry{
		At:        f.FiredAt,
		SessionID: f.SessionID,
		Source:    domain.SourceTimer,
		EntityID:  f.EntityID,
		Mode:      o.mode,
		Result:    f.Result,
	})
	if err != nil {
		o.logger.Error("journaling timer firing", "timer", f.TimerID, "error", err)
	}
}
