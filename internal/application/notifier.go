package application

import (
	"context"
	"fmt"
	"log/slog"

	"homechat/internal/scheduler"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// NotifyObserver forwards timer firings to a Notifier as plain text.
type NotifyObserver struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewNotifyObserver(notifier Notifier, logger *slog.Logger) *NotifyObserver {
	return &NotifyObserver{notifier: notifier, logger: logger}
}

func (o *NotifyObserver) TimerFired(ctx context.Context, f scheduler.Firing) {
	msg := fmt.Sprintf("Zamanlayıcı Bitti: %s", f.Result)
	if err := o.notifier.Notify(ctx, msg); err != nil {
		o.logger.Error("notifying timer firing", "timer", f.TimerID, "error", err)
	}
}
