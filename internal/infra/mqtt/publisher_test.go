package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"homechat/internal/scheduler"
)

type fakeSender struct {
	published []*paho.Publish
	err       error
}

func (f *fakeSender) Publish(_ context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, p)
	return &paho.PublishResponse{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopics(t *testing.T) {
	p := New(Config{Topic: "ev/"}, testLogger())
	if got := p.FiredTopic(); got != "ev/timers/fired" {
		t.Errorf("FiredTopic() = %q, want ev/timers/fired", got)
	}
	if got := p.AvailabilityTopic(); got != "ev/availability" {
		t.Errorf("AvailabilityTopic() = %q, want ev/availability", got)
	}

	if got := New(Config{}, testLogger()).FiredTopic(); got != "homechat/timers/fired" {
		t.Errorf("default FiredTopic() = %q", got)
	}
}

func TestTimerFired_PublishesJSON(t *testing.T) {
	out := &fakeSender{}
	p := New(Config{}, testLogger())
	p.out = out

	f := scheduler.Firing{
		TimerID:   "t1",
		SessionID: "s1",
		EntityID:  "fan.fan_salon",
		Result:    "🛠️ **SİMÜLASYON:** Salon Fanı → AÇILDI 🟢 ",
		FiredAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Run:       1,
	}
	p.TimerFired(context.Background(), f)

	if len(out.published) != 1 {
		t.Fatalf("published = %d, want 1", len(out.published))
	}
	msg := out.published[0]
	if msg.Topic != "homechat/timers/fired" || msg.QoS != 1 || msg.Retain {
		t.Errorf("publish = %+v", msg)
	}

	var got scheduler.Firing
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.TimerID != "t1" || got.EntityID != "fan.fan_salon" || !got.FiredAt.Equal(f.FiredAt) {
		t.Errorf("payload = %+v", got)
	}
}

func TestTimerFired_NotStarted(t *testing.T) {
	p := New(Config{}, testLogger())
	// Must not panic without a connection.
	p.TimerFired(context.Background(), scheduler.Firing{TimerID: "t1"})
}

func TestTimerFired_PublishError(t *testing.T) {
	p := New(Config{}, testLogger())
	p.out = &fakeSender{err: errors.New("connection down")}
	p.TimerFired(context.Background(), scheduler.Firing{TimerID: "t1"})
}

func TestStart_BadURL(t *testing.T) {
	p := New(Config{Broker: "://bad"}, testLogger())
	if err := p.Start(context.Background()); err == nil {
		t.Error("Start() with a bad URL should fail")
	}
}
