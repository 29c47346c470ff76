// Package simulation is the dispatcher used when no Home Assistant instance is
// configured. It performs no I/O and describes what would have happened.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"homechat/internal/domain"
)

const Mode = "simulation"

type Dispatcher struct {
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

func (d *Dispatcher) Mode() string { return Mode }

func (d *Dispatcher) Dispatch(_ context.Context, action domain.Action) string {
	id := action.EntityID()
	if id == "" {
		return domain.MissingEntityMessage
	}

	var state string
	switch {
	case domain.IsScene(id):
		state = "AKTİF EDİLDİ 🎬"
	case action.TurnsOn():
		state = "AÇILDI 🟢"
	default:
		state = "KAPATILDI 🔴"
	}

	d.logger.Debug("simulated action", "entity", id, "state", action.State())

	return fmt.Sprintf("🛠️ **SİMÜLASYON:** %s → %s %s", domain.DisplayName(id), state, details(action))
}

func details(action domain.Action) string {
	var parts []string
	if v, ok := action[domain.KeyBrightnessPct]; ok && v != nil {
		parts = append(parts, fmt.Sprintf("%%%v Parlaklık", v))
	}
	if v, ok := action[domain.KeyTemperature]; ok && v != nil {
		parts = append(parts, fmt.Sprintf("%v°C", v))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
