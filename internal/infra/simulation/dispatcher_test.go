package simulation_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"homechat/internal/domain"
	"homechat/internal/infra/simulation"
)

func newDispatcher() *simulation.Dispatcher {
	return simulation.NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name   string
		action domain.Action
		want   string
	}{
		{
			name:   "scene",
			action: domain.Action{"entity_id": "scene.film_gecesi"},
			want:   "🛠️ **SİMÜLASYON:** Film Gecesi → AKTİF EDİLDİ 🎬 ",
		},
		{
			name:   "light with brightness",
			action: domain.Action{"entity_id": "light.salon_isigi", "state": "on", "brightness_pct": float64(50)},
			want:   "🛠️ **SİMÜLASYON:** Salon Işığı → AÇILDI 🟢 (%50 Parlaklık)",
		},
		{
			name:   "climate with brightness and temperature",
			action: domain.Action{"entity_id": "climate.klima", "state": "on", "brightness_pct": float64(10), "temperature": float64(23)},
			want:   "🛠️ **SİMÜLASYON:** Klima → AÇILDI 🟢 (%10 Parlaklık, 23°C)",
		},
		{
			name:   "cover open",
			action: domain.Action{"entity_id": "cover.perde_salon", "state": "open"},
			want:   "🛠️ **SİMÜLASYON:** Salon Perdesi → AÇILDI 🟢 ",
		},
		{
			name:   "off",
			action: domain.Action{"entity_id": "fan.fan_salon", "state": "off"},
			want:   "🛠️ **SİMÜLASYON:** Salon Fanı → KAPATILDI 🔴 ",
		},
		{
			name:   "unknown entity uses id",
			action: domain.Action{"entity_id": "light.balkon", "state": "on"},
			want:   "🛠️ **SİMÜLASYON:** light.balkon → AÇILDI 🟢 ",
		},
		{
			name:   "missing entity",
			action: domain.Action{"state": "on"},
			want:   "Hata: Cihaz ID yok",
		},
	}

	d := newDispatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Dispatch(context.Background(), tt.action)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatch_FilmNight(t *testing.T) {
	got := newDispatcher().Dispatch(context.Background(), domain.Action{"entity_id": "scene.film_gecesi"})
	if !strings.Contains(got, "AKTİF EDİLDİ") || !strings.Contains(got, "Film Gecesi") {
		t.Errorf("got %q", got)
	}
}
