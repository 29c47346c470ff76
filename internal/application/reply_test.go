package application_test

import (
	"reflect"
	"testing"

	"homechat/internal/application"
)

func TestParseReply_Structured(t *testing.T) {
	text := "```json\n" + `{"actions": [{"entity_id": "scene.film_gecesi"}, {"entity_id": "light.salon_isigi", "state": "on", "brightness_pct": 20}], "response": "Film modu hazır."}` + "\n```"

	reply := application.ParseReply(text)

	if !reply.Structured {
		t.Fatalf("expected structured reply, raw=%q", reply.Raw)
	}
	if reply.Response != "Film modu hazır." {
		t.Errorf("response: got %q", reply.Response)
	}
	if len(reply.Actions) != 2 {
		t.Fatalf("actions: got %d, want 2", len(reply.Actions))
	}
	if reply.Actions[1]["brightness_pct"] != float64(20) {
		t.Errorf("brightness_pct: got %v", reply.Actions[1]["brightness_pct"])
	}
	if len(reply.Timers) != 0 {
		t.Errorf("timers: got %d, want 0", len(reply.Timers))
	}
}

func TestParseReply_DefaultResponse(t *testing.T) {
	reply := application.ParseReply(`{"timers": [{"entity_id": "fan.fan_salon", "delay_seconds": 60}]}`)

	if !reply.Structured {
		t.Fatal("expected structured reply")
	}
	if reply.Response != application.DefaultResponse {
		t.Errorf("response: got %q, want %q", reply.Response, application.DefaultResponse)
	}
	if len(reply.Timers) != 1 {
		t.Errorf("timers: got %d, want 1", len(reply.Timers))
	}
}

func TestParseReply_Unstructured(t *testing.T) {
	tests := []struct {
		name string
		text string
		raw  string
	}{
		{"plain text", "Bunu anlayamadım.", "Bunu anlayamadım."},
		{"array", `[1, 2, 3]`, `[1, 2, 3]`},
		{"unrelated object", `{"foo": "bar"}`, `{"foo": "bar"}`},
		{"response not a string", `{"response": 42}`, `{"response": 42}`},
		{"fenced garbage", "```\nnot json\n```", "not json"},
		{"null", "null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := application.ParseReply(tt.text)
			if reply.Structured {
				t.Errorf("expected unstructured reply, got %+v", reply)
			}
			if reply.Raw != tt.raw {
				t.Errorf("raw: got %q, want %q", reply.Raw, tt.raw)
			}
		})
	}
}

func TestParseReply_MalformedEntryKeepsSiblings(t *testing.T) {
	reply := application.ParseReply(`{"actions": ["bozuk", {"entity_id": "fan.fan_salon", "state": "on"}], "response": "Tamam"}`)

	if !reply.Structured {
		t.Fatal("expected structured reply")
	}
	if len(reply.Actions) != 2 {
		t.Fatalf("actions: got %d, want 2", len(reply.Actions))
	}
	if reply.Actions[0].EntityID() != "" {
		t.Errorf("malformed entry should be empty, got %v", reply.Actions[0])
	}
	if reply.Actions[1].EntityID() != "fan.fan_salon" {
		t.Errorf("second entry: got %v", reply.Actions[1])
	}
}

func TestParseReply_NonListFieldIgnored(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantActions int
		wantTimers  int
		wantIgnored []string
	}{
		{
			name:        "timers not a list",
			text:        `{"actions": [{"entity_id": "light.salon_isigi", "state": "on"}], "timers": {"entity_id": "fan.fan_salon"}, "response": "Işık açıldı."}`,
			wantActions: 1,
			wantIgnored: []string{"timers"},
		},
		{
			name:        "actions not a list",
			text:        `{"actions": "hepsi", "timers": [{"entity_id": "fan.fan_salon", "delay_seconds": 60}], "response": "Işık açıldı."}`,
			wantTimers:  1,
			wantIgnored: []string{"actions"},
		},
		{
			name:        "both not lists",
			text:        `{"actions": 1, "timers": "yok", "response": "Işık açıldı."}`,
			wantIgnored: []string{"actions", "timers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := application.ParseReply(tt.text)
			if !reply.Structured {
				t.Fatalf("expected structured reply, raw=%q", reply.Raw)
			}
			if reply.Response != "Işık açıldı." {
				t.Errorf("response: got %q", reply.Response)
			}
			if len(reply.Actions) != tt.wantActions {
				t.Errorf("actions: got %d, want %d", len(reply.Actions), tt.wantActions)
			}
			if len(reply.Timers) != tt.wantTimers {
				t.Errorf("timers: got %d, want %d", len(reply.Timers), tt.wantTimers)
			}
			if !reflect.DeepEqual(reply.Ignored, tt.wantIgnored) {
				t.Errorf("ignored: got %v, want %v", reply.Ignored, tt.wantIgnored)
			}
		})
	}
}
