package application

import (
	"encoding/json"
	"strings"

	"homechat/internal/domain"
)

// DefaultResponse is shown when the model returns work but no sentence.
const DefaultResponse = "İşlem yapıldı."

// Reply is the decoded form of one model answer.
type Reply struct {
	Response string
	Actions  []domain.Action
	Timers   []domain.Timer
	// Raw is the model text with code fences removed.
	Raw string
	// Structured is false when Raw could not be read as a command object;
	// the caller then shows Raw verbatim.
	Structured bool
	// Ignored names the actions or timers fields that were present but not
	// lists. They are treated as empty.
	Ignored []string
}

// ParseReply decodes a model answer. It never fails: anything that is not a
// JSON object with at least one of response, actions or timers comes back
// unstructured. An actions or timers field that is not a list is ignored, and
// a malformed element inside one becomes an empty entry so that its siblings
// are still processed.
func ParseReply(text string) Reply {
	raw := stripCodeFence(text)
	reply := Reply{Raw: raw}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return reply
	}

	respRaw, hasResp := fields["response"]
	actRaw, hasActs := fields["actions"]
	timRaw, hasTimers := fields["timers"]
	if !hasResp && !hasActs && !hasTimers {
		return reply
	}

	reply.Response = DefaultResponse
	if hasResp {
		if err := json.Unmarshal(respRaw, &reply.Response); err != nil {
			return Reply{Raw: raw}
		}
	}

	var ok bool
	if hasActs {
		if reply.Actions, ok = decodeEntries[domain.Action](actRaw); !ok {
			reply.Ignored = append(reply.Ignored, "actions")
		}
	}
	if hasTimers {
		if reply.Timers, ok = decodeEntries[domain.Timer](timRaw); !ok {
			reply.Ignored = append(reply.Ignored, "timers")
		}
	}

	reply.Structured = true
	return reply
}

func decodeEntries[T ~map[string]any](data json.RawMessage) ([]T, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		var entry T
		if err := json.Unmarshal(item, &entry); err != nil || entry == nil {
			entry = T{}
		}
		out = append(out, entry)
	}
	return out, true
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
