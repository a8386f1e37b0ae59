package stream

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format selects how RenderEvent renders a parsed line.
type Format int

const (
	// FormatRaw passes assistant output through verbatim and renders
	// everything else with icons/colour for a human terminal.
	FormatRaw Format = iota
	// FormatStructured renders every JSON event as compact JSON, for piping
	// into another tool; lines that are not JSON pass through unchanged.
	FormatStructured
)

// Event is a line of backend output, parsed enough to classify and render
// it. Payload is nil when the line wasn't JSON.
type Event struct {
	Type    string
	RunID   string
	Payload map[string]any
	Raw     string
}

// ParseEvent classifies a raw output line. Lines that parse as JSON with a
// "type" field are typed events; JSON without one is "unknown"; anything
// that is not JSON is "assistant.output".
func ParseEvent(line string) Event {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			evt := Event{Payload: payload, Raw: line}
			if t, ok := payload["type"].(string); ok {
				evt.Type = t
			} else {
				evt.Type = "unknown"
			}
			if id, ok := payload["run_id"].(string); ok {
				evt.RunID = id
			}
			return evt
		}
	}
	return Event{Type: "assistant.output", Raw: line}
}

// decorationEnabled is process-wide state that controls whether error
// events are coloured. It starts from whether stdout is a terminal;
// SetDecoration overrides it.
var decorationEnabled = isatty.IsTerminal(os.Stdout.Fd())

// SetDecoration overrides automatic TTY detection. Call once at process
// startup (e.g. to honour --quiet or NO_COLOR).
func SetDecoration(enabled bool) {
	decorationEnabled = enabled
}

const ansiBrightRed = "\033[91m"
const ansiReset = "\033[0m"

// RenderEvent renders a parsed Event for display according to format.
func RenderEvent(evt Event, format Format) string {
	if format == FormatStructured {
		return renderStructured(evt)
	}
	return renderRaw(evt)
}

func renderStructured(evt Event) string {
	if evt.Payload != nil {
		if b, err := json.Marshal(evt.Payload); err == nil {
			return string(b)
		}
	}
	return evt.Raw
}

func renderRaw(evt Event) string {
	switch evt.Type {
	case "run.start":
		return fmt.Sprintf("▶ Run started: %s", evt.RunID)
	case "assistant.output":
		return evt.Raw
	case "tool.call":
		name, _ := evt.Payload["name"].(string)
		return fmt.Sprintf("↪ tool %s(%s)", name, summarizeArgs(evt.Payload["args"]))
	case "tool.result":
		name, _ := evt.Payload["name"].(string)
		result := stringify(evt.Payload["result"])
		return fmt.Sprintf("← %s: %s", name, truncate(result, 200))
	case "error":
		msg, _ := evt.Payload["message"].(string)
		if msg == "" {
			msg = evt.Raw
		}
		return colorize(msg)
	case "run.end":
		status, _ := evt.Payload["status"].(string)
		return fmt.Sprintf("■ Run ended (%s)", status)
	default:
		return fmt.Sprintf("[%s] %s", evt.Type, renderStructured(evt))
	}
}

func colorize(msg string) string {
	if !decorationEnabled {
		return msg
	}
	return ansiBrightRed + msg + ansiReset
}

func summarizeArgs(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return truncate(string(b), 80)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
