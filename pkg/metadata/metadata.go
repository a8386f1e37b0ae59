// Package metadata tracks execution metadata without buffering output.
//
// A run's stdout can be arbitrarily large; ExecutionMetadata never holds
// more than a handful of short strings regardless of how much output a
// backend produces. Everything is extracted line-by-line as it streams
// past and forgotten immediately after.
package metadata

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var runIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)run[_\s-]id[:\s]+["` + "`" + `]?([a-zA-Z0-9_-]+)["` + "`" + `]?`),
	regexp.MustCompile(`(?i)Run\s+ID[:\s]+["` + "`" + `]?([a-zA-Z0-9_-]+)["` + "`" + `]?`),
}

var errorKeywords = []string{
	"error", "failed", "exception", "traceback",
	"fatal", "critical", "[error]", "[fail]",
}

const maxErrorLines = 3
const maxStderrChars = 500
const summaryErrorChars = 100
const runIDSummaryChars = 8

// ExecutionMetadata is the lightweight, zero-buffer record of a single
// backend invocation. Callers feed it one output line at a time via
// Extract; nothing about the output itself is retained.
type ExecutionMetadata struct {
	RunID            string  `json:"run_id,omitempty"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	LineCount        int     `json:"line_count"`
	DurationSeconds  float64 `json:"duration_seconds"`
	ReturnCode       int     `json:"returncode"`
	AvgLineMS        float64 `json:"avg_line_processing_ms"`
	CallbackErrors   int     `json:"callback_errors"`

	runIDExtracted bool
	errorDetected  bool
	errorLines     []string
}

// New returns a freshly zeroed tracker.
func New() *ExecutionMetadata {
	return &ExecutionMetadata{}
}

// Extract pulls metadata out of a single output line. lineProcessingMS is
// an optional timing sample used only to maintain the running average; pass
// 0 when not measured.
func (m *ExecutionMetadata) Extract(line string, lineProcessingMS float64) {
	m.LineCount++

	if lineProcessingMS > 0 {
		m.AvgLineMS = (m.AvgLineMS*float64(m.LineCount-1) + lineProcessingMS) / float64(m.LineCount)
	}

	if !m.runIDExtracted {
		if id := parseRunID(line); id != "" {
			m.RunID = id
			m.runIDExtracted = true
		}
	}

	if containsErrorKeyword(line) {
		m.errorDetected = true
		if len(m.errorLines) < maxErrorLines {
			m.errorLines = append(m.errorLines, strings.TrimSpace(line))
		}
	}
}

func parseRunID(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if v, ok := payload["run_id"]; ok {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
	}

	for _, pattern := range runIDPatterns {
		if match := pattern.FindStringSubmatch(line); match != nil {
			return match[1]
		}
	}
	return ""
}

func containsErrorKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Finalize records the process exit code and, for a failed run with no
// error text captured from the stream, falls back to stderr (truncated)
// or a synthetic message.
func (m *ExecutionMetadata) Finalize(returncode int, stderr string) {
	m.ReturnCode = returncode
	m.Success = returncode == 0

	if m.Success || m.Error != "" {
		return
	}

	switch {
	case len(m.errorLines) > 0:
		m.Error = strings.Join(m.errorLines, "\n")
	case strings.TrimSpace(stderr) != "":
		m.Error = truncate(strings.TrimSpace(stderr), maxStderrChars)
	default:
		m.Error = "Process failed with exit code " + strconv.Itoa(returncode)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SummaryLine renders the final one-line status, e.g.
//
//	[Failed] | 45.20s | 1234 lines | run_id: abc12345... | error: timeout
//
// The error part appears only on a failed run.
func (m *ExecutionMetadata) SummaryLine() string {
	return m.SummaryLineLocale(LocaleEN)
}

// SummaryLineLocale renders SummaryLine using the given locale's status
// tokens and labels.
func (m *ExecutionMetadata) SummaryLineLocale(loc Locale) string {
	l := resolveLocale(loc)

	status := l.StatusFailed
	if m.Success {
		status = l.StatusComplete
	}

	parts := []string{
		"[" + status + "]",
		fmt.Sprintf("%.2f", m.DurationSeconds) + "s",
		strconv.Itoa(m.LineCount) + " " + l.LinesLabel,
	}

	if m.RunID != "" {
		id := m.RunID
		if len(id) > runIDSummaryChars {
			id = id[:runIDSummaryChars]
		}
		parts = append(parts, "run_id: "+id+"...")
	}

	if !m.Success && m.Error != "" {
		brief := m.Error
		if idx := strings.IndexByte(brief, '\n'); idx >= 0 {
			brief = brief[:idx]
		}
		brief = truncate(brief, summaryErrorChars)
		parts = append(parts, l.ErrorLabel+": "+brief)
	}

	return strings.Join(parts, " | ")
}
