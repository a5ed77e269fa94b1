// Package logscan extracts the single most relevant error snippet from a
// build log transcript and classifies it into an optional remediation hint.
//
// The transcript is scanned from the end toward the start: build tools print
// the fatal cause near the end, usually followed only by stack frames or a
// generic failure banner, while a forward scan would surface the first warning.
package logscan

import (
	"strings"
	"unicode/utf8"
)

// Fixed fallback texts.
const (
	NoLogsMessage      = "No build logs were available."
	BuildFailedMessage = "Build failed. Open the full logs for details."
	TruncationMarker   = "\n… (truncated)"
)

// Defaults for Extractor limits.
const (
	DefaultMaxLength      = 900
	DefaultContextLineMax = 200
)

// Extractor holds the snippet limits. The zero value uses the defaults.
type Extractor struct {
	// MaxLength is the maximum snippet length in runes before the truncation
	// marker is appended.
	MaxLength int

	// ContextLineMax is the length below which the line following a match is
	// appended as context.
	ContextLineMax int
}

// New returns an Extractor with the given maximum snippet length. Values <= 0
// select DefaultMaxLength.
func New(maxLength int) Extractor {
	return Extractor{MaxLength: maxLength, ContextLineMax: DefaultContextLineMax}
}

// Extract returns the best single error snippet from logs. It is total and
// always returns non-empty text.
func (e Extractor) Extract(logs []string) string {
	if len(logs) == 0 {
		return NoLogsMessage
	}

	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = cleanLine(l)
	}

	if idx := lastIndicatorLine(lines); idx >= 0 {
		snippet := strings.TrimSpace(lines[idx])
		if idx+1 < len(lines) {
			next := strings.TrimSpace(lines[idx+1])
			if next != "" && !IsStackFrame(lines[idx+1]) && utf8.RuneCountInString(next) < e.contextLineMax() {
				snippet += "\n" + next
			}
		}
		return e.clamp(snippet)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if IsStackFrame(lines[i]) {
			continue
		}
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return e.clamp(trimmed)
		}
	}

	return BuildFailedMessage
}

// Summarize runs Extract and Hint together.
func (e Extractor) Summarize(logs []string) (snippet, hint string) {
	snippet = e.Extract(logs)
	hint, _ = e.Hint(snippet)
	return snippet, hint
}

// Hint classifies an extracted snippet into a remediation tip. Fallback texts
// never produce a hint.
func (e Extractor) Hint(snippet string) (string, bool) {
	if snippet == NoLogsMessage || snippet == BuildFailedMessage || strings.TrimSpace(snippet) == "" {
		return "", false
	}
	lower := strings.ToLower(snippet)
	for _, h := range Hints {
		if h.Pattern.MatchString(lower) {
			return h.Text, true
		}
	}
	return "", false
}

// MatchIndicator returns the name of the first indicator matching line.
func MatchIndicator(line string) (string, bool) {
	for _, ind := range Indicators {
		if ind.Pattern.MatchString(line) {
			return ind.Name, true
		}
	}
	return "", false
}

// IsStackFrame reports whether line is an indented "at ..." frame.
func IsStackFrame(line string) bool {
	return stackFramePattern.MatchString(line)
}

func lastIndicatorLine(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if IsStackFrame(lines[i]) || strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if _, ok := MatchIndicator(lines[i]); ok {
			return i
		}
	}
	return -1
}

func (e Extractor) clamp(s string) string {
	limit := e.maxLength()
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit]), " \t\n") + TruncationMarker
}

func (e Extractor) maxLength() int {
	if e.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return e.MaxLength
}

func (e Extractor) contextLineMax() int {
	if e.ContextLineMax <= 0 {
		return DefaultContextLineMax
	}
	return e.ContextLineMax
}

// cleanLine strips ANSI escapes and trailing carriage returns. Leading
// whitespace is kept so stack frames remain recognizable.
func cleanLine(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	return strings.TrimRight(s, "\r\n")
}
