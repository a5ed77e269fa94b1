package webhook

import (
	"strings"
	"unicode/utf8"
)

const (
	shortCommitLength  = 7
	shortBuildIDLength = 8
	ellipsis           = "…"
)

// mrkdwnEscaper escapes the three characters Slack treats as control
// sequences in mrkdwn text.
var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeMrkdwn(s string) string {
	return mrkdwnEscaper.Replace(s)
}

// authorLocalPart returns the part of an e-mail address before "@". Values
// without "@" are returned trimmed.
func authorLocalPart(author string) string {
	author = strings.TrimSpace(author)
	if i := strings.IndexByte(author, '@'); i > 0 {
		return author[:i]
	}
	return author
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// truncateRunes shortens s to at most max runes, ending with an ellipsis
// when it was cut.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max-1]), " ") + ellipsis
}

// shortID returns the first n characters of an ASCII identifier.
func shortID(id string, n int) string {
	id = strings.TrimSpace(id)
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// codeBlock wraps text in a fenced block of at most limit runes, fences
// included. Embedded fences are broken up so they cannot close the block
// early. Escaping happens before the cut so an entity is never split and the
// escaped result still fits.
func codeBlock(text string, limit int) string {
	const open, closing = "```\n", "\n```"
	text = strings.ReplaceAll(text, "```", "`\u200b``")
	return open + fitEscaped(text, limit-len(open)-len(closing)) + closing
}

// fitEscaped escapes s for mrkdwn and keeps the result within budget runes,
// ending with an ellipsis when it was cut.
func fitEscaped(s string, budget int) string {
	escaped := escapeMrkdwn(s)
	if budget <= 0 || utf8.RuneCountInString(escaped) <= budget {
		return escaped
	}

	var b strings.Builder
	used := 0
	for _, r := range s {
		piece := escapeMrkdwn(string(r))
		n := utf8.RuneCountInString(piece)
		if used+n > budget-1 {
			break
		}
		b.WriteString(piece)
		used += n
	}
	return strings.TrimRight(b.String(), " ") + ellipsis
}

// truncateBody limits response bodies included in errors and logs.
func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
