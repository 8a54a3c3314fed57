package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var stripPolicy = bluemonday.StrictPolicy()

// CleanLine normalises single-line free text typed by a shopper: markup is stripped,
// the result is NFC-normalised, control characters and runs of whitespace collapse
// to one space, and the value is cut to limit runes when limit > 0.
func CleanLine(value string, limit int) string {
	return clean(value, limit, false)
}

// CleanMultiline behaves like CleanLine but keeps line breaks, for addresses and notes.
func CleanMultiline(value string, limit int) string {
	return clean(value, limit, true)
}

func clean(value string, limit int, keepNewlines bool) string {
	if value == "" {
		return ""
	}
	// StrictPolicy escapes entities in what it keeps; undo that so text stays plain.
	value = html.UnescapeString(stripPolicy.Sanitize(value))
	value = norm.NFC.String(value)

	var b strings.Builder
	b.Grow(len(value))
	pendingSpace, lineStart := false, true
	for _, r := range value {
		switch {
		case r == '\n' && keepNewlines:
			b.WriteRune('\n')
			pendingSpace, lineStart = false, true
		case r == '\r':
		case unicode.IsSpace(r) || unicode.IsControl(r):
			pendingSpace = true
		default:
			if pendingSpace && !lineStart {
				b.WriteByte(' ')
			}
			pendingSpace, lineStart = false, false
			b.WriteRune(r)
		}
	}

	out := b.String()
	if keepNewlines {
		lines := strings.Split(out, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if line = strings.TrimSpace(line); line != "" {
				kept = append(kept, line)
			}
		}
		out = strings.Join(kept, "\n")
	}
	out = strings.TrimSpace(out)

	if limit > 0 {
		runes := []rune(out)
		if len(runes) > limit {
			out = strings.TrimSpace(string(runes[:limit]))
		}
	}
	return out
}
