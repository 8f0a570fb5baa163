package fit

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var placeholders = map[string]struct{}{
	"tbd":         {},
	"todo":        {},
	"n/a":         {},
	"na":          {},
	"none":        {},
	"null":        {},
	"placeholder": {},
	"lorem ipsum": {},
	"content":     {},
	"text":        {},
	"bullet":      {},
}

// isPlaceholder reports whether s carries no usable content: blank, only
// punctuation, or one of the filler strings generators tend to emit.
func isPlaceholder(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "lorem ipsum") {
		return true
	}
	trimmed := strings.TrimFunc(s, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
	if trimmed == "" {
		return true
	}
	_, ok := placeholders[trimmed]
	return ok
}

// cleanItems drops placeholder entries and trims the rest.
func cleanItems(items []string) []string {
	var out []string
	for _, it := range items {
		if isPlaceholder(it) {
			continue
		}
		out = append(out, strings.TrimSpace(it))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateWords cuts s to at most max runes, breaking on the last word
// boundary and appending ellipsis. Strings already within max are returned
// unchanged. The kept head is never placeholder text unless the first max
// runes of s are.
func truncateWords(s string, max int, ellipsis string) string {
	if runeLen(s) <= max {
		return s
	}
	runes := []rune(s)
	budget := max - runeLen(ellipsis)
	if budget <= 0 {
		return string([]rune(ellipsis)[:max])
	}
	cut := budget
	if !unicode.IsSpace(runes[budget]) {
		for i := budget - 1; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
	}
	head := strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '-'
	})
	// A boundary cut may leave only filler such as "N/A"; cut mid-word instead.
	if head == "" || isPlaceholder(head) {
		head = strings.TrimRightFunc(string(runes[:budget]), unicode.IsSpace)
	}
	return head + ellipsis
}

// estimateLines approximates wrapped line count at a given characters-per-line.
func estimateLines(text string, perLine int) float64 {
	n := runeLen(text)
	if n == 0 {
		return 0
	}
	return float64((n + perLine - 1) / perLine)
}

var charsPerLine = []struct {
	points  int
	perLine int
}{
	{22, 90},
	{20, 100},
	{18, 110},
	{16, 125},
	{14, 140},
}

const (
	maxBodyLines  = 8
	itemSpacing   = 0.5
	minFontPoints = 14
)

// recommendPoints picks the largest body font size at which items fit in
// the content area.
func recommendPoints(items []string) int {
	for _, c := range charsPerLine {
		total := 0.0
		for _, it := range items {
			total += estimateLines(it, c.perLine) + itemSpacing
		}
		if total <= maxBodyLines {
			return c.points
		}
	}
	return minFontPoints
}
