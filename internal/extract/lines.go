package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// contactSignal matches text that belongs to an email, website or phone number.
var contactSignal = regexp.MustCompile(`@|www|\.com|\.net|\.org|\d{10}`)

// Lines splits text into trimmed, non-empty lines, preserving order.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func hasContactSignal(line string) bool {
	return contactSignal.MatchString(strings.ToLower(line))
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// runeLen counts characters, not bytes.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func inRange(n, lo, hi int) bool {
	return n >= lo && n <= hi
}

// mostlyCapitalized reports whether at least share of the words start with an
// uppercase letter.
func mostlyCapitalized(words []string, share float64) bool {
	capital := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capital++
		}
	}
	return float64(capital) >= float64(len(words))*share
}

func head(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}
