package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// phonePatterns are tried in order. The first pattern that yields an accepted
// candidate decides the result, regardless of where other patterns match.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+?91?[-\s]?[6-9]\d{9}`),        // Indian mobile, optional country code
	regexp.MustCompile(`[6-9]\d{9}`),                    // bare 10-digit mobile
	regexp.MustCompile(`\+\d{1,3} \d{10}`),              // international with space
	regexp.MustCompile(`\d{5} \d{5}`),                   // 5+5 groups
	regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`), // 3-3-4
	regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`), // (area) 3-4
}

const minPhoneDigits = 10

// Phone returns the first phone number found in text, normalized to digits with
// an optional leading "+".
func Phone(text string) (string, bool) {
	for _, pattern := range phonePatterns {
		if candidates := phoneCandidates(pattern, text); len(candidates) > 0 {
			return candidates[0], true
		}
	}
	return "", false
}

// phoneCandidates returns the accepted, de-duplicated numbers one pattern finds.
func phoneCandidates(pattern *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, match := range pattern.FindAllString(text, -1) {
		phone, digits := cleanPhone(match)
		if digits < minPhoneDigits || seen[phone] {
			continue
		}
		seen[phone] = true
		out = append(out, phone)
	}
	return out
}

// cleanPhone keeps a leading "+" and the digits of match and reports the digit count.
func cleanPhone(match string) (string, int) {
	var b strings.Builder
	if strings.HasPrefix(match, "+") {
		b.WriteByte('+')
	}
	digits := 0
	for _, r := range match {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
			digits++
		}
	}
	return b.String(), digits
}
