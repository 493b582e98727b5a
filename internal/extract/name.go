package extract

import "strings"

const (
	nameSearchLines     = 3
	nameFallbackLines   = 5
	nameMaxLen          = 50
	nameMaxWords        = 4
	nameCapitalizedRate = 0.7
)

// Name picks the person's name from the top of the card.
//
// The first of the top three lines that is 2-50 characters long, carries no
// contact details or company words, has 1-4 words and is mostly capitalized
// wins. Failing that, the first of the top five lines with at least two
// characters, no contact details and at most four words is used.
func Name(lines []string) (string, bool) {
	for _, line := range head(lines, nameSearchLines) {
		if !inRange(runeLen(line), 2, nameMaxLen) {
			continue
		}
		lower := strings.ToLower(line)
		if hasContactSignal(line) || containsAny(lower, nameStopWords) {
			continue
		}
		words := strings.Fields(line)
		if !inRange(len(words), 1, nameMaxWords) {
			continue
		}
		if mostlyCapitalized(words, nameCapitalizedRate) {
			return line, true
		}
	}

	for _, line := range head(lines, nameFallbackLines) {
		if runeLen(line) >= 2 && !hasContactSignal(line) && len(strings.Fields(line)) <= nameMaxWords {
			return line, true
		}
	}

	return "", false
}
