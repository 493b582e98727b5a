package ocr

import (
	"regexp"
	"strings"
)

var reLineBreak = regexp.MustCompile(`\r\n?|\f|\v`)

// Normalize unifies line endings to "\n" and drops trailing whitespace (the
// page break Tesseract appends). Spacing and blank lines inside the text are
// kept: the extractors score phone groups and address windows on the
// engine's own layout.
func Normalize(s string) string {
	s = reLineBreak.ReplaceAllString(s, "\n")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
}
