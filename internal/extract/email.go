package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	tldSuffix    = regexp.MustCompile(`\.(com|net|org|in|co|us|uk|info|biz)$`)
	letterRun    = regexp.MustCompile(`\p{L}+`)
)

// Email returns the first email address in text, scanning left to right and
// top to bottom. Deliverability is not checked.
//
// RE2's \b only knows ASCII word characters, so a match glued to a non-ASCII
// letter or digit ("éjohn@x.com") is rejected here.
func Email(text string) (string, bool) {
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		if wordRuneBefore(text, loc[0]) || wordRuneAfter(text, loc[1]) {
			continue
		}
		return text[loc[0]:loc[1]], true
	}
	return "", false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func wordRuneBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordRuneAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

// WebsiteFromEmail returns the domain part of email, everything after the first "@".
func WebsiteFromEmail(email string) (string, bool) {
	if email == "" {
		return "", false
	}
	_, domain, found := strings.Cut(email, "@")
	if !found || domain == "" {
		return "", false
	}
	return domain, true
}

// CompanyFromEmail derives a company name from the email domain: a known TLD is
// stripped, "-" and "_" become spaces and every word is title-cased.
//
//	john@acme-solutions.com -> "Acme Solutions"
func CompanyFromEmail(email string) (string, bool) {
	domain, ok := WebsiteFromEmail(email)
	if !ok {
		return "", false
	}
	company := tldSuffix.ReplaceAllString(domain, "")
	company = strings.NewReplacer("-", " ", "_", " ").Replace(company)
	company = titleCase(company)
	return company, company != ""
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "acme2go.co" becomes "Acme2Go.Co".
func titleCase(s string) string {
	// Casers keep state between calls and must not be shared.
	caser := cases.Title(language.Und)
	return letterRun.ReplaceAllStringFunc(s, func(run string) string {
		return caser.String(run)
	})
}
