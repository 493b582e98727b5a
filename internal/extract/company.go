package extract

import "strings"

const (
	companyMaxLen          = 60
	companyCapitalizedRate = 0.6
)

// Company returns the company name. A name derived from the email domain
// always wins; otherwise the first line that carries a company keyword or
// looks like a capitalized multi-word name is used.
func Company(lines []string, email string) (string, bool) {
	if company, ok := CompanyFromEmail(email); ok {
		return company, true
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !inRange(runeLen(line), 3, companyMaxLen) || hasContactSignal(line) {
			continue
		}
		if containsAny(strings.ToLower(line), companyKeywords) {
			return line, true
		}
		if words := strings.Fields(line); len(words) >= 2 && mostlyCapitalized(words, companyCapitalizedRate) {
			return line, true
		}
	}

	return "", false
}
