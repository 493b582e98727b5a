package extract

import "strings"

const designationMaxLen = 60

// Designation finds the job title. Titles usually sit right below or above the
// name, so those lines are checked first before scanning the whole card.
func Designation(lines []string, name string) (string, bool) {
	nameIndex := -1
	if name != "" {
		for i, line := range lines {
			if strings.TrimSpace(line) == name {
				nameIndex = i
				break
			}
		}
	}

	if nameIndex != -1 && nameIndex+1 < len(lines) {
		if next := strings.TrimSpace(lines[nameIndex+1]); isDesignation(next) {
			return next, true
		}
	}

	if nameIndex > 0 {
		if prev := strings.TrimSpace(lines[nameIndex-1]); isDesignation(prev) {
			return prev, true
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == name {
			continue
		}
		if isDesignation(line) {
			return line, true
		}
	}

	return "", false
}

func isDesignation(line string) bool {
	return inRange(runeLen(line), 2, designationMaxLen) &&
		!hasContactSignal(line) &&
		containsAny(strings.ToLower(line), designationKeywords)
}
