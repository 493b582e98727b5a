package extract

import (
	"regexp"
	"strings"
)

var (
	addrDigits   = regexp.MustCompile(`\d+`)
	addrStreet   = regexp.MustCompile(`street|st|road|rd|avenue|ave|boulevard|blvd|lane|ln|drive|dr`)
	addrBuilding = regexp.MustCompile(`apartment|apt|flat|building|bldg|block|sector|phase|floor|fl|suite|ste`)
	addrCity     = regexp.MustCompile(`\b(mumbai|delhi|bangalore|bengaluru|chennai|kolkata|hyderabad|pune|ahmedabad|surat|jaipur|zirakpur|mohali|chandigarh|gurgaon|noida)\b`)
	addrPincode  = regexp.MustCompile(`\b\d{6}\b`)
	addrArea     = regexp.MustCompile(`nagar|colony|area|locality|sector|district|state`)

	// Narrower keyword sets used when scoring a block of consecutive lines.
	blockStreet   = regexp.MustCompile(`street|st|road|rd|avenue|ave`)
	blockBuilding = regexp.MustCompile(`apartment|building|block|sector`)

	// Lines with these are contact details that slipped into an address block.
	addrNoise = regexp.MustCompile(`@|http|www|\.com|\.net|gmail|yahoo`)
)

const (
	addrMinLen      = 5
	addrMaxLen      = 100
	addrMinScore    = 3
	addrWindow      = 3
	addrWindowScore = 3
	addrMinLines    = 2
)

// addressSignals are the per-line indicators of a postal address.
type addressSignals struct {
	digits, street, building, city, pincode, area bool
}

func scanAddressLine(line string) addressSignals {
	lower := strings.ToLower(line)
	return addressSignals{
		digits:   addrDigits.MatchString(line),
		street:   addrStreet.MatchString(lower),
		building: addrBuilding.MatchString(lower),
		city:     addrCity.MatchString(lower),
		pincode:  addrPincode.MatchString(line),
		area:     addrArea.MatchString(lower),
	}
}

func (s addressSignals) score() int {
	n := 0
	for _, b := range []bool{s.digits, s.street, s.building, s.city, s.pincode, s.area} {
		if b {
			n++
		}
	}
	return n
}

func (s addressSignals) accepted() bool {
	switch {
	case s.pincode && s.digits:
		return true
	case s.score() >= addrMinScore:
		return true
	default:
		return s.digits && (s.street || s.building)
	}
}

// Address collects the lines that look like a postal address and joins them
// with ", ". It works on the raw text so that the window fallback sees the
// card's original line layout, blank lines included.
func Address(text string) (string, bool) {
	raw := strings.Split(text, "\n")

	var lines []string
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if !inRange(runeLen(line), addrMinLen, addrMaxLen) {
			continue
		}
		if scanAddressLine(line).accepted() {
			lines = append(lines, line)
		}
	}

	if len(lines) < addrMinLines {
		if block, ok := addressBlock(raw); ok {
			lines = block
		}
	}

	var kept []string
	for _, line := range lines {
		if !addrNoise.MatchString(strings.ToLower(line)) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, ", "), true
}

// addressBlock returns the non-blank lines of the first window of consecutive
// raw lines that scores as an address block.
func addressBlock(raw []string) ([]string, bool) {
	for i := 0; i+addrWindow <= len(raw); i++ {
		window := raw[i : i+addrWindow]
		block := strings.Join(window, " ")
		lower := strings.ToLower(block)

		score := 0
		for _, hit := range []bool{
			addrDigits.MatchString(block),
			blockStreet.MatchString(lower),
			addrPincode.MatchString(block),
			blockBuilding.MatchString(lower),
		} {
			if hit {
				score++
			}
		}
		if score < addrWindowScore {
			continue
		}

		var lines []string
		for _, line := range window {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		return lines, true
	}
	return nil, false
}
