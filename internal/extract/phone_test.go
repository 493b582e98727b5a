package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"indian mobile with country code", "Mob: +91 9876543210", "+919876543210"},
		{"indian mobile with dash", "91-9876543210", "919876543210"},
		{"bare mobile", "Call 7012345678 now", "7012345678"},
		{"international with space", "Tel +44 2079460958", "+442079460958"},
		{"grouped five and five", "98765 43210", "9876543210"},
		{"us style triplets", "Office: 415.555.0199", "4155550199"},
		{"parenthesized area code", "(022) 555-1234", "0225551234"},
		{"too short", "Ext 555-1234", ""},
		{"no digits", "John Smith", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Phone(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != "", ok)
		})
	}
}

// A long reference number has no mobile-shaped run, so the generic 3-3-4
// pattern picks its first ten digits.
func TestPhone_InvoiceNumberAcceptedByLowPriorityPattern(t *testing.T) {
	got, ok := Phone("Invoice No 12345678901234")
	assert.True(t, ok)
	assert.Equal(t, "1234567890", got)
}

// Pattern priority beats position: the 5+5 number wins over the earlier
// reference number that only the 3-3-4 pattern would accept.
func TestPhone_PatternPriorityBeatsPosition(t *testing.T) {
	got, _ := Phone("Ref 12345678901234\nMobile 98765 43210")
	assert.Equal(t, "9876543210", got)

	got, _ = Phone("Office 022-555-1234\nMobile 9876543210")
	assert.Equal(t, "9876543210", got)
}

func TestPhoneCandidates_Dedupes(t *testing.T) {
	got := phoneCandidates(phonePatterns[1], "9876543210 / 9876543210 / 8765432109")
	assert.Equal(t, []string{"9876543210", "8765432109"}, got)
}

func TestCleanPhone(t *testing.T) {
	phone, digits := cleanPhone("+91 (98) 765-43210")
	assert.Equal(t, "+919876543210", phone)
	assert.Equal(t, 12, digits)

	phone, digits = cleanPhone("022 555")
	assert.Equal(t, "022555", phone)
	assert.Equal(t, 6, digits)
}
