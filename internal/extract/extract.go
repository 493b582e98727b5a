// Package extract turns raw OCR text from a visiting card into a ContactRecord.
//
// Extraction is a fixed pipeline of independent heuristics:
//
//	raw text -> lines -> email, phone -> name -> designation, company -> address
//
// Each heuristic either finds a value or reports that it could not. The
// pipeline is total: whatever the input, ExtractAllFields returns a complete
// record whose unidentified fields are empty strings.
//
// The keyword and city lists are English-only and India-centric.
package extract

import (
	"fmt"

	"github.com/rs/zerolog"

	"cardreader/internal/logger"
	"cardreader/pkg/models"
)

// Extractor runs the field heuristics and logs any field that fails.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	log zerolog.Logger
}

// New creates an Extractor logging under the "extractor" component.
func New() *Extractor {
	return &Extractor{log: logger.WithComponent("extractor")}
}

// NewWithLogger creates an Extractor with an explicit logger.
func NewWithLogger(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractAllFields extracts every contact field from text using a default Extractor.
func ExtractAllFields(text string) models.ContactRecord {
	return New().ExtractAllFields(text)
}

// ExtractAllFields extracts every contact field from text. It never fails.
func (x *Extractor) ExtractAllFields(text string) models.ContactRecord {
	lines := Lines(text)

	email := x.guard("email", func() (string, bool) { return Email(text) })
	phone := x.guard("phone", func() (string, bool) { return Phone(text) })
	website := x.guard("website", func() (string, bool) { return WebsiteFromEmail(email) })

	name := x.guard("name", func() (string, bool) { return Name(lines) })

	designation := x.guard("designation", func() (string, bool) { return Designation(lines, name) })
	company := x.guard("company", func() (string, bool) { return Company(lines, email) })
	address := x.guard("address", func() (string, bool) { return Address(text) })

	record := models.ContactRecord{
		Name:        name,
		Email:       email,
		Phone:       phone,
		Website:     website,
		Company:     company,
		Designation: designation,
		Address:     address,
	}

	x.log.Debug().
		Int("lines", len(lines)).
		Bool("name", name != "").
		Bool("email", email != "").
		Bool("phone", phone != "").
		Bool("company", company != "").
		Bool("designation", designation != "").
		Bool("address", address != "").
		Msg("Extracted contact fields")

	return record
}

// guard runs one field heuristic. A panic inside fn is logged and turned into
// an empty value so that one misfiring rule cannot sink the whole record.
func (x *Extractor) guard(field string, fn func() (string, bool)) (value string) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error().
				Str("field", field).
				Err(fmt.Errorf("%v", r)).
				Msg("Field extraction failed, leaving field empty")
			value = ""
		}
	}()

	v, ok := fn()
	if !ok {
		x.log.Trace().Str("field", field).Msg("No value found")
		return ""
	}
	return v
}
