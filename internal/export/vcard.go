// Package export renders contacts for other programs: vCard 3.0 for address
// books and XLSX workbooks for spreadsheets.
package export

import (
	"io"
	"regexp"
	"strings"

	"cardreader/pkg/models"
)

// VCardMIMEType is the content type of VCard output.
const VCardMIMEType = "text/vcard"

var vcardEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	",", `\,`,
	";", `\;`,
)

// VCard renders one contact as a vCard 3.0 block. Every property is written,
// empty or not, and lines end in CRLF.
func VCard(c models.ContactRecord) string {
	var b strings.Builder
	writeVCard(&b, c)
	return b.String()
}

func writeVCard(b *strings.Builder, c models.ContactRecord) {
	line := func(prop, value string) {
		b.WriteString(prop)
		b.WriteString(":")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	line("BEGIN", "VCARD")
	line("VERSION", "3.0")
	line("FN", vcardEscaper.Replace(c.Name))
	line("ORG", vcardEscaper.Replace(c.Company))
	line("TITLE", vcardEscaper.Replace(c.Designation))
	line("TEL", vcardEscaper.Replace(c.Phone))
	line("EMAIL", vcardEscaper.Replace(c.Email))
	line("URL", vcardEscaper.Replace(c.Website))
	// street goes in the third component; PO box and extended address stay empty
	line("ADR", ";;"+vcardEscaper.Replace(c.Address))
	line("END", "VCARD")
}

// WriteVCards writes all contacts to w as one multi-card .vcf stream.
func WriteVCards(w io.Writer, contacts []models.SavedContact) error {
	var b strings.Builder
	for _, c := range contacts {
		writeVCard(&b, c.ContactRecord)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var fileUnsafe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// VCardFilename suggests a download name for a contact's vCard.
func VCardFilename(c models.ContactRecord) string {
	slug := strings.Trim(fileUnsafe.ReplaceAllString(strings.ToLower(c.Name), "_"), "_")
	if slug == "" {
		return "contact.vcf"
	}
	return slug + ".vcf"
}
