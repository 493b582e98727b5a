package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"cardreader/pkg/models"
)

const (
	// XLSXMIMEType is the content type of WriteXLSX output.
	XLSXMIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// SheetName is the worksheet holding the contacts.
	SheetName = "Contacts"
)

// WriteXLSX writes contacts as a workbook with one "Contacts" sheet whose
// header row is models.StoreColumns.
func WriteXLSX(w io.Writer, contacts []models.SavedContact) error {
	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet rather than leaving an empty "Sheet1"
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	for i, h := range models.StoreColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(models.StoreColumns), 1)
	_ = f.SetCellStyle(SheetName, "A1", last, header)

	for r, c := range contacts {
		for col, v := range c.Row() {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			// phone numbers stay text so leading "+" and zeros survive
			_ = f.SetCellStr(SheetName, cell, v)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 24) // name
	_ = f.SetColWidth(SheetName, "B", "B", 32) // email
	_ = f.SetColWidth(SheetName, "C", "C", 18) // phone
	_ = f.SetColWidth(SheetName, "D", "F", 28) // designation, company, website
	_ = f.SetColWidth(SheetName, "G", "G", 60) // address
	_ = f.SetColWidth(SheetName, "H", "H", 48) // image
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
