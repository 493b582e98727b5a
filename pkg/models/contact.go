package models

// ContactRecord is the structured result of reading one visiting card.
// Every field is a plain string; a field that could not be identified is "".
type ContactRecord struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Company     string `json:"company"`
	Designation string `json:"designation"`
	Address     string `json:"address"`
}

// Fields returns the record as a map keyed by the JSON field names.
// All seven keys are always present.
func (c ContactRecord) Fields() map[string]string {
	return map[string]string{
		"name":        c.Name,
		"email":       c.Email,
		"phone":       c.Phone,
		"website":     c.Website,
		"company":     c.Company,
		"designation": c.Designation,
		"address":     c.Address,
	}
}

// IsEmpty reports whether no field was extracted at all.
func (c ContactRecord) IsEmpty() bool {
	return c == ContactRecord{}
}

// SavedContact is a ContactRecord as persisted in the card store, together with
// the path of the card image it was read from.
type SavedContact struct {
	ContactRecord
	ImagePath string `json:"image_path"`
}

// StoreColumns is the header row of the card store, in column order.
var StoreColumns = []string{
	"Name", "Email", "Phone", "Designation", "Company", "Website", "Address", "Image_Path",
}

// Row returns the contact as a store row matching StoreColumns.
func (s SavedContact) Row() []string {
	return []string{
		s.Name,
		s.Email,
		s.Phone,
		s.Designation,
		s.Company,
		s.Website,
		s.Address,
		s.ImagePath,
	}
}

// SavedContactFromRow builds a SavedContact from a store row. Short rows are
// padded with empty values.
func SavedContactFromRow(row []string) SavedContact {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return SavedContact{
		ContactRecord: ContactRecord{
			Name:        get(0),
			Email:       get(1),
			Phone:       get(2),
			Designation: get(3),
			Company:     get(4),
			Website:     get(5),
			Address:     get(6),
		},
		ImagePath: get(7),
	}
}
