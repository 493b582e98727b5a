// Package store persists saved contacts as a CSV file next to a folder of
// card images:
//
//	<dir>/cards_data.csv
//	<dir>/saved_cards/card_1.png
//	<dir>/saved_cards/card_2.png
//
// The CSV header is models.StoreColumns. Files written by other tools are read
// by header name, so column order does not matter and unknown columns are
// ignored.
package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"cardreader/internal/logger"
	"cardreader/internal/preprocess"
	"cardreader/pkg/models"
)

const (
	// DataFile is the name of the CSV file inside the store directory.
	DataFile = "cards_data.csv"

	// ImageDir is the name of the card image folder inside the store directory.
	ImageDir = "saved_cards"

	imagePrefix = "card_"
)

// Stats summarizes how complete the saved contacts are.
type Stats struct {
	Total           int `json:"total"`
	WithEmail       int `json:"with_email"`
	WithPhone       int `json:"with_phone"`
	WithDesignation int `json:"with_designation"`
	WithCompany     int `json:"with_company"`
	WithWebsite     int `json:"with_website"`
	WithAddress     int `json:"with_address"`
}

// Store is a CSV backed contact store. It is safe for concurrent use within
// one process.
type Store struct {
	dir string
	mu  sync.Mutex
	log zerolog.Logger
}

// Open prepares dir (and its image folder) for use as a store.
func Open(dir string) (*Store, error) {
	const op = "Open"

	if dir == "" {
		return nil, WrapStoreError(op, dir, errors.New("empty store directory"))
	}
	if err := os.MkdirAll(filepath.Join(dir, ImageDir), 0o755); err != nil {
		return nil, WrapStoreError(op, dir, err)
	}

	s := &Store{
		dir: dir,
		log: logger.WithComponent("store").With().Str("dir", dir).Logger(),
	}
	s.log.Debug().Msg("Card store opened")
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// DataPath returns the path of the CSV file.
func (s *Store) DataPath() string {
	return filepath.Join(s.dir, DataFile)
}

// ImagePath returns the path of the image folder.
func (s *Store) ImagePath() string {
	return filepath.Join(s.dir, ImageDir)
}

// Load returns all saved contacts in file order. A missing data file is an
// empty store.
func (s *Store) Load() ([]models.SavedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]models.SavedContact, error) {
	const op = "Load"

	f, err := os.Open(s.DataPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapStoreError(op, s.DataPath(), err)
	}
	defer f.Close()

	contacts, err := readContacts(f)
	if err != nil {
		return nil, WrapStoreError(op, s.DataPath(), err)
	}
	return contacts, nil
}

// readContacts parses a store CSV. An empty input has no contacts.
func readContacts(r io.Reader) ([]models.SavedContact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	// position of each store column in this file, -1 when absent
	positions := make([]int, len(models.StoreColumns))
	for i, column := range models.StoreColumns {
		positions[i] = -1
		for j, name := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), column) {
				positions[i] = j
				break
			}
		}
	}

	var contacts []models.SavedContact
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
		}

		row := make([]string, len(models.StoreColumns))
		for i, pos := range positions {
			if pos >= 0 && pos < len(record) {
				row[i] = record[pos]
			}
		}
		contacts = append(contacts, models.SavedContactFromRow(row))
	}
	return contacts, nil
}

// writeContacts writes the header and every contact.
func writeContacts(w io.Writer, contacts []models.SavedContact) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(models.StoreColumns); err != nil {
		return err
	}
	for _, c := range contacts {
		if err := writer.Write(c.Row()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// save rewrites the data file through a temporary file and a rename.
func (s *Store) save(contacts []models.SavedContact) error {
	tmp, err := os.CreateTemp(s.dir, DataFile+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeContacts(tmp, contacts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.DataPath())
}

// Append saves the card image as the next card_<N>.png and adds the contact
// as a new last row. image may be in any format preprocess.Decode understands;
// it is stored as PNG. The returned index is the new row's 0-based position.
func (s *Store) Append(record models.ContactRecord, image []byte) (models.SavedContact, int, error) {
	const op = "Append"

	if len(image) == 0 {
		return models.SavedContact{}, -1, WrapStoreError(op, "", ErrNoImage)
	}
	img, err := preprocess.Decode(bytes.NewReader(image))
	if err != nil {
		return models.SavedContact{}, -1, WrapStoreError(op, "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load()
	if err != nil {
		return models.SavedContact{}, -1, err
	}

	imagePath, err := s.nextImagePath()
	if err != nil {
		return models.SavedContact{}, -1, WrapStoreError(op, s.ImagePath(), err)
	}
	if err := imaging.Save(img, imagePath); err != nil {
		return models.SavedContact{}, -1, WrapStoreError(op, imagePath, err)
	}

	saved := models.SavedContact{ContactRecord: record, ImagePath: imagePath}
	if err := s.save(append(contacts, saved)); err != nil {
		return models.SavedContact{}, -1, WrapStoreError(op, s.DataPath(), err)
	}

	s.log.Info().
		Str("name", record.Name).
		Str("image", imagePath).
		Int("index", len(contacts)).
		Msg("Contact saved")
	return saved, len(contacts), nil
}

// nextImagePath numbers the new image after the count of existing card_*
// files. Should that name already be taken (after manual deletions), the
// number is advanced until it is free.
func (s *Store) nextImagePath() (string, error) {
	entries, err := os.ReadDir(s.ImagePath())
	if err != nil {
		return "", err
	}

	taken := make(map[string]bool, len(entries))
	count := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), imagePrefix) {
			count++
			taken[entry.Name()] = true
		}
	}

	n := count + 1
	for taken[fmt.Sprintf("%s%d.png", imagePrefix, n)] {
		n++
	}
	return filepath.Join(s.ImagePath(), fmt.Sprintf("%s%d.png", imagePrefix, n)), nil
}

// Delete removes the row at index (0-based, file order) and returns it. The
// card image stays on disk.
func (s *Store) Delete(index int) (models.SavedContact, error) {
	const op = "Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load()
	if err != nil {
		return models.SavedContact{}, err
	}
	if index < 0 || index >= len(contacts) {
		return models.SavedContact{}, WrapStoreError(op, s.DataPath(),
			fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(contacts)))
	}

	removed := contacts[index]
	contacts = append(contacts[:index], contacts[index+1:]...)
	if err := s.save(contacts); err != nil {
		return models.SavedContact{}, WrapStoreError(op, s.DataPath(), err)
	}

	s.log.Info().Int("index", index).Str("name", removed.Name).Msg("Contact deleted")
	return removed, nil
}

// Get returns the row at index.
func (s *Store) Get(index int) (models.SavedContact, error) {
	contacts, err := s.Load()
	if err != nil {
		return models.SavedContact{}, err
	}
	if index < 0 || index >= len(contacts) {
		return models.SavedContact{}, WrapStoreError("Get", s.DataPath(),
			fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(contacts)))
	}
	return contacts[index], nil
}

// OpenImage opens the card image of the row at index. The file is looked up
// by name inside the image directory, whatever directory the row records.
func (s *Store) OpenImage(index int) (*os.File, models.SavedContact, error) {
	const op = "OpenImage"

	contact, err := s.Get(index)
	if err != nil {
		return nil, models.SavedContact{}, err
	}
	name := filepath.Base(filepath.Clean(contact.ImagePath))
	if contact.ImagePath == "" || name == "." || name == string(filepath.Separator) {
		return nil, contact, WrapStoreError(op, "", ErrImageMissing)
	}

	path := filepath.Join(s.ImagePath(), name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, contact, WrapStoreError(op, path, ErrImageMissing)
		}
		return nil, contact, WrapStoreError(op, path, err)
	}
	return f, contact, nil
}

// Stats counts the saved contacts and how many have each optional field.
func (s *Store) Stats() (Stats, error) {
	contacts, err := s.Load()
	if err != nil {
		return Stats{}, err
	}
	return Summarize(contacts), nil
}

// Summarize computes Stats for contacts. Whitespace-only values count as empty.
func Summarize(contacts []models.SavedContact) Stats {
	stats := Stats{Total: len(contacts)}
	filled := func(v string) int {
		if strings.TrimSpace(v) != "" {
			return 1
		}
		return 0
	}
	for _, c := range contacts {
		stats.WithEmail += filled(c.Email)
		stats.WithPhone += filled(c.Phone)
		stats.WithDesignation += filled(c.Designation)
		stats.WithCompany += filled(c.Company)
		stats.WithWebsite += filled(c.Website)
		stats.WithAddress += filled(c.Address)
	}
	return stats
}

// CSV returns the store as CSV bytes in the on-disk format. An empty store
// yields just the header.
func (s *Store) CSV() ([]byte, error) {
	contacts, err := s.Load()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeContacts(&buf, contacts); err != nil {
		return nil, WrapStoreError("CSV", s.DataPath(), err)
	}
	return buf.Bytes(), nil
}
