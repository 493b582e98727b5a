package store

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardreader/internal/preprocess"
	"cardreader/pkg/models"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func cardImage(t *testing.T, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(30, 20, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cards"))
	require.NoError(t, err)
	return s
}

var (
	john = models.ContactRecord{
		Name:        "John Smith",
		Email:       "john.smith@acmesolutions.com",
		Phone:       "+919876543210",
		Website:     "acmesolutions.com",
		Company:     "Acmesolutions",
		Designation: "Senior Software Engineer",
		Address:     "12 MG Road, Sector 5, Bangalore 560001",
	}
	anita = models.ContactRecord{
		Name:  "Anita Rao",
		Phone: "9845012345",
	}
)

func TestOpen_CreatesLayout(t *testing.T) {
	s := openStore(t)

	info, err := os.Stat(s.ImagePath())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	contacts, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, contacts)

	_, err = Open("")
	assert.Error(t, err)
}

func TestAppendAndLoad(t *testing.T) {
	s := openStore(t)

	first, index, err := s.Append(john, cardImage(t, imaging.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, filepath.Join(s.ImagePath(), "card_1.png"), first.ImagePath)

	second, index, err := s.Append(anita, cardImage(t, imaging.PNG))
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, filepath.Join(s.ImagePath(), "card_2.png"), second.ImagePath)

	saved, err := os.ReadFile(first.ImagePath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(saved, []byte("\x89PNG")), "images are stored as PNG")

	contacts, err := s.Load()
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, john, contacts[0].ContactRecord)
	assert.Equal(t, anita, contacts[1].ContactRecord)
	assert.Equal(t, second.ImagePath, contacts[1].ImagePath)
}

func TestAppend_ConcurrentIndexes(t *testing.T) {
	s := openStore(t)
	img := cardImage(t, imaging.PNG)

	const n = 8
	var wg sync.WaitGroup
	indexes := make([]int, n)
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			saved, index, err := s.Append(models.ContactRecord{Name: fmt.Sprintf("Contact %d", i)}, img)
			assert.NoError(t, err)
			indexes[i] = index
			paths[i] = saved.ImagePath
		}(i)
	}
	wg.Wait()

	contacts, err := s.Load()
	require.NoError(t, err)
	require.Len(t, contacts, n)

	// Every caller gets the row its own contact landed in.
	seen := map[int]bool{}
	for i := 0; i < n; i++ {
		assert.False(t, seen[indexes[i]], "index %d reported twice", indexes[i])
		seen[indexes[i]] = true
		assert.Equal(t, fmt.Sprintf("Contact %d", i), contacts[indexes[i]].Name)
		assert.Equal(t, paths[i], contacts[indexes[i]].ImagePath)
	}
}

func TestAppend_ImageNumbering(t *testing.T) {
	s := openStore(t)

	// A stray card_2.png and a non-card file already exist.
	require.NoError(t, os.WriteFile(filepath.Join(s.ImagePath(), "card_2.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.ImagePath(), "notes.txt"), []byte("x"), 0o644))

	saved, _, err := s.Append(john, cardImage(t, imaging.PNG))
	require.NoError(t, err)
	assert.Equal(t, "card_3.png", filepath.Base(saved.ImagePath))
}

func TestAppend_RejectsBadImages(t *testing.T) {
	s := openStore(t)

	_, _, err := s.Append(john, nil)
	assert.ErrorIs(t, err, ErrNoImage)

	_, _, err = s.Append(john, []byte("not an image"))
	assert.ErrorIs(t, err, preprocess.ErrUnsupportedImage)

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "Append", storeErr.Op)

	contacts, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestDelete(t *testing.T) {
	s := openStore(t)
	_, _, err := s.Append(john, cardImage(t, imaging.PNG))
	require.NoError(t, err)
	_, _, err = s.Append(anita, cardImage(t, imaging.PNG))
	require.NoError(t, err)

	removed, err := s.Delete(0)
	require.NoError(t, err)
	assert.Equal(t, "John Smith", removed.Name)

	// The image of a deleted row is kept.
	_, err = os.Stat(removed.ImagePath)
	assert.NoError(t, err)

	contacts, err := s.Load()
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Anita Rao", contacts[0].Name)

	_, err = s.Delete(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.Delete(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestGet(t *testing.T) {
	s := openStore(t)
	_, _, err := s.Append(anita, cardImage(t, imaging.PNG))
	require.NoError(t, err)

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, anita, got.ContactRecord)

	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestOpenImage(t *testing.T) {
	s := openStore(t)
	saved, _, err := s.Append(anita, cardImage(t, imaging.PNG))
	require.NoError(t, err)

	f, got, err := s.OpenImage(0)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, saved.ImagePath, got.ImagePath)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	_, _, err = s.OpenImage(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	require.NoError(t, os.Remove(saved.ImagePath))
	_, _, err = s.OpenImage(0)
	assert.ErrorIs(t, err, ErrImageMissing)
}

func TestOpenImage_StaysInImageDir(t *testing.T) {
	s := openStore(t)
	outside := filepath.Join(s.Dir(), "secret.png")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, writeContacts(&buf, []models.SavedContact{
		{ContactRecord: anita, ImagePath: "../secret.png"},
	}))
	require.NoError(t, os.WriteFile(s.DataPath(), buf.Bytes(), 0o644))

	_, _, err := s.OpenImage(0)
	assert.ErrorIs(t, err, ErrImageMissing)
}

func TestStats(t *testing.T) {
	s := openStore(t)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	_, _, err = s.Append(john, cardImage(t, imaging.PNG))
	require.NoError(t, err)
	_, _, err = s.Append(anita, cardImage(t, imaging.PNG))
	require.NoError(t, err)

	stats, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Total:           2,
		WithEmail:       1,
		WithPhone:       2,
		WithDesignation: 1,
		WithCompany:     1,
		WithWebsite:     1,
		WithAddress:     1,
	}, stats)
}

func TestSummarize_BlankIsEmpty(t *testing.T) {
	stats := Summarize([]models.SavedContact{
		{ContactRecord: models.ContactRecord{Email: "  ", Phone: "9845012345"}},
	})
	assert.Equal(t, 0, stats.WithEmail)
	assert.Equal(t, 1, stats.WithPhone)
}

func TestCSV(t *testing.T) {
	s := openStore(t)

	data, err := s.CSV()
	require.NoError(t, err)
	assert.Equal(t, "Name,Email,Phone,Designation,Company,Website,Address,Image_Path\n", string(data))

	saved, _, err := s.Append(john, cardImage(t, imaging.PNG))
	require.NoError(t, err)

	data, err = s.CSV()
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `John Smith,john.smith@acmesolutions.com,+919876543210,Senior Software Engineer,Acmesolutions,acmesolutions.com,"12 MG Road, Sector 5, Bangalore 560001",`+saved.ImagePath, lines[1])

	onDisk, err := os.ReadFile(s.DataPath())
	require.NoError(t, err)
	assert.Equal(t, onDisk, data)
}

func TestReadContacts_ByHeaderName(t *testing.T) {
	in := "\ufeffEmail,Name,Extra,Phone\n" +
		"a@b.com,Asha,ignored,9876543210\n" +
		"c@d.com,Chen\n"

	contacts, err := readContacts(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Asha", contacts[0].Name)
	assert.Equal(t, "a@b.com", contacts[0].Email)
	assert.Equal(t, "9876543210", contacts[0].Phone)
	assert.Equal(t, "", contacts[1].Phone)
	assert.Equal(t, "", contacts[0].ImagePath)
}

func TestReadContacts_Corrupt(t *testing.T) {
	_, err := readContacts(strings.NewReader("Name,Email\n\"unterminated,x\n"))
	assert.ErrorIs(t, err, ErrCorruptStore)

	contacts, err := readContacts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, contacts)
}
