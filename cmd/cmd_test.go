package cmd

import (
	"bytes"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardreader/internal/store"
	"cardreader/pkg/models"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

const anitaCard = `Anita Rao
Marketing Director
anita.rao@blue-orbit.in
Mob: 98450 12345
4th Floor, Prestige Towers, 99 Residency Road
Bangalore 560025`

// run executes the root command with args and returns what it wrote.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	listJSON, deleteYes, statsJSON = false, false, false
	exportFormat, exportOutput, extractOutput = "csv", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func seedStore(t *testing.T, records ...models.ContactRecord) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "cards")
	st, err := store.Open(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	img := imaging.New(20, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	for _, r := range records {
		_, _, err := st.Append(r, buf.Bytes())
		require.NoError(t, err)
	}
	return dir
}

var (
	anita = models.ContactRecord{Name: "Anita Rao", Email: "anita.rao@blue-orbit.in", Phone: "9845012345", Company: "Blue Orbit", Website: "blue-orbit.in"}
	ravi  = models.ContactRecord{Name: "Ravi Kumar", Phone: "9876543210"}
)

func TestExtract_Stdin(t *testing.T) {
	out, err := run(t, anitaCard, "extract", "-")
	require.NoError(t, err)

	var rec models.ContactRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "Anita Rao", rec.Name)
	assert.Equal(t, "Marketing Director", rec.Designation)
	assert.Equal(t, "anita.rao@blue-orbit.in", rec.Email)
	assert.Equal(t, "9845012345", rec.Phone)
	assert.Equal(t, "Blue Orbit", rec.Company)
}

func TestExtract_FileToOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "card.txt")
	outPath := filepath.Join(dir, "contact.json")
	require.NoError(t, os.WriteFile(in, []byte(anitaCard), 0o644))

	out, err := run(t, "", "extract", in, "-o", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"website": "blue-orbit.in"`)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := run(t, "", "extract", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestContactsList(t *testing.T) {
	dir := seedStore(t, anita, ravi)

	out, err := run(t, "", "contacts", "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Anita Rao")
	assert.Contains(t, out, "Ravi Kumar")

	out, err = run(t, "", "contacts", "list", "--json", "--data-dir", dir)
	require.NoError(t, err)
	var saved []models.SavedContact
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "Blue Orbit", saved[0].Company)
	assert.True(t, strings.HasSuffix(saved[1].ImagePath, "card_2.png"))
}

func TestContactsList_Empty(t *testing.T) {
	out, err := run(t, "", "contacts", "list", "--data-dir", filepath.Join(t.TempDir(), "empty"))
	require.NoError(t, err)
	assert.Equal(t, "No contacts saved yet.\n", out)
}

func TestContactsStats(t *testing.T) {
	dir := seedStore(t, anita, ravi)

	out, err := run(t, "", "contacts", "stats", "--json", "--data-dir", dir)
	require.NoError(t, err)

	var stats store.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.WithEmail)
	assert.Equal(t, 2, stats.WithPhone)
}

func TestContactsDelete(t *testing.T) {
	dir := seedStore(t, anita, ravi)

	_, err := run(t, "", "contacts", "delete", "0", "--data-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err := run(t, "", "contacts", "delete", "0", "--yes", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Anita Rao")

	_, err = run(t, "", "contacts", "delete", "5", "--yes", "--data-dir", dir)
	assert.ErrorIs(t, err, store.ErrIndexOutOfRange)

	out, err = run(t, "", "contacts", "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "Anita Rao")
	assert.Contains(t, out, "Ravi Kumar")
}

func TestContactsExport(t *testing.T) {
	dir := seedStore(t, anita)

	out, err := run(t, "", "contacts", "export", "--format", "csv", "--data-dir", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Name,Email,Phone"))

	out, err = run(t, "", "contacts", "export", "--format", "vcf", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "FN:Anita Rao\r\n")

	xlsx := filepath.Join(t.TempDir(), "contacts.xlsx")
	_, err = run(t, "", "contacts", "export", "-f", "xlsx", "-o", xlsx, "--data-dir", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))

	_, err = run(t, "", "contacts", "export", "--format", "pdf", "--data-dir", dir)
	assert.Error(t, err)
}

func TestScan_RejectsMissingFile(t *testing.T) {
	_, err := run(t, "", "scan", filepath.Join(t.TempDir(), "card.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormatContact(t *testing.T) {
	got := formatContact(ravi)
	assert.Contains(t, got, "Name:        Ravi Kumar\n")
	assert.Contains(t, got, "Email:       -\n")
	assert.Equal(t, 7, strings.Count(got, "\n"))
}
