package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cardreader/internal/export"
	"cardreader/internal/logger"
	"cardreader/internal/sheets"
	"cardreader/internal/store"
	"cardreader/pkg/models"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage saved contacts in the card store",
	Long: `List, delete, summarize, export and sync the contacts saved with
"cardreader scan --save" or the web API.

The card store lives in $CARDS_DATA_DIR (default visiting_cards_data): a
cards_data.csv file plus the card images under saved_cards/.`,
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved contacts",
	Args:  cobra.NoArgs,
	RunE:  runContactsList,
}

var contactsDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete a saved contact by its index",
	Long: `Delete the contact at the given 0-based index, as shown by "contacts list".

The card image is kept on disk. Deleting requires --yes.`,
	Args: cobra.ExactArgs(1),
	RunE: runContactsDelete,
}

var contactsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many saved contacts have each field",
	Args:  cobra.NoArgs,
	RunE:  runContactsStats,
}

var contactsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved contacts as CSV, XLSX or vCard",
	Long: `Export every saved contact.

Examples:
  cardreader contacts export --format csv -o contacts.csv
  cardreader contacts export --format xlsx -o contacts.xlsx
  cardreader contacts export --format vcf -o contacts.vcf`,
	Args: cobra.NoArgs,
	RunE: runContactsExport,
}

var contactsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Append saved contacts to Google Sheets",
	Long: `Append saved contacts to the spreadsheet in GOOGLE_SHEET_URL.

The worksheet is created with a bold header row when missing. Contacts whose
email already appears in the sheet are skipped.`,
	Args: cobra.NoArgs,
	RunE: runContactsPush,
}

var (
	listJSON     bool
	deleteYes    bool
	statsJSON    bool
	exportFormat string
	exportOutput string
	pushSheet    string
	pushTimeout  int
)

func init() {
	rootCmd.AddCommand(contactsCmd)
	contactsCmd.AddCommand(contactsListCmd, contactsDeleteCmd, contactsStatsCmd, contactsExportCmd, contactsPushCmd)

	contactsListCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")

	contactsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Confirm the deletion")

	contactsStatsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")

	contactsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format: csv, xlsx or vcf")
	contactsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")

	contactsPushCmd.Flags().StringVar(&pushSheet, "sheet", "", "Worksheet name (default: $GOOGLE_SHEET_WORKSHEET)")
	contactsPushCmd.Flags().IntVar(&pushTimeout, "timeout", 60, "Timeout in seconds for the Sheets API")
}

func contactsStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openStore(cfg, logger.WithComponent("contacts"))
}

func runContactsList(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("contacts")

	st, err := contactsStore(cmd)
	if err != nil {
		return err
	}
	contacts, err := st.Load()
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}

	if listJSON {
		if contacts == nil {
			contacts = []models.SavedContact{}
		}
		data, err := json.MarshalIndent(contacts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return writeOutput(cmd, "", append(data, '\n'), log)
	}

	if len(contacts) == 0 {
		return writeOutput(cmd, "", []byte("No contacts saved yet.\n"), log)
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tCOMPANY\tEMAIL\tPHONE")
	for i, c := range contacts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, dash(c.Name), dash(c.Company), dash(c.Email), dash(c.Phone))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writeOutput(cmd, "", buf.Bytes(), log)
}

func runContactsDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("contacts")

	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 {
		return fmt.Errorf("invalid index %q: must be a non-negative number", args[0])
	}
	if !deleteYes {
		return fmt.Errorf("refusing to delete contact #%d without --yes", index)
	}

	st, err := contactsStore(cmd)
	if err != nil {
		return err
	}
	removed, err := st.Delete(index)
	if err != nil {
		return fmt.Errorf("failed to delete contact #%d: %w", index, err)
	}

	log.Info().Int("index", index).Str("name", removed.Name).Msg("Contact deleted")
	return writeOutput(cmd, "", []byte(fmt.Sprintf("Deleted contact #%d (%s)\n", index, dash(removed.Name))), log)
}

func runContactsStats(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("contacts")

	st, err := contactsStore(cmd)
	if err != nil {
		return err
	}
	stats, err := st.Stats()
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return writeOutput(cmd, "", append(data, '\n'), log)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total contacts:   %d\n", stats.Total)
	fmt.Fprintf(&b, "With email:       %d\n", stats.WithEmail)
	fmt.Fprintf(&b, "With phone:       %d\n", stats.WithPhone)
	fmt.Fprintf(&b, "With designation: %d\n", stats.WithDesignation)
	fmt.Fprintf(&b, "With company:     %d\n", stats.WithCompany)
	fmt.Fprintf(&b, "With website:     %d\n", stats.WithWebsite)
	fmt.Fprintf(&b, "With address:     %d\n", stats.WithAddress)
	return writeOutput(cmd, "", []byte(b.String()), log)
}

func runContactsExport(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("contacts")

	st, err := contactsStore(cmd)
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(exportFormat) {
	case "csv":
		data, err = st.CSV()
	case "xlsx":
		data, err = exportWith(st, export.WriteXLSX)
	case "vcf", "vcard":
		data, err = exportWith(st, export.WriteVCards)
	default:
		return fmt.Errorf("unknown export format %q: use csv, xlsx or vcf", exportFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to export contacts: %w", err)
	}

	log.Debug().Str("format", exportFormat).Int("bytes", len(data)).Msg("Contacts exported")
	return writeOutput(cmd, exportOutput, data, log)
}

func exportWith(st *store.Store, write func(io.Writer, []models.SavedContact) error) ([]byte, error) {
	contacts, err := st.Load()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := write(&buf, contacts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func runContactsPush(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("contacts")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.HasSheets() {
		return fmt.Errorf("GOOGLE_SHEET_URL is not set")
	}
	sheetName := pushSheet
	if sheetName == "" {
		sheetName = cfg.GoogleSheetWorksheet
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	contacts, err := st.Load()
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}
	if len(contacts) == 0 {
		return writeOutput(cmd, "", []byte("No contacts to push.\n"), log)
	}

	ctx, cancel := createContextWithTimeout(pushTimeout, log)
	defer cancel()

	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}
	result, err := svc.Push(ctx, sheetName, contacts)
	if err != nil {
		return fmt.Errorf("failed to push contacts: %w", err)
	}

	msg := fmt.Sprintf("Pushed %d contact(s) to %q, skipped %d already present\n", result.Appended, sheetName, result.Skipped)
	return writeOutput(cmd, "", []byte(msg), log)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
