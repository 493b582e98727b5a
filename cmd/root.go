package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cardreader/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "cardreader",
	Short: "cardreader - turn photos of visiting cards into contacts",
	Long: `cardreader reads photographs of business cards with OCR and extracts
the contact on them: name, designation, company, email, phone, website
and address.

Scanned contacts can be saved to a local card store (a CSV file plus the
card images), exported as vCard, CSV or XLSX, pushed to Google Sheets, or
reviewed through the built-in web API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "Card store directory (default: $CARDS_DATA_DIR or visiting_cards_data)")
}
