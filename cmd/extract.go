package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cardreader/internal/extract"
	"cardreader/internal/logger"
	"cardreader/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text-file|-]",
	Short: "Extract contact fields from already-recognized card text",
	Long: `Run the field extraction heuristics on plain text, without OCR.

The text is read from the given file, or from stdin when the argument is
"-" or missing. Output is the contact as JSON.

Examples:
  cardreader extract card.txt
  pbpaste | cardreader extract -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

var extractOutput string

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output file path (default: stdout)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	var (
		text []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		text, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), ocr.MaxFileSizeBytes))
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read text")
		return fmt.Errorf("failed to read text: %w", err)
	}

	record := extract.NewWithLogger(log).ExtractAllFields(ocr.Normalize(string(text)))

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return writeOutput(cmd, extractOutput, append(data, '\n'), log)
}
