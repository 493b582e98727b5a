package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cardreader/internal/completion"
	"cardreader/internal/config"
	"cardreader/internal/export"
	"cardreader/internal/extract"
	"cardreader/internal/logger"
	"cardreader/internal/preprocess"
	"cardreader/pkg/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image-file>",
	Short: "Read a visiting card photo and extract the contact",
	Long: `Run OCR on a photo of a visiting card and extract the contact fields.

The photo is enhanced (grayscale, contrast, sharpen, upscaling of small
images) before it is sent to the OCR engine selected by OCR_BACKEND or
--backend: Google Cloud Vision (default), Google Document AI, or a local
Tesseract when the binary was built with -tags tesseract.

Supported formats: JPEG, PNG, GIF, BMP, TIFF and WebP (maximum 20MB).

Examples:
  cardreader scan card.jpg
  cardreader scan card.jpg --json -o contact.json
  cardreader scan card.jpg --vcard -o contact.vcf
  cardreader scan card.jpg --complete --save`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var (
	scanSave         bool
	scanComplete     bool
	scanVCard        bool
	scanJSON         bool
	scanRaw          bool
	scanOutput       string
	scanTimeout      int
	scanBackend      string
	scanNoPreprocess bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Save the contact and card image to the card store")
	scanCmd.Flags().BoolVar(&scanComplete, "complete", false, "Ask OpenAI to fill fields the heuristics left empty (needs OPENAI_API_KEY)")
	scanCmd.Flags().BoolVar(&scanVCard, "vcard", false, "Output the contact as a vCard")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output as JSON")
	scanCmd.Flags().BoolVar(&scanRaw, "raw", false, "Include the raw OCR text in the output")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 120, "Timeout in seconds for OCR and completion")
	scanCmd.Flags().StringVar(&scanBackend, "backend", "", "OCR engine: vision, documentai or tesseract (default: $OCR_BACKEND)")
	scanCmd.Flags().BoolVar(&scanNoPreprocess, "no-preprocess", false, "Send the image to OCR without enhancement")
}

// scanOutputJSON is the --json document.
type scanOutputJSON struct {
	Contact    models.ContactRecord `json:"contact"`
	RawText    string               `json:"raw_text,omitempty"`
	Backend    string               `json:"backend"`
	Confidence float32              `json:"confidence,omitempty"`
	Languages  []string             `json:"languages,omitempty"`
	Completed  []string             `json:"completed_fields,omitempty"`
	SavedIndex *int                 `json:"saved_index,omitempty"`
	ImagePath  string               `json:"image_path,omitempty"`
	DurationMs int64                `json:"duration_ms"`
}

func runScan(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	log := logger.WithFields(map[string]interface{}{
		"component": "scan",
		"file":      filepath.Base(imagePath),
	})

	if scanVCard && scanJSON {
		return fmt.Errorf("--vcard and --json cannot be combined")
	}
	if scanTimeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}

	log.Info().
		Str("path", imagePath).
		Bool("save", scanSave).
		Bool("complete", scanComplete).
		Int("timeout_secs", scanTimeout).
		Msg("Starting card scan")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if scanBackend != "" {
		cfg.OCRBackend = strings.ToLower(scanBackend)
	}
	if scanNoPreprocess {
		cfg.PreprocessImages = false
	}

	if _, err := validateImageFile(imagePath, log); err != nil {
		return err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	ctx, cancel := createContextWithTimeout(scanTimeout, log)
	defer cancel()

	service, err := createOCRService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := service.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR service")
		}
	}()

	prepared := preprocess.New(cfg.PreprocessImages).Process(data)

	result, err := service.ProcessImageWithMetadata(ctx, bytes.NewReader(prepared))
	if err != nil {
		return handleOCRError(err, log)
	}

	record := extract.NewWithLogger(log).ExtractAllFields(result.Text)

	var completed []string
	if scanComplete {
		record, completed, err = completeRecord(ctx, cfg, result.Text, record)
		if err != nil {
			return err
		}
	}

	out := scanOutputJSON{
		Contact:    record,
		Backend:    result.Backend,
		Confidence: result.Confidence,
		Languages:  result.LanguageCodes,
		Completed:  completed,
		DurationMs: result.ProcessingDuration.Milliseconds(),
	}
	if scanRaw {
		out.RawText = result.Text
	}

	if scanSave {
		saved, index, err := saveScanned(cfg, record, data)
		if err != nil {
			return err
		}
		out.SavedIndex = &index
		out.ImagePath = saved.ImagePath
	}

	log.Info().
		Str("backend", result.Backend).
		Int("text_length", len(result.Text)).
		Int("fields_found", filledFields(record)).
		Dur("duration", result.ProcessingDuration).
		Msg("Card scan completed")

	rendered, err := renderScan(out)
	if err != nil {
		return err
	}
	return writeOutput(cmd, scanOutput, rendered, log)
}

func completeRecord(ctx context.Context, cfg *config.Config, rawText string, record models.ContactRecord) (models.ContactRecord, []string, error) {
	log := logger.WithComponent("scan")

	if !cfg.HasCompletion() {
		return record, nil, fmt.Errorf("--complete needs OPENAI_API_KEY to be set: %w", completion.ErrNoAPIKey)
	}
	svc, err := completion.NewService(cfg.OpenAIAPIKey, completion.Config{
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		MaxRetries:  cfg.CompletionMaxRetries,
	})
	if err != nil {
		return record, nil, err
	}

	completed, filled, err := svc.Complete(ctx, rawText, record)
	if err != nil {
		// Heuristic fields are still worth reporting.
		log.Warn().Err(err).Msg("Field completion failed, keeping extracted fields")
		return record, nil, nil
	}
	return completed, filled, nil
}

func saveScanned(cfg *config.Config, record models.ContactRecord, image []byte) (models.SavedContact, int, error) {
	log := logger.WithComponent("scan")

	if record.IsEmpty() {
		return models.SavedContact{}, 0, fmt.Errorf("nothing to save: no contact fields were found on the card")
	}
	st, err := openStore(cfg, log)
	if err != nil {
		return models.SavedContact{}, 0, err
	}
	saved, index, err := st.Append(record, image)
	if err != nil {
		return models.SavedContact{}, 0, fmt.Errorf("failed to save contact: %w", err)
	}
	return saved, index, nil
}

func renderScan(out scanOutputJSON) ([]byte, error) {
	switch {
	case scanJSON:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case scanVCard:
		return []byte(export.VCard(out.Contact)), nil
	}

	var b strings.Builder
	b.WriteString(formatContact(out.Contact))
	if len(out.Completed) > 0 {
		fmt.Fprintf(&b, "\nCompleted by OpenAI: %s\n", strings.Join(out.Completed, ", "))
	}
	if out.SavedIndex != nil {
		fmt.Fprintf(&b, "\nSaved as contact #%d (image %s)\n", *out.SavedIndex, filepath.Base(out.ImagePath))
	}
	if out.RawText != "" {
		fmt.Fprintf(&b, "\n--- OCR text (%s, %s) ---\n%s\n", out.Backend,
			(time.Duration(out.DurationMs) * time.Millisecond).String(), out.RawText)
	}
	return []byte(b.String()), nil
}

var contactLabels = []struct {
	label string
	value func(models.ContactRecord) string
}{
	{"Name", func(c models.ContactRecord) string { return c.Name }},
	{"Designation", func(c models.ContactRecord) string { return c.Designation }},
	{"Company", func(c models.ContactRecord) string { return c.Company }},
	{"Email", func(c models.ContactRecord) string { return c.Email }},
	{"Phone", func(c models.ContactRecord) string { return c.Phone }},
	{"Website", func(c models.ContactRecord) string { return c.Website }},
	{"Address", func(c models.ContactRecord) string { return c.Address }},
}

func filledFields(c models.ContactRecord) int {
	n := 0
	for _, v := range c.Fields() {
		if v != "" {
			n++
		}
	}
	return n
}

// formatContact renders a record as aligned "Label: value" lines. Empty
// fields are shown as "-".
func formatContact(c models.ContactRecord) string {
	var b strings.Builder
	for _, l := range contactLabels {
		v := l.value(c)
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "%-12s %s\n", l.label+":", v)
	}
	return b.String()
}
