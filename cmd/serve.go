package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cardreader/internal/completion"
	"cardreader/internal/extract"
	"cardreader/internal/logger"
	"cardreader/internal/preprocess"
	"cardreader/internal/server"
	"cardreader/internal/session"
	"cardreader/internal/sheets"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the card reader JSON API",
	Long: `Serve the web API: upload a card photo, review and edit the extracted
contact in a session, save it to the card store, and list, export, delete
or push saved contacts.

Sessions are identified by the X-Session-ID header or the
cardreader_session cookie and are kept in memory.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr        string
	serveScanTimeout int
	serveSessionTTL  time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: $HTTP_ADDR or :8000)")
	serveCmd.Flags().IntVar(&serveScanTimeout, "scan-timeout", 90, "Timeout in seconds for OCR and completion of one card")
	serveCmd.Flags().DurationVar(&serveSessionTTL, "session-ttl", session.DefaultTTL, "Idle time after which a session is dropped")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTPAddr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ocrService, err := createOCRService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ocrService.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR service")
		}
	}()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	deps := server.Deps{
		OCR:          ocrService,
		Preprocessor: preprocess.New(cfg.PreprocessImages),
		Extractor:    extract.NewWithLogger(logger.WithComponent("extract")),
		Store:        st,
		Sessions:     session.NewManager(serveSessionTTL),
		SheetName:    cfg.GoogleSheetWorksheet,
	}

	if cfg.HasCompletion() {
		completer, err := completion.NewService(cfg.OpenAIAPIKey, completion.Config{
			Model:       cfg.OpenAIModel,
			Temperature: cfg.OpenAITemperature,
			MaxRetries:  cfg.CompletionMaxRetries,
		})
		if err != nil {
			return fmt.Errorf("failed to create completion service: %w", err)
		}
		deps.Completer = completer
	} else {
		log.Info().Msg("OPENAI_API_KEY not set, field completion disabled")
	}

	if cfg.HasSheets() {
		pusher, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			// The rest of the API is still useful without Sheets.
			log.Warn().Err(err).Msg("Google Sheets unavailable, push disabled")
		} else {
			deps.Pusher = pusher
		}
	}

	opts := server.DefaultOptions(cfg.HTTPAddr)
	opts.ScanTimeout = time.Duration(serveScanTimeout) * time.Second

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("backend", cfg.OCRBackend).
		Str("data_dir", st.Dir()).
		Bool("completion", deps.Completer != nil).
		Bool("sheets", deps.Pusher != nil).
		Msg("Starting card reader API")

	return server.New(deps, opts).ListenAndServe(ctx)
}
