package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cardreader/internal/config"
	"cardreader/internal/ocr"
	"cardreader/internal/preprocess"
	"cardreader/internal/store"
)

// loadConfig reads the environment configuration and applies the persistent
// --data-dir flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func openStore(cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open card store")
		return nil, fmt.Errorf("failed to open card store: %w", err)
	}
	return st, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// validateImageFile checks that path is a readable, non-empty image file of
// acceptable size.
func validateImageFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("Image file exceeds maximum size limit")
		return nil, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	return fileInfo, nil
}

// createOCRService creates the OCR engine selected by the configuration.
func createOCRService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.OCRService, error) {
	opts := cfg.OCROptions()

	if opts.Backend != ocr.BackendTesseract {
		hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
		if !hasCredentials {
			log.Warn().Str("backend", opts.Backend).Msg("No Google Cloud credentials in environment, trying application default credentials")
		}
	}

	service, err := ocr.New(ctx, opts)
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n"+
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n"+
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
				"2. Export GOOGLE_CREDENTIALS with inline JSON:\n"+
				"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n"+
				"3. Use Application Default Credentials (if gcloud is configured):\n"+
				"   gcloud auth application-default login\n\n"+
				"Or use the local engine with --backend tesseract.\n\n"+
				"Original error: %w", err)
		case errors.Is(err, ocr.ErrTesseractNotEnabled):
			return nil, fmt.Errorf("this build has no Tesseract support; rebuild with `go build -tags tesseract` (needs libtesseract) or choose --backend vision: %w", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().Str("backend", opts.Backend).Msg("OCR service created successfully")
	return service, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a smaller photo")
	case errors.Is(err, ocr.ErrInvalidImage), errors.Is(err, preprocess.ErrUnsupportedImage):
		return fmt.Errorf("invalid or unsupported image. Use a JPEG, PNG, GIF, BMP, TIFF or WebP photo of the card")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no text found in the image. Try a sharper, well-lit photo of the card")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "auth:") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS. Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED") ||
		strings.Contains(errStr, "permission"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account may use the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud OCR quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

// writeOutput writes data to path, or to cmd's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte, log zerolog.Logger) error {
	if path == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error().Err(err).Str("output_file", path).Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("output_file", path).Int("bytes", len(data)).Msg("Output written to file")
	return nil
}
