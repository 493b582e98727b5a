// Package ocr turns visiting-card images into raw text.
//
// Three engines are supported behind the OCRService interface:
//
//   - Google Cloud Vision document text detection ("vision")
//   - Google Document AI OCR processor ("documentai")
//   - Tesseract via gosseract ("tesseract", needs the "tesseract" build tag)
//
// Required Environment Variables for the Google engines:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID (Document AI)
//
// Text returned by every engine is passed through Normalize, so callers see
// "\n"-separated lines in the engine's layout.
package ocr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxFileSizeBytes is the maximum image size accepted for OCR (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024
)

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// ProcessImage extracts the text of a card image.
	ProcessImage(ctx context.Context, imageData io.Reader) (string, error)

	// ProcessImageWithMetadata extracts the text of a card image together with
	// confidence and processing information.
	ProcessImageWithMetadata(ctx context.Context, imageData io.Reader) (*OCRResult, error)

	// Close releases the engine's resources.
	Close() error
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the normalized text read from the image.
	Text string `json:"text"`

	// Backend is the engine that produced the text.
	Backend string `json:"backend"`

	// Confidence is the average confidence score across all detected text (0.0 to 1.0).
	// Zero when the engine does not report confidence.
	Confidence float32 `json:"confidence"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// LanguageCodes contains the detected languages in the image.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Options selects and configures an OCR engine.
type Options struct {
	Backend string

	// Document AI
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string

	// Tesseract
	Language    string
	PageSegMode int
}

// TesseractConfig holds configuration for the local Tesseract engine.
type TesseractConfig struct {
	// Language is the tesseract language code, "eng" when empty.
	Language string

	// PageSegMode is tesseract's --psm value. 6 treats the card as a single
	// uniform block of text.
	PageSegMode int
}

// New creates the OCR service named by opts.Backend.
func New(ctx context.Context, opts Options) (OCRService, error) {
	const op = "New"

	switch opts.Backend {
	case "", BackendVision:
		return NewGoogleVisionOCRService(ctx)
	case BackendDocumentAI:
		return NewDocumentAIOCRService(ctx, DocumentAIConfig{
			ProjectID:        opts.ProjectID,
			Location:         opts.Location,
			ProcessorID:      opts.ProcessorID,
			ProcessorVersion: opts.ProcessorVersion,
		})
	case BackendTesseract:
		return NewTesseractOCRService(TesseractConfig{
			Language:    opts.Language,
			PageSegMode: opts.PageSegMode,
		})
	default:
		return nil, WrapOCRError(op, ErrUnknownBackend, fmt.Sprintf("backend %q", opts.Backend))
	}
}

// readImage reads an image fully and checks its size and type. It returns the
// bytes and the detected MIME type.
func readImage(op string, imageData io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(imageData, MaxFileSizeBytes+1))
	if err != nil {
		return nil, "", WrapOCRError(op, err, "failed to read image data")
	}

	if len(data) > MaxFileSizeBytes {
		return nil, "", WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("more than %d bytes", MaxFileSizeBytes))
	}
	if len(data) == 0 {
		return nil, "", WrapOCRError(op, ErrInvalidImage, "empty image")
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", WrapOCRError(op, ErrInvalidImage, fmt.Sprintf("detected content type %s", mimeType))
	}

	return data, mimeType, nil
}

// finish normalizes text and fills the timing fields of a result.
func finish(result *OCRResult, startTime time.Time) (*OCRResult, error) {
	result.Text = Normalize(result.Text)
	if result.Text == "" {
		return nil, ErrEmptyDocument
	}
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)
	return result, nil
}
