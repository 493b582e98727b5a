//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"cardreader/internal/logger"
)

// TesseractOCRService implements OCRService with a local Tesseract install.
// Each call uses its own gosseract client, so the service is safe for
// concurrent use.
type TesseractOCRService struct {
	config TesseractConfig
	log    zerolog.Logger
}

// NewTesseractOCRService creates a Tesseract backed OCR service.
func NewTesseractOCRService(config TesseractConfig) (OCRService, error) {
	if config.Language == "" {
		config.Language = "eng"
	}
	return &TesseractOCRService{
		config: config,
		log:    logger.WithComponent("ocr-tesseract"),
	}, nil
}

// ProcessImage extracts text from a card image.
func (t *TesseractOCRService) ProcessImage(ctx context.Context, imageData io.Reader) (string, error) {
	result, err := t.ProcessImageWithMetadata(ctx, imageData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata extracts text and the mean word confidence.
func (t *TesseractOCRService) ProcessImageWithMetadata(ctx context.Context, imageData io.Reader) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, _, err := readImage(op, imageData)
	if err != nil {
		return nil, withBackend(BackendTesseract, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, withBackend(BackendTesseract, WrapOCRError(op, err, "context done before recognition"))
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.config.Language); err != nil {
		return nil, withBackend(BackendTesseract, WrapOCRError(op, err, fmt.Sprintf("failed to set language %q", t.config.Language)))
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(t.config.PageSegMode)); err != nil {
		return nil, withBackend(BackendTesseract, WrapOCRError(op, err, fmt.Sprintf("failed to set page segmentation mode %d", t.config.PageSegMode)))
	}
	if err := client.SetImageFromBytes(content); err != nil {
		return nil, withBackend(BackendTesseract, WrapOCRError(op, ErrInvalidImage, err.Error()))
	}

	text, err := client.Text()
	if err != nil {
		return nil, withBackend(BackendTesseract, WrapOCRError(op, ErrOCRFailed, err.Error()))
	}

	result := &OCRResult{
		Backend:       BackendTesseract,
		Text:          text,
		LanguageCodes: []string{t.config.Language},
	}

	// Word confidence is informational; a failure here does not fail the scan.
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		var sum float64
		for _, box := range boxes {
			sum += box.Confidence
		}
		result.Confidence = float32(sum / float64(len(boxes)) / 100)
	} else if err != nil {
		t.log.Debug().Err(err).Msg("Word confidence unavailable")
	}

	result, err = finish(result, startTime)
	if err != nil {
		return nil, withBackend(BackendTesseract, WrapOCRError(op, err, "tesseract returned no text"))
	}

	t.log.Debug().
		Str("language", t.config.Language).
		Int("psm", t.config.PageSegMode).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Tesseract OCR completed")

	return result, nil
}

// Close is a no-op; clients are released after every call.
func (t *TesseractOCRService) Close() error {
	return nil
}
