package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrImageTooLarge is returned when the image exceeds the maximum file size limit.
	ErrImageTooLarge = errors.New("image file size exceeds the maximum limit (20MB)")

	// ErrInvalidImage is returned when the provided data is not a supported image.
	ErrInvalidImage = errors.New("invalid or unsupported image")

	// ErrOCRFailed is returned when the OCR engine fails to process the image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrEmptyDocument is returned when no text was found in the image.
	ErrEmptyDocument = errors.New("no text found in the image")

	// ErrUnknownBackend is returned for an OCR backend name that is not supported.
	ErrUnknownBackend = errors.New("unknown OCR backend")

	// ErrTesseractNotEnabled is returned when the tesseract backend is requested
	// from a binary built without the "tesseract" build tag.
	ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "ProcessImage", "NewDocumentAIOCRService").
	Op string

	// Backend is the OCR engine that was used, when known.
	Backend string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	op := e.Op
	if e.Backend != "" {
		op = e.Backend + "." + e.Op
	}
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

// withBackend tags an OCRError with the backend that produced it.
func withBackend(backend string, err error) error {
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) && ocrErr.Backend == "" {
		ocrErr.Backend = backend
	}
	return err
}
