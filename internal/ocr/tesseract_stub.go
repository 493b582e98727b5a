//go:build !tesseract

package ocr

// NewTesseractOCRService reports ErrTesseractNotEnabled in builds without the
// "tesseract" tag.
func NewTesseractOCRService(config TesseractConfig) (OCRService, error) {
	return nil, withBackend(BackendTesseract, WrapOCRError("NewTesseractOCRService", ErrTesseractNotEnabled, ""))
}
