// Package preprocess prepares card photographs for OCR.
//
// Images are decoded (JPEG, PNG, GIF, BMP, TIFF and WebP), converted to
// grayscale, upscaled when small, contrast-stretched and sharpened, and
// re-encoded as PNG.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	// Decoders registered with image.Decode in addition to imaging's defaults.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"cardreader/internal/logger"
)

const (
	// MinWidth is the width below which images are upscaled 2x before OCR.
	MinWidth = 1000

	// ContrastPercent is imaging's scale for a 2x contrast factor; 100 would
	// binarize the image.
	ContrastPercent = 50

	// SharpenSigma is the gaussian sigma used for unsharp masking.
	SharpenSigma = 1.0
)

// ErrUnsupportedImage is returned when the bytes cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// Decode reads an image in any registered format, honoring EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// Enhance applies the OCR filter chain to img.
func Enhance(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)

	if width := out.Bounds().Dx(); width > 0 && width < MinWidth {
		out = imaging.Resize(out, width*2, 0, imaging.Lanczos)
	}

	out = imaging.AdjustContrast(out, ContrastPercent)
	return imaging.Sharpen(out, SharpenSigma)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Prepare decodes data, enhances it and returns PNG bytes.
func Prepare(data []byte) ([]byte, error) {
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return EncodePNG(Enhance(img))
}

// Preprocessor wraps Prepare with logging and a fallback to the original bytes.
type Preprocessor struct {
	enabled bool
	log     zerolog.Logger
}

// New creates a Preprocessor. A disabled one passes images through untouched.
func New(enabled bool) *Preprocessor {
	return &Preprocessor{
		enabled: enabled,
		log:     logger.WithComponent("preprocess"),
	}
}

// Process returns the enhanced image, or data itself when preprocessing is
// disabled or fails. OCR engines still get a chance at images the filters
// cannot handle.
func (p *Preprocessor) Process(data []byte) []byte {
	if !p.enabled {
		return data
	}

	out, err := Prepare(data)
	if err != nil {
		p.log.Warn().Err(err).Int("bytes", len(data)).Msg("Image preprocessing failed, using original image")
		return data
	}

	p.log.Debug().
		Int("in_bytes", len(data)).
		Int("out_bytes", len(out)).
		Msg("Image preprocessed")
	return out
}
