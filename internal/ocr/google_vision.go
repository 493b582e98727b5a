package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"cardreader/internal/logger"
)

// Backend names accepted by New.
const (
	BackendVision     = "vision"
	BackendDocumentAI = "documentai"
	BackendTesseract  = "tesseract"
)

// GoogleVisionOCRService implements OCRService using Google Cloud Vision API.
type GoogleVisionOCRService struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewGoogleVisionOCRService creates a new OCR service with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionOCRService(ctx context.Context) (OCRService, error) {
	const op = "NewGoogleVisionOCRService"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionOCRServiceWithClient(client), nil
}

// NewGoogleVisionOCRServiceWithClient creates a new OCR service with an explicit client (for testing).
func NewGoogleVisionOCRServiceWithClient(client *vision.ImageAnnotatorClient) OCRService {
	return &GoogleVisionOCRService{
		client: client,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// ProcessImage extracts text from a card image.
func (g *GoogleVisionOCRService) ProcessImage(ctx context.Context, imageData io.Reader) (string, error) {
	result, err := g.ProcessImageWithMetadata(ctx, imageData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata extracts text from a card image with additional metadata.
func (g *GoogleVisionOCRService) ProcessImageWithMetadata(ctx context.Context, imageData io.Reader) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, _, err := readImage(op, imageData)
	if err != nil {
		return nil, withBackend(BackendVision, err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{
						Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
					},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, withBackend(BackendVision, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err)))
	}

	if len(resp.Responses) == 0 {
		return nil, withBackend(BackendVision, WrapOCRError(op, ErrOCRFailed, "no response from Vision API"))
	}

	imageResp := resp.Responses[0]
	if imageResp.Error != nil {
		return nil, withBackend(BackendVision, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.Error.Message)))
	}

	result, err := finish(visionResult(imageResp), startTime)
	if err != nil {
		return nil, withBackend(BackendVision, WrapOCRError(op, err, "failed to process Vision API response"))
	}

	g.log.Debug().
		Int("bytes", len(content)).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Vision OCR completed")

	return result, nil
}

// visionResult converts an annotation response into an OCRResult. The full
// text annotation is preferred; the first plain text annotation is used when
// the document annotation is missing.
func visionResult(resp *visionpb.AnnotateImageResponse) *OCRResult {
	result := &OCRResult{Backend: BackendVision}

	doc := resp.GetFullTextAnnotation()
	if doc == nil {
		if annotations := resp.GetTextAnnotations(); len(annotations) > 0 {
			result.Text = annotations[0].GetDescription()
		}
		return result
	}
	result.Text = doc.GetText()

	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range doc.GetPages() {
		if page.GetConfidence() > 0 {
			confidenceSum += page.GetConfidence()
			confidenceCount++
		}
		for _, lang := range page.GetProperty().GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				languageSet[lang.GetLanguageCode()] = true
			}
		}
	}

	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float32(confidenceCount)
	}
	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)

	return result
}

// Close closes the underlying Vision client.
func (g *GoogleVisionOCRService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
