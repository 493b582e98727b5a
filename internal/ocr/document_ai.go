package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"cardreader/internal/logger"
)

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// DocumentAIOCRService implements OCRService using a Google Document AI OCR processor.
type DocumentAIOCRService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIOCRService creates a Document AI backed OCR service.
// Credentials are taken from GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS.
func NewDocumentAIOCRService(ctx context.Context, config DocumentAIConfig) (OCRService, error) {
	const op = "NewDocumentAIOCRService"

	if config.ProjectID == "" {
		return nil, withBackend(BackendDocumentAI, WrapOCRError(op, ErrMissingCredentials, "GOOGLE_CLOUD_PROJECT is required"))
	}
	if config.ProcessorID == "" {
		return nil, withBackend(BackendDocumentAI, WrapOCRError(op, ErrOCRFailed, "DOCUMENT_AI_PROCESSOR_ID is required"))
	}
	config = config.withDefaults()

	var clientOptions []option.ClientOption

	// The multi-region "us" uses the global endpoint.
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, withBackend(BackendDocumentAI, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment"))
		}
		return nil, withBackend(BackendDocumentAI, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location)))
	}

	return NewDocumentAIOCRServiceWithClient(config, client), nil
}

// NewDocumentAIOCRServiceWithClient creates the service with an explicit client (for testing).
func NewDocumentAIOCRServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) OCRService {
	return &DocumentAIOCRService{
		client: client,
		config: config.withDefaults(),
		log:    logger.WithComponent("ocr-documentai"),
	}
}

func (c DocumentAIConfig) withDefaults() DocumentAIConfig {
	if c.Location == "" {
		c.Location = "us"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// processorName returns the fully qualified processor (or processor version) name.
func (c DocumentAIConfig) processorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
	if c.ProcessorVersion != "" {
		name += "/processorVersions/" + c.ProcessorVersion
	}
	return name
}

// ProcessImage extracts text from a card image.
func (p *DocumentAIOCRService) ProcessImage(ctx context.Context, imageData io.Reader) (string, error) {
	result, err := p.ProcessImageWithMetadata(ctx, imageData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata extracts text from a card image with additional metadata.
func (p *DocumentAIOCRService) ProcessImageWithMetadata(ctx context.Context, imageData io.Reader) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, mimeType, err := readImage(op, imageData)
	if err != nil {
		return nil, withBackend(BackendDocumentAI, err)
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.config.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
	}

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, withBackend(BackendDocumentAI, p.handleProcessingError(op, err))
	}
	if resp.GetDocument() == nil {
		return nil, withBackend(BackendDocumentAI, WrapOCRError(op, ErrOCRFailed, "no document in response"))
	}

	result, err := finish(documentResult(resp.GetDocument()), startTime)
	if err != nil {
		return nil, withBackend(BackendDocumentAI, WrapOCRError(op, err, "failed to process Document AI response"))
	}

	p.log.Debug().
		Str("processor", p.config.ProcessorID).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Document AI OCR completed")

	return result, nil
}

// handleProcessingError converts Document AI errors to OCR errors.
func (p *DocumentAIOCRService) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "DeadlineExceeded"):
		return WrapOCRError(op, context.DeadlineExceeded, "processing timeout")
	case errors.Is(err, context.Canceled) || strings.Contains(errStr, "Canceled"):
		return WrapOCRError(op, context.Canceled, "processing was canceled")
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied"):
		return WrapOCRError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "NotFound"):
		return WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT") || strings.Contains(errStr, "InvalidArgument"):
		return WrapOCRError(op, ErrInvalidImage, "image format not supported or corrupted")
	default:
		return WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// documentResult converts a processed document into an OCRResult.
func documentResult(doc *documentaipb.Document) *OCRResult {
	result := &OCRResult{
		Backend: BackendDocumentAI,
		Text:    doc.GetText(),
	}

	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range doc.GetPages() {
		if layout := page.GetLayout(); layout != nil && layout.GetConfidence() > 0 {
			confidenceSum += layout.GetConfidence()
			confidenceCount++
		}
		for _, lang := range page.GetDetectedLanguages() {
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

// Close closes the underlying Document AI client.
func (p *DocumentAIOCRService) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
