package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cardreader/internal/logger"
	"cardreader/internal/ocr"
)

// OCR backends understood by OCR_BACKEND.
const (
	BackendVision     = ocr.BackendVision
	BackendDocumentAI = ocr.BackendDocumentAI
	BackendTesseract  = ocr.BackendTesseract
)

type Config struct {
	// OCR Configuration
	OCRBackend       string
	PreprocessImages bool

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Tesseract Configuration
	TesseractLang string
	TesseractPSM  int

	// Card Store Configuration
	DataDir string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// OpenAI Configuration (optional field completion)
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAITemperature    float32
	CompletionMaxRetries int

	// Web Shell Configuration
	HTTPAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCRBackend:                 strings.ToLower(getEnv("OCR_BACKEND", BackendVision)),
		PreprocessImages:           getBoolEnv("PREPROCESS_IMAGES", true),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		TesseractLang:              getEnv("TESSERACT_LANG", "eng"),
		TesseractPSM:               getIntEnv("TESSERACT_PSM", 6),
		DataDir:                    getEnv("CARDS_DATA_DIR", "visiting_cards_data"),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "Contacts"),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITemperature:          getFloatEnv("OPENAI_TEMPERATURE", 0.1),
		CompletionMaxRetries:       getIntEnv("COMPLETION_MAX_RETRIES", 3),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8000"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCRBackend {
	case BackendVision, BackendTesseract:
	case BackendDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai backend")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai backend")
		}
	default:
		return fmt.Errorf("OCR_BACKEND must be one of %s, %s, %s (got %q)",
			BackendVision, BackendDocumentAI, BackendTesseract, c.OCRBackend)
	}
	if c.TesseractPSM < 0 || c.TesseractPSM > 13 {
		return fmt.Errorf("TESSERACT_PSM must be between 0 and 13 (got %d)", c.TesseractPSM)
	}
	if c.DataDir == "" {
		return fmt.Errorf("CARDS_DATA_DIR must not be empty")
	}
	if c.CompletionMaxRetries < 1 {
		return fmt.Errorf("COMPLETION_MAX_RETRIES must be at least 1")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// OCROptions returns the engine selection for ocr.New.
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Backend:          c.OCRBackend,
		ProjectID:        c.GoogleCloudProject,
		Location:         c.GoogleCloudLocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
		Language:         c.TesseractLang,
		PageSegMode:      c.TesseractPSM,
	}
}

// HasSheets reports whether Google Sheets sync is configured.
func (c *Config) HasSheets() bool {
	return c.GoogleSheetURL != ""
}

// HasCompletion reports whether LLM field completion can be used.
func (c *Config) HasCompletion() bool {
	return c.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
