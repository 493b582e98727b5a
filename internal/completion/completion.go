// Package completion asks ChatGPT for contact fields the extraction
// heuristics left empty.
//
// Completion only ever fills gaps: a value found by the heuristics is never
// replaced. Email and phone answers are re-validated with the extractor's own
// patterns, and a newly found email also yields the website (and, when the
// company is still unknown, the company) the same way extraction does.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"cardreader/internal/extract"
	"cardreader/internal/logger"
	"cardreader/pkg/models"
)

// ErrNoAPIKey is returned when the service is created without an OpenAI key.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is required for field completion")

// Config configures the completion service
type Config struct {
	Model       string  // gpt-4o-mini, gpt-4o
	Temperature float32 // ChatGPT temperature
	MaxRetries  int     // ChatGPT retry attempts
}

// Completer fills empty contact fields from the card's OCR text.
type Completer interface {
	Complete(ctx context.Context, rawText string, record models.ContactRecord) (models.ContactRecord, []string, error)
}

// Service implements Completer with the OpenAI chat completions API.
type Service struct {
	client *openai.Client
	config Config
	log    zerolog.Logger
}

// chatGPTResponse is the JSON object the model is asked to return.
type chatGPTResponse struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	Designation string `json:"designation"`
	Address     string `json:"address"`
}

// NewService creates a service for apiKey.
func NewService(apiKey string, config Config) (*Service, error) {
	const op = "NewService"

	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoAPIKey)
	}
	return NewServiceWithClient(openai.NewClient(apiKey), config), nil
}

// NewServiceWithClient creates a service with an explicit client (for testing).
func NewServiceWithClient(client *openai.Client, config Config) *Service {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &Service{
		client: client,
		config: config,
		log:    logger.WithComponent("completion"),
	}
}

// MissingFields lists the JSON names of the fields the model may fill. The
// website is never asked for; it follows from the email.
func MissingFields(record models.ContactRecord) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", record.Name},
		{"email", record.Email},
		{"phone", record.Phone},
		{"company", record.Company},
		{"designation", record.Designation},
		{"address", record.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Complete returns record with empty fields filled from rawText, plus the
// names of the fields that were filled.
func (s *Service) Complete(ctx context.Context, rawText string, record models.ContactRecord) (models.ContactRecord, []string, error) {
	const op = "Complete"

	missing := MissingFields(record)
	if len(missing) == 0 {
		s.log.Debug().Msg("Contact is already complete")
		return record, nil, nil
	}
	if strings.TrimSpace(rawText) == "" {
		return record, nil, nil
	}

	s.log.Info().
		Strs("missing_fields", missing).
		Msg("Found missing fields, proceeding with completion")

	resp, err := s.ask(ctx, rawText, missing, record)
	if err != nil {
		return record, nil, fmt.Errorf("%s: ChatGPT completion failed: %w", op, err)
	}

	completed, filled := merge(record, resp)

	s.log.Info().
		Strs("filled_fields", filled).
		Msg("Contact completion finished")

	return completed, filled, nil
}

func (s *Service) ask(ctx context.Context, rawText string, missing []string, record models.ContactRecord) (chatGPTResponse, error) {
	const op = "ask"

	prompt := buildPrompt(rawText, missing, record)

	s.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("model", s.config.Model).
		Float32("temperature", s.config.Temperature).
		Msg("Sending completion request to ChatGPT")

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return chatGPTResponse{}, fmt.Errorf("%s: %w", op, err)
		}

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: s.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: 500,
		})
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", s.config.MaxRetries).
				Msg("ChatGPT request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices from ChatGPT")
			continue
		}

		content := resp.Choices[0].Message.Content
		parsed, err := parseResponse(content)
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse ChatGPT response, retrying")
			continue
		}

		s.log.Debug().Int("attempt", attempt).Msg("Received ChatGPT response")
		return parsed, nil
	}

	return chatGPTResponse{}, fmt.Errorf("%s: all %d attempts failed, last error: %w", op, s.config.MaxRetries, lastErr)
}

// parseResponse decodes the model's JSON, tolerating a markdown code fence.
func parseResponse(content string) (chatGPTResponse, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var resp chatGPTResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		return chatGPTResponse{}, fmt.Errorf("failed to parse ChatGPT JSON response: %w", err)
	}
	return resp, nil
}

// merge fills the empty fields of record from resp and reports which fields
// changed. Non-empty fields of record are kept as they are, except that a
// company guessed from the card lines gives way to the one derived from a
// newly completed email.
func merge(record models.ContactRecord, resp chatGPTResponse) (models.ContactRecord, []string) {
	var filled []string
	set := func(name string, dst *string, value string) {
		value = strings.TrimSpace(value)
		if *dst != "" || value == "" {
			return
		}
		*dst = value
		filled = append(filled, name)
	}

	// answers must pass the same patterns as extraction
	email, _ := extract.Email(resp.Email)
	phone, _ := extract.Phone(resp.Phone)

	emailWasEmpty := record.Email == ""

	set("name", &record.Name, resp.Name)
	set("email", &record.Email, email)
	set("phone", &record.Phone, phone)
	set("designation", &record.Designation, resp.Designation)
	set("address", &record.Address, resp.Address)

	if website, ok := extract.WebsiteFromEmail(record.Email); ok {
		set("website", &record.Website, website)
	}
	if emailWasEmpty && record.Email != "" {
		// With no email on the card the company could only come from the
		// line fallback; the email domain takes precedence over it.
		if company, ok := extract.CompanyFromEmail(record.Email); ok && company != record.Company {
			record.Company = company
			filled = append(filled, "company")
		}
	}
	set("company", &record.Company, resp.Company)

	return record, filled
}

const systemPrompt = `You read the OCR text of a single business card and return the contact's details.
Reply with one JSON object with exactly these string keys: name, email, phone, company, designation, address.
Use "" for anything not present on the card. Copy values from the text; do not invent or guess.`

func buildPrompt(rawText string, missing []string, record models.ContactRecord) string {
	var b strings.Builder

	b.WriteString("OCR text of the card:\n---\n")
	b.WriteString(rawText)
	b.WriteString("\n---\n\n")

	b.WriteString("Already identified (do not change):\n")
	for _, f := range []struct{ name, value string }{
		{"name", record.Name},
		{"email", record.Email},
		{"phone", record.Phone},
		{"company", record.Company},
		{"designation", record.Designation},
		{"address", record.Address},
	} {
		if f.value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f.name, f.value)
		}
	}

	fmt.Fprintf(&b, "\nFind these missing fields: %s\n", strings.Join(missing, ", "))
	return b.String()
}
