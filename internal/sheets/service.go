// Package sheets pushes saved contacts to a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"cardreader/internal/logger"
	"cardreader/pkg/models"
)

// lastColumn is the column of the final store field (Image_Path).
const lastColumn = "H"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// PushResult reports what a Push did.
type PushResult struct {
	Appended int `json:"appended"`
	Skipped  int `json:"skipped"`
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := ExtractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	credsOpt, err := credentialsOption(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewSheetsServiceWithOptions(ctx, spreadsheetID, credsOpt)
}

// credentialsOption resolves service account credentials from
// GOOGLE_APPLICATION_CREDENTIALS (a file), GOOGLE_CREDENTIALS (inline JSON)
// or, failing both, application default credentials.
func credentialsOption(ctx context.Context) (option.ClientOption, error) {
	var creds []byte
	switch {
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		data, err := os.ReadFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds = data
	case os.Getenv("GOOGLE_CREDENTIALS") != "":
		creds = []byte(os.Getenv("GOOGLE_CREDENTIALS"))
	default:
		def, err := google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("no Google credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %w", err)
		}
		return option.WithCredentials(def), nil
	}

	jwt, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return option.WithHTTPClient(jwt.Client(ctx)), nil
}

// NewSheetsServiceWithOptions creates a service for spreadsheetID with explicit
// client options (for testing against a local endpoint).
func NewSheetsServiceWithOptions(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Service, error) {
	const op = "NewSheetsServiceWithOptions"

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Sheets service ready")

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func ExtractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// Push appends contacts to sheetName, creating the worksheet with a bold
// header row when needed. Contacts whose email is already in column B (or
// earlier in the same batch) are skipped; contacts without email are always
// appended.
func (s *Service) Push(ctx context.Context, sheetName string, contacts []models.SavedContact) (PushResult, error) {
	const op = "Push"

	if err := s.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return PushResult{}, fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	existing, err := s.ReadRange(ctx, fmt.Sprintf("%s!B:B", sheetName))
	if err != nil {
		return PushResult{}, fmt.Errorf("%s: failed to read existing emails: %w", op, err)
	}

	fresh := filterNew(existing, contacts)
	result := PushResult{Appended: len(fresh), Skipped: len(contacts) - len(fresh)}

	if len(fresh) == 0 {
		s.log.Info().Str("sheet", sheetName).Int("skipped", result.Skipped).Msg("No new contacts to push")
		return result, nil
	}

	values := make([][]interface{}, 0, len(fresh))
	for _, c := range fresh {
		values = append(values, rowToValues(c))
	}

	_, err = s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("%s!A:%s", sheetName, lastColumn),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return PushResult{}, fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Str("sheet", sheetName).
		Int("appended", result.Appended).
		Int("skipped", result.Skipped).
		Msg("Pushed contacts to Google Sheet")

	return result, nil
}

// filterNew drops contacts whose email already appears in the column values
// or earlier in contacts. Emails compare case-insensitively.
func filterNew(column [][]interface{}, contacts []models.SavedContact) []models.SavedContact {
	seen := make(map[string]bool, len(column))
	for i, row := range column {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		if email := normalizeEmail(fmt.Sprint(row[0])); email != "" {
			seen[email] = true
		}
	}

	var fresh []models.SavedContact
	for _, c := range contacts {
		email := normalizeEmail(c.Email)
		if email != "" {
			if seen[email] {
				continue
			}
			seen[email] = true
		}
		fresh = append(fresh, c)
	}
	return fresh
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// rowToValues converts a contact to the interface{} slice for Google Sheets
func rowToValues(c models.SavedContact) []interface{} {
	row := c.Row()
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return values
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: sheetName},
				}},
			},
		}

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", sheetName, lastColumn)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

	header := make([]interface{}, len(models.StoreColumns))
	for i, h := range models.StoreColumns {
		header[i] = h
	}

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{header}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and sizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(models.StoreColumns))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}
