package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bicdash/internal/core"
	ports "bicdash/internal/sheets"
	"bicdash/internal/tabular"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	violationsSheet string
	complaintsSheet string
}

// Ensure interface conformance
var (
	_ ports.ViolationReader = (*Client)(nil)
	_ ports.ComplaintReader = (*Client)(nil)
	_ ports.ViolationWriter = (*Client)(nil)
)

// Options selects the spreadsheet and how to authenticate against it.
type Options struct {
	SpreadsheetID   string
	ViolationsSheet string
	ComplaintsSheet string
	// CredentialsJSON takes precedence over CredentialsFile. When both are
	// empty GOOGLE_APPLICATION_CREDENTIALS is consulted.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing service. Empty sheet names fall back to
// "Violations" and "Complaints".
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	violations := strings.TrimSpace(opts.ViolationsSheet)
	if violations == "" {
		violations = "Violations"
	}
	complaints := strings.TrimSpace(opts.ComplaintsSheet)
	if complaints == "" {
		complaints = "Complaints"
	}
	return &Client{
		svc:             svc,
		spreadsheetID:   strings.TrimSpace(opts.SpreadsheetID),
		violationsSheet: violations,
		complaintsSheet: complaints,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully", "scope", gsheet.SpreadsheetsScope)
	return service, nil
}

// ListViolations reads the whole violations tab.
func (c *Client) ListViolations(ctx context.Context) (tabular.Violations, error) {
	rows, err := c.readAll(ctx, c.violationsSheet)
	if err != nil {
		return tabular.Violations{}, err
	}
	res, err := tabular.ParseViolations(rows)
	if err != nil {
		return tabular.Violations{}, fmt.Errorf("sheet %s: %w", c.violationsSheet, err)
	}
	return res, nil
}

// ListComplaints reads the whole complaints tab.
func (c *Client) ListComplaints(ctx context.Context) (tabular.Complaints, error) {
	rows, err := c.readAll(ctx, c.complaintsSheet)
	if err != nil {
		return tabular.Complaints{}, err
	}
	res, err := tabular.ParseComplaints(rows)
	if err != nil {
		return tabular.Complaints{}, fmt.Errorf("sheet %s: %w", c.complaintsSheet, err)
	}
	return res, nil
}

// AppendViolation appends v below the last row of the violations tab, in the
// tab's own column order. An empty tab gets the standard header first.
// Text that Sheets would parse as a formula is written as a literal.
func (c *Client) AppendViolation(ctx context.Context, v core.Violation) (string, error) {
	if err := v.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	headerRange := a1(c.violationsSheet, "1:1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read header of %s: %w", c.violationsSheet, err)
	}
	var header []string
	if len(resp.Values) > 0 {
		header = toStrings(resp.Values[0])
	}
	if len(header) == 0 {
		header = tabular.ViolationHeader
		vr := &gsheet.ValueRange{Values: [][]any{toAny(header)}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(c.violationsSheet, "A1"), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to write header in sheet %s: %w", c.violationsSheet, err)
		}
	}

	vr := &gsheet.ValueRange{Values: [][]any{alignRow(header, v)}}
	out, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(c.violationsSheet, "A1"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append to sheet %s: %w", c.violationsSheet, err)
	}
	ref := a1(c.violationsSheet, "")
	if out.Updates != nil && out.Updates.UpdatedRange != "" {
		ref = out.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Appended violation to sheet", "sheet", c.violationsSheet, "ref", ref)
	return ref, nil
}

func (c *Client) readAll(ctx context.Context, sheet string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := a1(sheet, "A:Z")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = toStrings(row)
	}
	return rows, nil
}

// alignRow lays v out under header. Columns it does not know stay empty.
func alignRow(header []string, v core.Violation) []any {
	cells := tabular.ViolationRow(v)
	values := make(map[string]string, len(cells))
	for i, col := range tabular.ViolationHeader {
		values[col] = cells[i]
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = literal(values[strings.ToUpper(strings.TrimSpace(h))])
	}
	return row
}

// literal keeps USER_ENTERED from evaluating a cell as a formula. Sheets
// drops the leading apostrophe and stores the text as typed.
func literal(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

// a1 quotes a sheet name for A1 notation.
func a1(sheet, rng string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return quoted + "!" + rng
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
