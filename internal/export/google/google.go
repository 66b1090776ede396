// Package google mirrors transactions into a Google Sheets spreadsheet using
// a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"pace/internal/config"
	"pace/internal/core"
	"pace/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.TransactionExporter = (*Client)(nil)

// NewClient builds a Sheets client from the loaded configuration. Credentials
// come from GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE, or application
// default credentials, in that order.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := cfg.GoogleSheetName
	if sheetName == "" {
		sheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context, cfg *config.Config) (*gsheet.Service, error) {
	switch {
	case cfg.GoogleCredentialsJSON != "":
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	case cfg.GoogleCredentialsFile != "":
		data, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(data),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	default:
		// Application default credentials
		return gsheet.NewService(ctx, goption.WithScopes(gsheet.SpreadsheetsScope))
	}
}

// Append writes one transaction as a row and returns the updated range as
// the reference.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	toAccount := ""
	if t.ToAccountID != nil {
		toAccount = fmt.Sprintf("%d", *t.ToAccountID)
	}

	row := []any{
		t.ID,
		t.Date.UTC().Format("2006-01-02"),
		string(t.Type),
		t.Amount.String(),
		t.AccountID,
		toAccount,
		t.Note,
	}

	resp, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:G", &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = strings.TrimSpace(resp.Updates.UpdatedRange)
	}
	return ref, nil
}
