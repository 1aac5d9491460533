package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Ensure SheetsSink implements Sink
var _ Sink = (*SheetsSink)(nil)

const valueInputOption = "USER_ENTERED"

// SheetsCredentials is a service account, given either as the whole JSON key
// or as the client email plus private key.
type SheetsCredentials struct {
	JSON        string
	ClientEmail string
	PrivateKey  string
}

// SheetsSink stores every table as a named sheet of one spreadsheet. The
// first row of each sheet is the header.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsSink authenticates with a service-account JWT.
func NewSheetsSink(ctx context.Context, spreadsheetID string, creds SheetsCredentials) (*SheetsSink, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	conf, err := jwtConfig(creds)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	slog.Info("Sheets sink initialized", "spreadsheet_id", spreadsheetID, "client_email", conf.Email)
	return &SheetsSink{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func jwtConfig(creds SheetsCredentials) (*jwt.Config, error) {
	if strings.TrimSpace(creds.JSON) != "" {
		// Keys pasted into env vars often carry literal "\n".
		var key map[string]any
		if err := json.Unmarshal([]byte(creds.JSON), &key); err != nil {
			return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
		}
		if pk, ok := key["private_key"].(string); ok {
			key["private_key"] = unescapeKey(pk)
		}
		data, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode service account JSON: %w", err)
		}
		conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to load service account: %w", err)
		}
		return conf, nil
	}

	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, fmt.Errorf("service account credentials are required (GCP_SA_JSON or GS_CLIENT_EMAIL + GS_PRIVATE_KEY)")
	}
	return &jwt.Config{
		Email:      creds.ClientEmail,
		PrivateKey: []byte(unescapeKey(creds.PrivateKey)),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}, nil
}

func unescapeKey(k string) string {
	return strings.ReplaceAll(k, `\n`, "\n")
}

func (s *SheetsSink) readRange(ctx context.Context, rng string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = fmt.Sprint(v)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *SheetsSink) clearUpdate(ctx context.Context, rng string, rows [][]string) error {
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	if len(rows) == 0 {
		return nil
	}
	vr := &sheets.ValueRange{Values: toValues(rows)}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// Read drops the header row.
func (s *SheetsSink) Read(ctx context.Context, t Table) ([][]string, error) {
	rows, err := s.readRange(ctx, t.Range())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// ClearAndWrite rewrites the whole sheet, header included.
func (s *SheetsSink) ClearAndWrite(ctx context.Context, t Table, rows [][]string) error {
	body := make([][]string, 0, len(rows)+1)
	body = append(body, t.Columns)
	for _, r := range rows {
		body = append(body, fit(t, r))
	}
	return s.clearUpdate(ctx, t.Range(), body)
}

func (s *SheetsSink) Append(ctx context.Context, t Table, row []string) error {
	vr := &sheets.ValueRange{Values: toValues([][]string{fit(t, row)})}
	if _, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, t.Range(), vr).ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
		return fmt.Errorf("append %s: %w", t.Name, err)
	}
	return nil
}

// EnsureHeaders writes the header row of every empty sheet.
func (s *SheetsSink) EnsureHeaders(ctx context.Context) error {
	for _, t := range Tables {
		rows, err := s.readRange(ctx, t.Range())
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			continue
		}
		if err := s.clearUpdate(ctx, t.Range(), [][]string{t.Columns}); err != nil {
			return err
		}
		slog.Info("Wrote sheet header", "sheet", t.Name)
	}
	return nil
}

func (s *SheetsSink) Close() error { return nil }

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r))
		for j, c := range r {
			vals[j] = c
		}
		out[i] = vals
	}
	return out
}
