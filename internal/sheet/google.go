package sheet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"carwow/catalog/internal/domain"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheet keeps one worksheet of a Google spreadsheet keyed by the id column. The first
// row holds Headers; existing ids are rewritten in place and new ids are appended.
type GoogleSheet struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	tab           string
	mu            sync.Mutex
	now           func() time.Time
}

// NewGoogleSheet connects to the worksheet tab of spreadsheetID. opts carry the credentials,
// for example option.WithCredentialsFile.
func NewGoogleSheet(ctx context.Context, spreadsheetID, tab string, opts ...option.ClientOption) (*GoogleSheet, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &GoogleSheet{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		tab:           tab,
		now:           time.Now,
	}, nil
}

func (g *GoogleSheet) Name() string {
	return "sheet"
}

func (g *GoogleSheet) Upsert(ctx context.Context, records []domain.VehicleRecord) error {
	if len(records) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ids, err := g.read(ctx, "A", "A")
	if err != nil {
		return &domain.SinkError{Sink: g.Name(), Err: err}
	}
	if len(ids) == 0 {
		if err := g.writeHeader(ctx); err != nil {
			return &domain.SinkError{Sink: g.Name(), Err: err}
		}
		ids = [][]any{{Headers[0]}}
	}

	rowOf := make(map[string]int, len(ids))
	for i, row := range ids[1:] {
		if len(row) > 0 {
			rowOf[fmt.Sprint(row[0])] = i + 2
		}
	}

	var (
		updates []*sheets.ValueRange
		added   [][]any
		pending = make(map[string]int)
	)
	for i := range records {
		row, err := Row(&records[i])
		if err != nil {
			return &domain.SinkError{Sink: g.Name(), Err: err}
		}
		id := row[0]
		if at, ok := rowOf[id]; ok {
			updates = append(updates, &sheets.ValueRange{
				Range:  g.a1(fmt.Sprintf("A%d", at), fmt.Sprintf("%s%d", lastColumn, at)),
				Values: [][]any{cells(row)},
			})
			continue
		}
		if at, ok := pending[id]; ok {
			added[at] = cells(row)
			continue
		}
		pending[id] = len(added)
		added = append(added, cells(row))
	}

	if len(updates) > 0 {
		req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: updates}
		if _, err := g.values.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return &domain.SinkError{Sink: g.Name(), Err: fmt.Errorf("failed to update rows: %w", err)}
		}
	}
	if len(added) > 0 {
		_, err := g.values.Append(g.spreadsheetID, g.a1("A", lastColumn), &sheets.ValueRange{Values: added}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return &domain.SinkError{Sink: g.Name(), Err: fmt.Errorf("failed to append rows: %w", err)}
		}
	}

	log.Debugf("Google sheet: %d rows updated, %d added", len(updates), len(added))
	return nil
}

// MarkInactive sets is_active to FALSE on every row of slug
func (g *GoogleSheet) MarkInactive(ctx context.Context, slug string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rows, err := g.read(ctx, "A", lastColumn)
	if err != nil {
		return &domain.SinkError{Sink: g.Name(), Err: err}
	}

	stamp := g.now().UTC().Format(time.RFC3339)
	var updates []*sheets.ValueRange
	for i, row := range rows {
		if i == 0 || len(row) <= colSlug || fmt.Sprint(row[colSlug]) != slug {
			continue
		}
		for col, value := range map[int]string{colIsActive: "FALSE", colUpdatedAt: stamp} {
			cell := fmt.Sprintf("%s%d", columnName(col+1), i+1)
			updates = append(updates, &sheets.ValueRange{Range: g.a1(cell, cell), Values: [][]any{{value}}})
		}
	}
	if len(updates) == 0 {
		return nil
	}

	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: updates}
	if _, err := g.values.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return &domain.SinkError{Sink: g.Name(), Err: fmt.Errorf("failed to mark %s inactive: %w", slug, err)}
	}
	return nil
}

func (g *GoogleSheet) read(ctx context.Context, from, to string) ([][]any, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.a1(from, to)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", g.tab, err)
	}
	return resp.Values, nil
}

func (g *GoogleSheet) writeHeader(ctx context.Context) error {
	header := &sheets.ValueRange{Values: [][]any{cells(Headers)}}
	_, err := g.values.Update(g.spreadsheetID, g.a1("A1", lastColumn+"1"), header).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write sheet header: %w", err)
	}
	return nil
}

func (g *GoogleSheet) a1(from, to string) string {
	return fmt.Sprintf("'%s'!%s:%s", strings.ReplaceAll(g.tab, "'", "''"), from, to)
}

var lastColumn = columnName(len(Headers))

// columnName converts a 1-based column number to its letters (1 -> A, 27 -> AA)
func columnName(n int) string {
	var name []byte
	for n > 0 {
		n--
		name = append([]byte{byte('A' + n%26)}, name...)
		n /= 26
	}
	return string(name)
}

func cells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
