package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"carwow/catalog/internal/domain"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets serves the values endpoints of the Sheets API over an in-memory grid
type fakeSheets struct {
	mu     sync.Mutex
	grid   [][]string
	status int
	calls  []string
}

// cellRef splits "'tab'!AM12" into a 0-based column and 1-based row, row 0 meaning the whole column
func cellRef(ref string) (col, row int) {
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	letters := strings.TrimRight(ref, "0123456789")
	for _, c := range letters {
		col = col*26 + int(c-'A'+1)
	}
	row, _ = strconv.Atoi(ref[len(letters):])
	return col - 1, row
}

func (f *fakeSheets) set(col, row int, values []any) {
	for len(f.grid) < row {
		f.grid = append(f.grid, nil)
	}
	line := f.grid[row-1]
	for len(line) < col+len(values) {
		line = append(line, "")
	}
	for i, v := range values {
		line[col+i] = v.(string)
	}
	f.grid[row-1] = line
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rest, _ := strings.Cut(r.URL.Path, "/values")
	rest = strings.TrimPrefix(rest, "/")
	f.calls = append(f.calls, r.Method+" "+rest)
	if f.status != 0 {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, f.status)
		return
	}

	switch {
	case r.Method == http.MethodGet:
		from, to, _ := strings.Cut(rest, ":")
		first, _ := cellRef(from)
		last, _ := cellRef(to)
		out := &sheets.ValueRange{Range: rest}
		for _, line := range f.grid {
			row := []any{}
			for c := first; c <= last && c < len(line); c++ {
				row = append(row, line[c])
			}
			out.Values = append(out.Values, row)
		}
		json.NewEncoder(w).Encode(out)
		return

	case rest == ":batchUpdate":
		var req sheets.BatchUpdateValuesRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, vr := range req.Data {
			from, _, _ := strings.Cut(vr.Range, ":")
			col, row := cellRef(from)
			f.set(col, row, vr.Values[0])
		}

	case strings.HasSuffix(rest, ":append"):
		var vr sheets.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		for _, values := range vr.Values {
			f.set(0, len(f.grid)+1, values)
		}

	case r.Method == http.MethodPut:
		var vr sheets.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		from, _, _ := strings.Cut(rest, ":")
		col, row := cellRef(from)
		f.set(col, row, vr.Values[0])
	}
	w.Write([]byte(`{}`))
}

func newGoogleSheet(t *testing.T, fake *fakeSheets) *GoogleSheet {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	g, err := NewGoogleSheet(context.Background(), "sheet-id", "system_cars",
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewGoogleSheet: %v", err)
	}
	return g
}

func TestGoogleSheetUpsertByID(t *testing.T) {
	fake := &fakeSheets{}
	g := newGoogleSheet(t, fake)
	ctx := context.Background()

	first := []domain.VehicleRecord{testRecord("bmw/3-series", "SE"), testRecord("bmw/3-series", "M Sport")}
	if err := g.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(fake.grid) != 3 || !slices.Equal(fake.grid[0], Headers) {
		t.Fatalf("grid after first upsert = %v", fake.grid)
	}

	changed := testRecord("bmw/3-series", "M Sport")
	changed.MakeJA = "BMW"
	if err := g.Upsert(ctx, []domain.VehicleRecord{changed, testRecord("bmw/x5", "")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(fake.grid) != 4 {
		t.Fatalf("got %d rows, want header and 3 records", len(fake.grid))
	}
	want, _ := Row(&changed)
	if !slices.Equal(fake.grid[2], want) {
		t.Errorf("row 3 = %v, want %v", fake.grid[2], want)
	}
	if fake.grid[3][colSlug] != "bmw/x5" {
		t.Errorf("appended row = %v", fake.grid[3])
	}
}

func TestGoogleSheetRepeatedIDAppendsOnce(t *testing.T) {
	fake := &fakeSheets{}
	g := newGoogleSheet(t, fake)

	rec := testRecord("bmw/3-series", "SE")
	if err := g.Upsert(context.Background(), []domain.VehicleRecord{rec, rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(fake.grid) != 2 {
		t.Errorf("got %d rows, want header and one record", len(fake.grid))
	}
}

func TestGoogleSheetMarkInactive(t *testing.T) {
	fake := &fakeSheets{}
	g := newGoogleSheet(t, fake)
	g.now = func() time.Time { return time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	records := []domain.VehicleRecord{
		testRecord("bmw/z4", "Sport"),
		testRecord("bmw/z4", "M40i"),
		testRecord("bmw/x5", ""),
	}
	if err := g.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := g.MarkInactive(ctx, "bmw/z4"); err != nil {
		t.Fatalf("MarkInactive: %v", err)
	}

	for _, row := range fake.grid[1:] {
		wantActive, wantStamp := "TRUE", "2026-03-01T12:00:00Z"
		if row[colSlug] == "bmw/z4" {
			wantActive, wantStamp = "FALSE", "2026-04-02T08:30:00Z"
		}
		if row[colIsActive] != wantActive || row[colUpdatedAt] != wantStamp {
			t.Errorf("%s: is_active=%s updated_at=%s", row[colSlug], row[colIsActive], row[colUpdatedAt])
		}
	}
}

func TestGoogleSheetAPIError(t *testing.T) {
	fake := &fakeSheets{status: http.StatusForbidden}
	g := newGoogleSheet(t, fake)

	err := g.Upsert(context.Background(), []domain.VehicleRecord{testRecord("bmw/x5", "")})
	var sinkErr *domain.SinkError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("got %v, want a SinkError", err)
	}
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{1: "A", 26: "Z", 27: "AA", 39: "AM", 702: "ZZ", 703: "AAA"}
	for n, want := range tests {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
	if lastColumn != "AM" {
		t.Errorf("lastColumn = %q", lastColumn)
	}
}
