package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"carwow/catalog/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Headers is the fixed column order of the sheet
var Headers = []string{
	"id", "slug", "make_en", "model_en", "make_ja", "model_ja", "grade", "engine",
	"engine_price_gbp", "engine_price_jpy", "body_type", "body_type_ja", "fuel", "fuel_ja",
	"transmission", "transmission_ja", "price_min_gbp", "price_max_gbp", "price_used_gbp",
	"price_min_jpy", "price_max_jpy", "price_used_jpy", "overview_en", "overview_ja",
	"doors", "seats", "power_bhp", "drive_type", "drive_type_ja", "dimensions_mm",
	"dimensions_ja", "colors", "colors_ja", "media_urls", "catalog_url", "full_model_ja",
	"updated_at", "spec_json", "is_active",
}

var (
	colSlug      = slices.Index(Headers, "slug")
	colUpdatedAt = slices.Index(Headers, "updated_at")
	colIsActive  = slices.Index(Headers, "is_active")
)

// Sheet is a CSV spreadsheet keyed by record id. Rows keep their position on update
// and new ids are appended.
type Sheet struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func New(path string) *Sheet {
	return &Sheet{path: path, now: time.Now}
}

func (s *Sheet) Name() string {
	return "sheet"
}

func (s *Sheet) Upsert(_ context.Context, records []domain.VehicleRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return &domain.SinkError{Sink: s.Name(), Err: err}
	}

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		index[row[0]] = i
	}

	updated, added := 0, 0
	for i := range records {
		row, err := Row(&records[i])
		if err != nil {
			return &domain.SinkError{Sink: s.Name(), Err: err}
		}
		if at, ok := index[row[0]]; ok {
			rows[at] = row
			updated++
			continue
		}
		index[row[0]] = len(rows)
		rows = append(rows, row)
		added++
	}

	if err := s.save(rows); err != nil {
		return &domain.SinkError{Sink: s.Name(), Err: err}
	}
	log.Debugf("Sheet: %d rows updated, %d added", updated, added)
	return nil
}

// MarkInactive sets is_active to FALSE on every row of slug
func (s *Sheet) MarkInactive(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return &domain.SinkError{Sink: s.Name(), Err: err}
	}

	changed := false
	stamp := s.now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		if row[colSlug] == slug {
			row[colIsActive] = "FALSE"
			row[colUpdatedAt] = stamp
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if err := s.save(rows); err != nil {
		return &domain.SinkError{Sink: s.Name(), Err: err}
	}
	return nil
}

// load returns the data rows, each padded to the header width
func (s *Sheet) load() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open sheet: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	rows := make([][]string, 0, len(all)-1)
	for _, row := range all[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		padded := make([]string, len(Headers))
		copy(padded, row)
		rows = append(rows, padded)
	}
	return rows, nil
}

// save rewrites the sheet through a temporary file so readers never see a partial sheet
func (s *Sheet) save(rows [][]string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sheet directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sheet-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temporary sheet: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Headers); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sheet header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sheet rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary sheet: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace sheet: %w", err)
	}
	return nil
}

// Row renders a record in header order: lists joined by ", ", booleans as TRUE/FALSE,
// documents as JSON and absent values as empty cells
func Row(rec *domain.VehicleRecord) ([]string, error) {
	specJSON, err := rec.SpecJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec_json for %s: %w", rec.ID, err)
	}

	values := map[string]string{
		"id":               rec.ID,
		"slug":             rec.Slug,
		"make_en":          rec.MakeEN,
		"model_en":         rec.ModelEN,
		"make_ja":          rec.MakeJA,
		"model_ja":         rec.ModelJA,
		"grade":            rec.Grade,
		"engine":           rec.Engine,
		"engine_price_gbp": intCell(rec.Price.EnginePriceGBP),
		"engine_price_jpy": intCell(rec.Price.EnginePriceJPY),
		"body_type":        listCell(rec.BodyType()),
		"body_type_ja":     listCell(rec.BodyTypeJA),
		"fuel":             rec.Fuel,
		"fuel_ja":          rec.FuelJA,
		"transmission":     rec.Transmission,
		"transmission_ja":  rec.TransmissionJA,
		"price_min_gbp":    intCell(rec.Price.MinGBP),
		"price_max_gbp":    intCell(rec.Price.MaxGBP),
		"price_used_gbp":   intCell(rec.Price.UsedGBP),
		"price_min_jpy":    intCell(rec.Price.MinJPY),
		"price_max_jpy":    intCell(rec.Price.MaxJPY),
		"price_used_jpy":   intCell(rec.Price.UsedJPY),
		"overview_en":      rec.OverviewEN,
		"overview_ja":      rec.OverviewJA,
		"doors":            intCell(rec.Spec.Doors),
		"seats":            intCell(rec.Spec.Seats),
		"power_bhp":        intCell(rec.PowerBHP),
		"drive_type":       rec.DriveType,
		"drive_type_ja":    rec.DriveTypeJA,
		"dimensions_mm":    rec.Spec.DimensionsMM,
		"dimensions_ja":    rec.DimensionsJA,
		"colors":           listCell(rec.Colors),
		"colors_ja":        listCell(rec.ColorsJA),
		"media_urls":       listCell(rec.Media),
		"catalog_url":      rec.CatalogURL,
		"full_model_ja":    rec.FullModelJA,
		"updated_at":       rec.UpdatedAt.UTC().Format(time.RFC3339),
		"spec_json":        string(specJSON),
		"is_active":        boolCell(rec.IsActive),
	}

	row := make([]string, len(Headers))
	for i, h := range Headers {
		row[i] = values[h]
	}
	return row, nil
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func listCell(v []string) string {
	return strings.Join(v, ", ")
}

func boolCell(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
