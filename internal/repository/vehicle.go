package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"carwow/catalog/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// columns in write order; id is the conflict key
var columns = []string{
	"id", "slug", "make_en", "model_en", "make_ja", "model_ja", "grade", "engine",
	"engine_price_gbp", "engine_price_jpy", "body_type", "body_type_ja", "fuel", "fuel_ja",
	"transmission", "transmission_ja", "price_min_gbp", "price_max_gbp", "price_used_gbp",
	"price_min_jpy", "price_max_jpy", "price_used_jpy", "overview_en", "overview_ja",
	"doors", "seats", "power_bhp", "drive_type", "drive_type_ja", "dimensions_mm",
	"dimensions_ja", "colors", "colors_ja", "media_urls", "catalog_url", "full_model_ja",
	"updated_at", "spec_json", "is_active",
}

type VehicleRepository interface {
	Name() string
	Upsert(ctx context.Context, records []domain.VehicleRecord) error
	MarkInactive(ctx context.Context, slug string) error
	EnsureSchema(ctx context.Context) error
}

// DB is the part of pgxpool.Pool the repository uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type vehicleRepository struct {
	db    DB
	table string
	psql  sq.StatementBuilderType
	now   func() time.Time
}

func NewVehicleRepository(db DB, table string) VehicleRepository {
	return &vehicleRepository{
		db:    db,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:   time.Now,
	}
}

func (r *vehicleRepository) Name() string {
	return "postgres"
}

func (r *vehicleRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, strings.ReplaceAll(schemaSQL, "{{table}}", r.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return nil
}

// Upsert writes all records of one vehicle in a single statement keyed by id
func (r *vehicleRepository) Upsert(ctx context.Context, records []domain.VehicleRecord) error {
	if len(records) == 0 {
		return nil
	}

	query, args, err := r.upsertQuery(records)
	if err != nil {
		return &domain.SinkError{Sink: r.Name(), Err: err}
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return &domain.SinkError{Sink: r.Name(), Err: fmt.Errorf("failed to upsert %d records: %w", len(records), err)}
	}
	return nil
}

func (r *vehicleRepository) upsertQuery(records []domain.VehicleRecord) (string, []any, error) {
	insert := r.psql.Insert(r.table).Columns(columns...)
	// ON CONFLICT cannot touch the same row twice in one statement
	seen := make(map[string]bool, len(records))
	for i := range records {
		if seen[records[i].ID] {
			continue
		}
		seen[records[i].ID] = true
		values, err := rowValues(&records[i])
		if err != nil {
			return "", nil, err
		}
		insert = insert.Values(values...)
	}

	updates := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	query, args, err := insert.Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", ")).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build upsert: %w", err)
	}
	return query, args, nil
}

// MarkInactive flags every record of slug as no longer listed
func (r *vehicleRepository) MarkInactive(ctx context.Context, slug string) error {
	query, args, err := r.psql.Update(r.table).
		Set("is_active", false).
		Set("updated_at", r.now().UTC()).
		Where(sq.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return &domain.SinkError{Sink: r.Name(), Err: fmt.Errorf("failed to build update: %w", err)}
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return &domain.SinkError{Sink: r.Name(), Err: fmt.Errorf("failed to mark %s inactive: %w", slug, err)}
	}
	return nil
}

func rowValues(rec *domain.VehicleRecord) ([]any, error) {
	specJSON, err := rec.SpecJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec_json for %s: %w", rec.ID, err)
	}

	return []any{
		rec.ID, rec.Slug, rec.MakeEN, rec.ModelEN, nullString(rec.MakeJA), nullString(rec.ModelJA),
		nullString(rec.Grade), nullString(rec.Engine),
		rec.Price.EnginePriceGBP, rec.Price.EnginePriceJPY, rec.BodyType(), rec.BodyTypeJA,
		nullString(rec.Fuel), nullString(rec.FuelJA),
		nullString(rec.Transmission), nullString(rec.TransmissionJA),
		rec.Price.MinGBP, rec.Price.MaxGBP, rec.Price.UsedGBP,
		rec.Price.MinJPY, rec.Price.MaxJPY, rec.Price.UsedJPY,
		nullString(rec.OverviewEN), nullString(rec.OverviewJA),
		rec.Spec.Doors, rec.Spec.Seats, rec.PowerBHP,
		nullString(rec.DriveType), nullString(rec.DriveTypeJA), nullString(rec.Spec.DimensionsMM),
		nullString(rec.DimensionsJA), rec.Colors, rec.ColorsJA, []string(rec.Media),
		rec.CatalogURL, nullString(rec.FullModelJA),
		rec.UpdatedAt, string(specJSON), rec.IsActive,
	}, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
