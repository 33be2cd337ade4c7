package assembler

import (
	"strings"
	"time"

	"carwow/catalog/internal/domain"
)

// Assemble turns the variant tuples of one vehicle into records. Only combinations that were
// observed become records; repeated (grade, engine) pairs are merged into the first one seen.
// A vehicle without any variant still yields one record with grade and engine absent.
// Every record of a call carries the same updated_at.
func Assemble(slug string, variants []domain.Variant, shared domain.SharedFields, now time.Time) ([]domain.VehicleRecord, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, &domain.ValidationError{Field: "slug", Value: slug}
	}

	if len(variants) == 0 {
		variants = []domain.Variant{{}}
	}

	updatedAt := now.UTC()

	var (
		order  []domain.VariantKey
		merged = make(map[domain.VariantKey]*domain.Variant, len(variants))
	)
	for _, v := range variants {
		v.Grade = strings.TrimSpace(v.Grade)
		v.Engine = strings.TrimSpace(v.Engine)
		key := domain.VariantKey{Slug: slug, Grade: v.Grade, Engine: v.Engine}

		existing, seen := merged[key]
		if !seen {
			// merging writes into the stored spec, which must not alias the caller's maps
			v.Spec = copySpec(v.Spec)
			merged[key] = &v
			order = append(order, key)
			continue
		}
		existing.Spec.Merge(v.Spec)
		if existing.EnginePriceGBP == nil {
			existing.EnginePriceGBP = v.EnginePriceGBP
		}
	}

	records := make([]domain.VehicleRecord, 0, len(order))
	for _, key := range order {
		records = append(records, newRecord(key, merged[key], shared, updatedAt))
	}
	return records, nil
}

func newRecord(key domain.VariantKey, v *domain.Variant, shared domain.SharedFields, updatedAt time.Time) domain.VehicleRecord {
	spec := copySpec(v.Spec)
	spec.Merge(shared.Spec)

	return domain.VehicleRecord{
		ID:           key.ID(),
		Slug:         key.Slug,
		MakeEN:       shared.MakeEN,
		ModelEN:      shared.ModelEN,
		Grade:        key.Grade,
		Engine:       key.Engine,
		Fuel:         spec.Fuel,
		Transmission: spec.Transmission,
		DriveType:    spec.DriveType,
		PowerBHP:     spec.PowerBHP,
		Price: domain.Pricing{
			PriceInfo:      shared.Price,
			EnginePriceGBP: v.EnginePriceGBP,
		},
		OverviewEN: shared.OverviewEN,
		Spec:       spec,
		Media:      append(domain.MediaSet(nil), shared.Media...),
		Colors:     append([]string(nil), shared.Colors...),
		CatalogURL: shared.CatalogURL,
		IsActive:   true,
		UpdatedAt:  updatedAt,
	}
}

// copySpec detaches the slice and map of s so records never share them
func copySpec(s domain.SpecSheet) domain.SpecSheet {
	out := s
	out.BodyType = append([]string(nil), s.BodyType...)
	if len(out.BodyType) == 0 {
		out.BodyType = nil
	}
	if s.Extra != nil {
		out.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
