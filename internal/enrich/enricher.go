package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carwow/catalog/internal/domain"
)

// Enricher fills the derived fields of assembled records: JPY prices, Japanese text and
// full_model_ja. Dictionaries are consulted before the translation provider.
type Enricher struct {
	rate       RateSource
	dict       *Dictionaries
	translator *MemoTranslator // nil when translation is disabled
}

func NewEnricher(rate RateSource, dict *Dictionaries, translator *MemoTranslator) *Enricher {
	return &Enricher{
		rate:       rate,
		dict:       dict,
		translator: translator,
	}
}

// Enrich returns the record with its derived fields set. Translation failures leave the
// corresponding _ja field empty and are returned joined; the record is usable either way.
func (e *Enricher) Enrich(ctx context.Context, rec domain.VehicleRecord) (domain.VehicleRecord, error) {
	var errs []error
	translate := func(text string) string {
		ja, err := e.translate(ctx, text)
		if err != nil {
			errs = append(errs, err)
		}
		return ja
	}

	MirrorPrices(&rec.Price, e.rate.Rate(ctx))

	rec.MakeJA = e.lookupOr(e.dict.Make, rec.MakeEN, translate)
	rec.ModelJA = translate(rec.ModelEN)
	rec.FuelJA = e.lookupOr(e.dict.Fuel, rec.Fuel, translate)
	rec.TransmissionJA = e.lookupOr(e.dict.Transmission, rec.Transmission, translate)
	rec.DriveTypeJA = e.lookupOr(e.dict.DriveType, rec.DriveType, translate)

	rec.BodyTypeJA = nil
	for _, bodyType := range rec.Spec.BodyType {
		if ja := e.lookupOr(e.dict.BodyType, bodyType, translate); ja != "" {
			rec.BodyTypeJA = append(rec.BodyTypeJA, ja)
		}
	}
	rec.BodyTypeJA = domain.UnionSorted(rec.BodyTypeJA, nil)

	rec.ColorsJA = nil
	for _, colour := range rec.Colors {
		if ja := e.lookupOr(e.dict.Colour, colour, translate); ja != "" {
			rec.ColorsJA = append(rec.ColorsJA, ja)
		}
	}

	if rec.OverviewEN == "" {
		rec.OverviewEN = GenerateOverview(rec)
	}
	rec.OverviewJA = translate(rec.OverviewEN)

	rec.DimensionsJA = DimensionsJA(rec.Spec.DimensionsMM)
	rec.FuelClass = ClassifyFuel(rec.Engine, rec.ModelEN, rec.Fuel)
	rec.EngineDetails = ParseEngine(rec.Engine)
	rec.FullModelJA = FullModelJA(rec)

	return rec, errors.Join(errs...)
}

func (e *Enricher) lookupOr(lookup func(string) (string, bool), text string, translate func(string) string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if ja, ok := lookup(text); ok {
		return ja
	}
	return translate(text)
}

func (e *Enricher) translate(ctx context.Context, text string) (string, error) {
	if e.translator == nil || strings.TrimSpace(text) == "" {
		return "", nil
	}
	return e.translator.Translate(ctx, text)
}

// FullModelJA joins make, model, grade and engine tail, preferring Japanese names and
// falling back to English ones. It is never blank while the slug is known.
func FullModelJA(rec domain.VehicleRecord) string {
	makerSlug, modelSlug, _ := strings.Cut(rec.Slug, "/")

	var parts []string
	add := func(candidates ...string) {
		for _, c := range candidates {
			if c = strings.TrimSpace(c); c != "" {
				parts = append(parts, c)
				return
			}
		}
	}
	add(rec.MakeJA, rec.MakeEN, makerSlug)
	add(rec.ModelJA, rec.ModelEN, modelSlug)
	add(rec.Grade)

	fuelClass := rec.FuelClass
	if fuelClass == "" {
		fuelClass = ClassifyFuel(rec.Engine, rec.ModelEN, rec.Fuel)
	}
	if rec.Engine != "" {
		add(EngineTail(fuelClass, rec.Engine, rec.Spec))
	}

	if len(parts) == 0 {
		return rec.Slug
	}
	return strings.Join(parts, " ")
}

// GenerateOverview writes a one-line English summary for records whose page had no intro
func GenerateOverview(rec domain.VehicleRecord) string {
	name := strings.TrimSpace(rec.MakeEN + " " + rec.ModelEN)
	if name == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The %s", name)
	if len(rec.Spec.BodyType) > 0 {
		fmt.Fprintf(&b, " is a %s", strings.ToLower(strings.Join(rec.Spec.BodyType, " and ")))
	} else {
		b.WriteString(" is a car")
	}
	if rec.Price.MinGBP != nil && rec.Price.MaxGBP != nil {
		fmt.Fprintf(&b, " priced from £%s to £%s", thousands.Sprintf("%d", *rec.Price.MinGBP), thousands.Sprintf("%d", *rec.Price.MaxGBP))
	}
	b.WriteString(".")
	return b.String()
}
