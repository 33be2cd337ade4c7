package domain

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PriceInfo holds GBP prices. A nil field means the price was not found.
type PriceInfo struct {
	MinGBP  *int `json:"min_gbp,omitempty"`
	MaxGBP  *int `json:"max_gbp,omitempty"`
	UsedGBP *int `json:"used_gbp,omitempty"`
}

func (p PriceInfo) IsEmpty() bool {
	return p.MinGBP == nil && p.MaxGBP == nil && p.UsedGBP == nil
}

// Pricing is the price block of a record: GBP prices, their JPY mirror and the engine price
type Pricing struct {
	PriceInfo
	MinJPY         *int `json:"min_jpy,omitempty"`
	MaxJPY         *int `json:"max_jpy,omitempty"`
	UsedJPY        *int `json:"used_jpy,omitempty"`
	EnginePriceGBP *int `json:"engine_price_gbp,omitempty"`
	EnginePriceJPY *int `json:"engine_price_jpy,omitempty"`

	// GBP to JPY rate the JPY fields were computed with, 0 before enrichment
	ExchangeRate float64 `json:"exchange_rate_gbp_to_jpy,omitempty"`
}

// SpecSheet holds specification values. Empty strings and nil pointers mean "not found".
type SpecSheet struct {
	Doors        *int              `json:"doors,omitempty"`
	Seats        *int              `json:"seats,omitempty"`
	PowerBHP     *int              `json:"power_bhp,omitempty"`
	DimensionsMM string            `json:"dimensions_mm,omitempty"`
	DriveType    string            `json:"drive_type,omitempty"`
	Fuel         string            `json:"fuel,omitempty"`
	Transmission string            `json:"transmission,omitempty"`
	BodyType     []string          `json:"body_type,omitempty"` // set, kept sorted
	Extra        map[string]string `json:"extra,omitempty"`
}

// Merge fills fields that are absent in s from other. Populated fields of s are never replaced.
func (s *SpecSheet) Merge(other SpecSheet) {
	s.Doors = firstInt(s.Doors, other.Doors)
	s.Seats = firstInt(s.Seats, other.Seats)
	s.PowerBHP = firstInt(s.PowerBHP, other.PowerBHP)
	s.DimensionsMM = firstString(s.DimensionsMM, other.DimensionsMM)
	s.DriveType = firstString(s.DriveType, other.DriveType)
	s.Fuel = firstString(s.Fuel, other.Fuel)
	s.Transmission = firstString(s.Transmission, other.Transmission)
	s.BodyType = UnionSorted(s.BodyType, other.BodyType)

	for k, v := range other.Extra {
		if v == "" {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]string, len(other.Extra))
		}
		if _, ok := s.Extra[k]; !ok {
			s.Extra[k] = v
		}
	}
}

// MediaSet is an ordered, deduplicated list of image URLs
type MediaSet []string

// Variant is one grade/engine combination as extracted from a page section
type Variant struct {
	Grade          string    `json:"grade,omitempty"`
	Engine         string    `json:"engine,omitempty"`
	EnginePriceGBP *int      `json:"engine_price_gbp,omitempty"`
	Spec           SpecSheet `json:"spec"`
}

// SharedFields are the per-vehicle values every variant record carries
type SharedFields struct {
	MakeEN     string    `json:"make_en"`
	ModelEN    string    `json:"model_en"`
	Title      string    `json:"title,omitempty"`
	OverviewEN string    `json:"overview_en,omitempty"`
	Price      PriceInfo `json:"price"`
	Spec       SpecSheet `json:"spec"`
	Media      MediaSet  `json:"media,omitempty"`
	Colors     []string  `json:"colors,omitempty"`
	CatalogURL string    `json:"catalog_url"`
}

// VariantKey identifies one sellable configuration of a vehicle line
type VariantKey struct {
	Slug   string
	Grade  string
	Engine string
}

// ID derives the stable record identifier for the key
func (k VariantKey) ID() string {
	return NewRecordID(k.Slug, k.Grade, k.Engine)
}

// VehicleRecord is the canonical row handed to the sinks
type VehicleRecord struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	MakeEN         string    `json:"make_en"`
	ModelEN        string    `json:"model_en"`
	MakeJA         string    `json:"make_ja,omitempty"`
	ModelJA        string    `json:"model_ja,omitempty"`
	Grade          string    `json:"grade,omitempty"`
	Engine         string    `json:"engine,omitempty"`
	BodyTypeJA     []string  `json:"body_type_ja,omitempty"`
	Fuel           string    `json:"fuel,omitempty"`
	FuelJA         string    `json:"fuel_ja,omitempty"`
	Transmission   string    `json:"transmission,omitempty"`
	TransmissionJA string    `json:"transmission_ja,omitempty"`
	DriveType      string    `json:"drive_type,omitempty"`
	DriveTypeJA    string    `json:"drive_type_ja,omitempty"`
	PowerBHP       *int      `json:"power_bhp,omitempty"`
	Price          Pricing   `json:"price"`
	OverviewEN     string    `json:"overview_en,omitempty"`
	OverviewJA     string    `json:"overview_ja,omitempty"`
	FullModelJA    string    `json:"full_model_ja,omitempty"`
	Spec           SpecSheet `json:"spec"`
	FuelClass      string    `json:"fuel_class,omitempty"`
	EngineDetails  *Engine   `json:"engine_parsed,omitempty"`
	Media          MediaSet  `json:"media,omitempty"`
	Colors         []string  `json:"colors,omitempty"`
	ColorsJA       []string  `json:"colors_ja,omitempty"`
	DimensionsJA   string    `json:"dimensions_ja,omitempty"`
	CatalogURL     string    `json:"catalog_url"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Engine is the structured reading of a free-text engine description
type Engine struct {
	Type       string   `json:"type,omitempty"`
	SizeL      *float64 `json:"engine_size_l,omitempty"`
	PowerHP    *int     `json:"power_hp,omitempty"`
	PowerKW    *int     `json:"power_kw,omitempty"`
	BatteryKWh *float64 `json:"battery_kwh,omitempty"`
	Torque     string   `json:"torque,omitempty"`
}

// BodyType returns the body type set of the record
func (r *VehicleRecord) BodyType() []string {
	return r.Spec.BodyType
}

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.carwow.co.uk/"))

// nonWord keeps the separators that tell keys apart: "/" in slugs, "+" and "&" in grades
// and "." in engine sizes
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\s_/+&.-]+`)

// NormalizeKeyPart lowercases s, strips other punctuation and joins words with "_".
// An empty part becomes "none" so that absent grade and engine still hash deterministically.
func NormalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "_")
	if s == "" {
		return "none"
	}
	return s
}

// NewRecordID returns a name-based UUID over the normalized (slug, grade, engine) triple
func NewRecordID(slug, grade, engine string) string {
	// "|" never survives normalization, so the parts cannot run into each other
	name := NormalizeKeyPart(slug) + "|" + NormalizeKeyPart(grade) + "|" + NormalizeKeyPart(engine)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// UnionSorted merges two string sets, dropping blanks and duplicates
func UnionSorted(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	for _, v := range slices.Concat(a, b) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func IntPtr(v int) *int {
	return &v
}

func firstInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
