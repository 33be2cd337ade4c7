package domain

import (
	"encoding/json"
	"time"
)

// SpecDocument is the detail document stored alongside each record as spec_json
type SpecDocument struct {
	RawSpecifications SpecSheet         `json:"raw_specifications"`
	GradeEngine       map[string]string `json:"grade_engine_details"`
	BodyTypes         []string          `json:"body_types"`
	AvailableColors   []string          `json:"available_colors"`
	MediaCount        int               `json:"media_count"`
	ScrapeDate        time.Time         `json:"scrape_date"`
	ExchangeRate      float64           `json:"exchange_rate_gbp_to_jpy,omitempty"`
	EngineParsed      *Engine           `json:"engine_parsed,omitempty"`
	FuelClass         string            `json:"fuel_class,omitempty"`
}

func (r *VehicleRecord) SpecDocument() SpecDocument {
	gradeEngine := map[string]string{}
	for k, v := range map[string]string{
		"grade":        r.Grade,
		"engine":       r.Engine,
		"fuel":         r.Fuel,
		"transmission": r.Transmission,
		"drive_type":   r.DriveType,
	} {
		if v != "" {
			gradeEngine[k] = v
		}
	}

	return SpecDocument{
		RawSpecifications: r.Spec,
		GradeEngine:       gradeEngine,
		BodyTypes:         nonNil(r.Spec.BodyType),
		AvailableColors:   nonNil(r.Colors),
		MediaCount:        len(r.Media),
		ScrapeDate:        r.UpdatedAt,
		ExchangeRate:      r.Price.ExchangeRate,
		EngineParsed:      r.EngineDetails,
		FuelClass:         r.FuelClass,
	}
}

// SpecJSON renders the spec document of the record
func (r *VehicleRecord) SpecJSON() ([]byte, error) {
	return json.Marshal(r.SpecDocument())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
