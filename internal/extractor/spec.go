package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

var (
	doorsTextRe = regexp.MustCompile(`(?i)\b(\d)\s*-?\s*doors?\b`)
	seatsTextRe = regexp.MustCompile(`(?i)\b(\d)\s*-?\s*seats?\b`)
	bhpTextRe   = regexp.MustCompile(`(?i)\b(\d{2,4})\s*(?:bhp|hp|ps)\b`)
	mmRe        = regexp.MustCompile(`\d[\d,]{2,5}`)
)

var (
	doorKeys         = []string{"doors", "number of doors", "no. of doors"}
	seatKeys         = []string{"seats", "number of seats", "no. of seats", "seating capacity"}
	fuelKeys         = []string{"fuel", "fuel type", "fuel types", "engine type"}
	transmissionKeys = []string{"transmission", "gearbox", "transmission type"}
	driveKeys        = []string{"drive type", "drivetrain", "drive", "driven wheels"}
	powerKeys        = []string{"power", "max power", "power output", "bhp"}
	lengthKeys       = []string{"length", "overall length"}
	widthKeys        = []string{"width", "overall width", "width (excl. mirrors)"}
	heightKeys       = []string{"height", "overall height"}
)

// SpecChain lists the specification strategies. Unlike the other chains every matching
// strategy contributes: a field one strategy leaves empty is filled by the next.
var SpecChain = Chain[domain.SpecSheet]{
	{Name: "next_data", Extract: nextDataSpec},
	{Name: "definition_list", Extract: definitionListSpec},
	{Name: "table", Extract: tableSpec},
	{Name: "text", Extract: textSpec},
}

// ExtractSpec merges the spec strategies over pages in order, earlier values winning
func ExtractSpec(pages ...*Page) (Result[domain.SpecSheet], bool) {
	var (
		sheet   domain.SpecSheet
		sources []Provenance
	)
	for _, p := range pages {
		for _, res := range SpecChain.RunAll(p) {
			sheet.Merge(res.Value)
			sources = append(sources, res.Provenance)
		}
	}
	if isEmptySpec(sheet) {
		return Result[domain.SpecSheet]{}, false
	}
	return Result[domain.SpecSheet]{Value: sheet, Provenance: joinProvenance(dedupe(sources)...)}, true
}

func nextDataSpec(p *Page) (domain.SpecSheet, bool) {
	product := p.NextData.Product()
	if product == nil {
		return domain.SpecSheet{}, false
	}
	sheet := domain.SpecSheet{
		Doors:        asInt(product["numberOfDoors"]),
		Seats:        asInt(product["numberOfSeats"]),
		Fuel:         asString(product["fuelType"]),
		Transmission: asString(product["transmission"]),
		DriveType:    asString(product["driveType"]),
		BodyType:     domain.UnionSorted(asStrings(product["bodyType"]), nil),
	}
	return sheet, !isEmptySpec(sheet)
}

func definitionListSpec(p *Page) (domain.SpecSheet, bool) {
	pairs := make(map[string]string)
	p.Doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		addPair(pairs, cleanText(dt), cleanText(dd))
	})
	return specFromPairs(pairs)
}

func tableSpec(p *Page) (domain.SpecSheet, bool) {
	pairs := make(map[string]string)
	p.Doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		addPair(pairs, cleanText(cells.Eq(0)), cleanText(cells.Eq(1)))
	})
	return specFromPairs(pairs)
}

func textSpec(p *Page) (domain.SpecSheet, bool) {
	var sheet domain.SpecSheet
	if m := doorsTextRe.FindStringSubmatch(p.Text); m != nil {
		sheet.Doors = intFrom(m[1])
	}
	if m := seatsTextRe.FindStringSubmatch(p.Text); m != nil {
		sheet.Seats = intFrom(m[1])
	}
	if m := bhpTextRe.FindStringSubmatch(p.Text); m != nil {
		sheet.PowerBHP = intFrom(m[1])
	}
	return sheet, !isEmptySpec(sheet)
}

func addPair(pairs map[string]string, key, value string) {
	key = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(key), ":"))
	if key == "" || value == "" {
		return
	}
	if _, seen := pairs[key]; !seen {
		pairs[key] = value
	}
}

// specFromPairs maps normalized key/value pairs onto the sheet; unknown keys go to Extra
func specFromPairs(pairs map[string]string) (domain.SpecSheet, bool) {
	if len(pairs) == 0 {
		return domain.SpecSheet{}, false
	}

	used := make(map[string]bool)
	lookup := func(keys []string) string {
		for _, k := range keys {
			if v, ok := pairs[k]; ok {
				used[k] = true
				return v
			}
		}
		return ""
	}

	sheet := domain.SpecSheet{
		Doors:        intFrom(lookup(doorKeys)),
		Seats:        intFrom(lookup(seatKeys)),
		PowerBHP:     intFrom(lookup(powerKeys)),
		Fuel:         lookup(fuelKeys),
		Transmission: lookup(transmissionKeys),
		DriveType:    lookup(driveKeys),
		DimensionsMM: formatDimensions(lookup(lengthKeys), lookup(widthKeys), lookup(heightKeys)),
	}

	for k, v := range pairs {
		if used[k] {
			continue
		}
		if sheet.Extra == nil {
			sheet.Extra = make(map[string]string)
		}
		sheet.Extra[k] = v
	}

	return sheet, !isEmptySpec(sheet)
}

// formatDimensions renders "L x W x H mm" when all three millimetre values are present
func formatDimensions(length, width, height string) string {
	var mm [3]int
	for i, raw := range []string{length, width, height} {
		n, ok := parseNumber(mmRe.FindString(raw))
		if !ok || n < 100 || n > 9999 {
			return ""
		}
		mm[i] = n
	}
	return fmt.Sprintf("%d x %d x %d mm", mm[0], mm[1], mm[2])
}

func intFrom(s string) *int {
	if n, ok := parseNumber(s); ok {
		return domain.IntPtr(n)
	}
	return nil
}

func isEmptySpec(s domain.SpecSheet) bool {
	return s.Doors == nil && s.Seats == nil && s.PowerBHP == nil &&
		s.DimensionsMM == "" && s.DriveType == "" && s.Fuel == "" && s.Transmission == "" &&
		len(s.BodyType) == 0 && len(s.Extra) == 0
}

func dedupe(in []Provenance) []Provenance {
	seen := make(map[Provenance]bool, len(in))
	out := in[:0:0]
	for _, p := range in {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
