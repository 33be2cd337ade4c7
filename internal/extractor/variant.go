package extractor

import (
	"regexp"
	"strings"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

var poundRe = regexp.MustCompile(`£\s*(\d[\d,]*)`)

const (
	gradeSectionSelector = ".trim-card, section[data-grade], .grade-section"
	gradeNameSelector    = ".trim-card__name, .grade-name, h2, h3, h4"
	engineRowSelector    = ".trim-card__engine, [data-engine], .engine-row, tbody tr"
	legacyGradeSelector  = "h4.trim-name, .trim-name, .variant-title"
)

// VariantChain lists the grade/engine strategies. The first one that yields any tuple wins.
var VariantChain = Chain[[]domain.Variant]{
	{Name: "next_data", Extract: nextDataVariants},
	{Name: "grade_sections", Extract: sectionVariants},
	{Name: "legacy_headings", Extract: legacyVariants},
}

func ExtractVariants(p *Page) (Result[[]domain.Variant], bool) {
	return VariantChain.Run(p)
}

func nextDataVariants(p *Page) ([]domain.Variant, bool) {
	items := asMaps(p.NextData.PageProps("trims"))
	if len(items) == 0 {
		items = asMaps(p.NextData.PageProps("productCardList"))
	}

	var out []domain.Variant
	for _, item := range items {
		grade := asString(item["name"])
		if grade == "" {
			grade = asString(item["trimName"])
		}
		if len(grade) < 2 {
			continue
		}
		price := asInt(item["price"])
		if price == nil {
			price = asInt(item["rrp"])
		}
		out = append(out, domain.Variant{
			Grade:          grade,
			Engine:         asString(item["engine"]),
			EnginePriceGBP: price,
			Spec: domain.SpecSheet{
				Fuel:         asString(item["fuelType"]),
				Transmission: asString(item["transmission"]),
				DriveType:    asString(item["driveType"]),
				PowerBHP:     asInt(item["power"]),
			},
		})
	}
	return out, len(out) > 0
}

// sectionVariants reads one section per grade, each listing zero or more engines.
// A grade without engine rows still yields one tuple with no engine.
func sectionVariants(p *Page) ([]domain.Variant, bool) {
	var out []domain.Variant
	p.Doc.Find(gradeSectionSelector).Each(func(_ int, section *goquery.Selection) {
		grade := strings.TrimSpace(section.AttrOr("data-grade", ""))
		if grade == "" {
			grade = cleanText(section.Find(gradeNameSelector).First())
		}
		if len(grade) < 2 {
			return
		}

		before := len(out)
		section.Find(engineRowSelector).Each(func(_ int, row *goquery.Selection) {
			engine := strings.TrimSpace(row.AttrOr("data-engine", ""))
			if engine == "" {
				engine = cleanText(row.Find(".engine-name, .trim-card__engine-name, td").First())
			}
			if engine == "" {
				engine = strings.TrimSpace(poundRe.ReplaceAllString(cleanText(row), ""))
			}
			if engine == "" {
				return
			}
			out = append(out, domain.Variant{
				Grade:          grade,
				Engine:         engine,
				EnginePriceGBP: poundAmount(cleanText(row.Find(".engine-price, .price").First()), cleanText(row)),
			})
		})

		if len(out) == before {
			out = append(out, domain.Variant{Grade: grade})
		}
	})
	return out, len(out) > 0
}

func legacyVariants(p *Page) ([]domain.Variant, bool) {
	var out []domain.Variant
	p.Doc.Find(legacyGradeSelector).Each(func(_ int, s *goquery.Selection) {
		if grade := cleanText(s); len(grade) >= 2 {
			out = append(out, domain.Variant{Grade: grade})
		}
	})
	return out, len(out) > 0
}

// poundAmount returns the first £ amount found in the candidates, in order
func poundAmount(candidates ...string) *int {
	for _, c := range candidates {
		if m := poundRe.FindStringSubmatch(c); m != nil {
			if n, ok := parseNumber(m[1]); ok {
				return domain.IntPtr(n)
			}
		}
	}
	return nil
}
