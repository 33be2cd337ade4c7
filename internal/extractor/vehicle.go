package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

var (
	titleSuffixRe  = regexp.MustCompile(`(?i)\s*(review|prices?|&).*$`)
	colourPriceRe  = regexp.MustCompile(`(?i)\s*(free|£\s*\d[\d,]*).*$`)
	colourSelector = "h4.model-hub__colour-details-title, .colour-name, .color-option"
)

const (
	minIntroLength = 30
	minMetaLength  = 50
)

var TitleChain = Chain[string]{
	{Name: "header_title", Extract: func(p *Page) (string, bool) {
		return strippedTitle(cleanText(p.Doc.Find("h1.header__title").First()))
	}},
	{Name: "h1", Extract: func(p *Page) (string, bool) {
		return strippedTitle(cleanText(p.Doc.Find("h1").First()))
	}},
	{Name: "next_data", Extract: func(p *Page) (string, bool) {
		name := asString(p.NextData.Product()["name"])
		return name, name != ""
	}},
}

var OverviewChain = Chain[string]{
	{Name: "review_intro", Extract: func(p *Page) (string, bool) {
		review, _ := p.NextData.Product()["review"].(map[string]any)
		intro := asString(review["intro"])
		return intro, len(intro) >= minIntroLength
	}},
	{Name: "meta_description", Extract: func(p *Page) (string, bool) {
		return metaOverview(p.Doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}},
	{Name: "og_description", Extract: func(p *Page) (string, bool) {
		return metaOverview(p.Doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}},
}

// ExtractShared collects the per-vehicle fields of the main page
func ExtractShared(p *Page, slug string) domain.SharedFields {
	makerSlug, modelSlug, _ := strings.Cut(slug, "/")

	shared := domain.SharedFields{
		CatalogURL: p.URL,
	}

	if res, ok := TitleChain.Run(p); ok {
		shared.Title = res.Value
	}
	shared.MakeEN, shared.ModelEN = splitTitle(shared.Title, makerSlug, modelSlug)

	if res, ok := OverviewChain.Run(p); ok {
		shared.OverviewEN = res.Value
	}

	return shared
}

// ExtractColours reads the colour names of a colours sub-page
func ExtractColours(p *Page) []string {
	if p == nil {
		return nil
	}
	var colours []string
	seen := make(map[string]bool)
	p.Doc.Find(colourSelector).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(colourPriceRe.ReplaceAllString(cleanText(s), ""))
		if name == "" || len(name) >= 50 || seen[name] {
			return
		}
		seen[name] = true
		colours = append(colours, name)
	})
	return colours
}

func strippedTitle(title string) (string, bool) {
	title = strings.TrimSpace(titleSuffixRe.ReplaceAllString(title, ""))
	return title, title != ""
}

func metaOverview(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if len(content) < minMetaLength || strings.HasPrefix(content, "Your account") {
		return "", false
	}
	return content, true
}

// splitTitle separates "BMW 3 Series" into make and model using the maker slug.
// Names missing from the title are derived from the slug.
func splitTitle(title, makerSlug, modelSlug string) (string, string) {
	makeName := slugToName(makerSlug)
	modelName := slugToName(modelSlug)
	if title == "" {
		return makeName, modelName
	}

	words := strings.Fields(title)
	for n := 1; n <= len(words); n++ {
		candidate := strings.Join(words[:n], " ")
		normalized := strings.ToLower(strings.ReplaceAll(candidate, " ", "-"))
		if normalized == makerSlug || strings.ReplaceAll(normalized, "-", "") == strings.ReplaceAll(makerSlug, "-", "") {
			makeName = candidate
			if rest := strings.Join(words[n:], " "); rest != "" {
				modelName = rest
			}
			return makeName, modelName
		}
	}

	return makeName, title
}

// slugToName turns "mercedes-benz" into "Mercedes-Benz" and "3-series" into "3 Series"
func slugToName(slug string) string {
	if slug == "" {
		return ""
	}
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		r := []rune(part)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		parts[i] = string(r)
	}
	if len(parts) == 2 && isBrandPair(slug) {
		return strings.Join(parts, "-")
	}
	return strings.Join(parts, " ")
}

// isBrandPair reports makers whose display name keeps the hyphen
func isBrandPair(slug string) bool {
	switch slug {
	case "mercedes-benz", "rolls-royce":
		return true
	}
	return false
}
