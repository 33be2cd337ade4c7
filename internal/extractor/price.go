package extractor

import (
	"regexp"
	"strings"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

var (
	usedPriceRe  = regexp.MustCompile(`(?i)\b(?:used(?:\s+from)?|pre-owned)\s*:?\s*£\s*(\d[\d,]*)`)
	rangePriceRe = regexp.MustCompile(`(?i)(?:rrp\s*:?\s*)?£\s*(\d[\d,]*)\s*(?:-|–|to)\s*£\s*(\d[\d,]*)`)
)

const (
	currentPriceSelector = "[data-price-range], .deal-summary__price, .summary-list__item--price"
	legacyPriceSelector  = ".price-range, .prices__rrp, .model-hub__price"
)

// ParsePriceText reads the two price shapes from free text. A "Used: £N" token sets
// UsedGBP only, an "RRP £N - £M" token sets MinGBP and MaxGBP with MinGBP <= MaxGBP.
func ParsePriceText(text string) domain.PriceInfo {
	var info domain.PriceInfo

	if loc := usedPriceRe.FindStringSubmatchIndex(text); loc != nil {
		if n, ok := parseNumber(text[loc[2]:loc[3]]); ok {
			info.UsedGBP = domain.IntPtr(n)
		}
		// the used token must not be read again as the start of a range
		text = text[:loc[0]] + " " + text[loc[1]:]
	}

	if m := rangePriceRe.FindStringSubmatch(text); m != nil {
		lo, okLo := parseNumber(m[1])
		hi, okHi := parseNumber(m[2])
		if okLo && okHi {
			if lo > hi {
				lo, hi = hi, lo
			}
			info.MinGBP = domain.IntPtr(lo)
			info.MaxGBP = domain.IntPtr(hi)
		}
	}

	return info
}

func rangeOnly(info domain.PriceInfo) (domain.PriceInfo, bool) {
	out := domain.PriceInfo{MinGBP: info.MinGBP, MaxGBP: info.MaxGBP}
	return out, out.MinGBP != nil && out.MaxGBP != nil
}

func usedOnly(info domain.PriceInfo) (domain.PriceInfo, bool) {
	out := domain.PriceInfo{UsedGBP: info.UsedGBP}
	return out, out.UsedGBP != nil
}

func selectorText(selector string) func(p *Page) string {
	return func(p *Page) string {
		var parts []string
		p.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, cleanText(s))
		})
		return strings.Join(parts, " ")
	}
}

func pageText(p *Page) string {
	return p.Text
}

func priceStrategy(name string, source func(*Page) string, pick func(domain.PriceInfo) (domain.PriceInfo, bool)) Strategy[domain.PriceInfo] {
	return Strategy[domain.PriceInfo]{
		Name: name,
		Extract: func(p *Page) (domain.PriceInfo, bool) {
			text := source(p)
			if text == "" {
				return domain.PriceInfo{}, false
			}
			return pick(ParsePriceText(text))
		},
	}
}

func nextDataRange(p *Page) (domain.PriceInfo, bool) {
	product := p.NextData.Product()
	if product == nil {
		return domain.PriceInfo{}, false
	}
	lo := asInt(product["priceMin"])
	if lo == nil {
		lo = asInt(product["rrpMin"])
	}
	hi := asInt(product["priceMax"])
	if hi == nil {
		hi = asInt(product["rrpMax"])
	}
	if lo == nil || hi == nil {
		return domain.PriceInfo{}, false
	}
	if *lo > *hi {
		lo, hi = hi, lo
	}
	return domain.PriceInfo{MinGBP: lo, MaxGBP: hi}, true
}

// RangePriceChain finds the RRP range
var RangePriceChain = Chain[domain.PriceInfo]{
	{Name: "next_data", Extract: nextDataRange},
	priceStrategy("current_markup", selectorText(currentPriceSelector), rangeOnly),
	priceStrategy("legacy_markup", selectorText(legacyPriceSelector), rangeOnly),
	priceStrategy("text", pageText, rangeOnly),
}

// UsedPriceChain finds the single used price
var UsedPriceChain = Chain[domain.PriceInfo]{
	priceStrategy("current_markup", selectorText(currentPriceSelector), usedOnly),
	priceStrategy("legacy_markup", selectorText(legacyPriceSelector), usedOnly),
	priceStrategy("text", pageText, usedOnly),
}

// ExtractPrice runs both price chains over pages in order. Pass the specifications page first
// and the main page after it; a nil page is skipped so an unavailable sub-page falls back to
// the main page. Fields nothing matched stay nil.
func ExtractPrice(pages ...*Page) (Result[domain.PriceInfo], bool) {
	var (
		out      domain.PriceInfo
		rangeSrc Provenance
		usedSrc  Provenance
	)

	if res, ok := RangePriceChain.RunPages(pages...); ok {
		out.MinGBP, out.MaxGBP = res.Value.MinGBP, res.Value.MaxGBP
		rangeSrc = "range:" + res.Provenance
	}
	if res, ok := UsedPriceChain.RunPages(pages...); ok {
		out.UsedGBP = res.Value.UsedGBP
		usedSrc = "used:" + res.Provenance
	}

	if out.IsEmpty() {
		return Result[domain.PriceInfo]{}, false
	}
	return Result[domain.PriceInfo]{Value: out, Provenance: joinProvenance(rangeSrc, usedSrc)}, true
}
