package client

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"sync"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// bodyCategories maps category listing paths to the body type they stand for
var bodyCategories = map[string]string{
	"suv":             "SUV",
	"estate":          "Estate",
	"hatchback":       "Hatchback",
	"saloon":          "Saloon",
	"coupe":           "Coupe",
	"convertible":     "Convertible",
	"people-carriers": "People Carrier",
	"sports":          "Sports Car",
}

var (
	makerSlugRe = regexp.MustCompile(`^[a-z][a-z-]{1,18}$`)
	modelPathRe = regexp.MustCompile(`^/([a-z0-9-]+)/([a-z0-9-]+)/?$`)
)

// nonMakers are first path segments of site sections that are not brands
var nonMakers = map[string]struct{}{
	"news": {}, "review": {}, "reviews": {}, "blog": {}, "help": {}, "about": {}, "finance": {},
	"lease": {}, "used": {}, "sell": {}, "deals": {}, "search": {}, "compare": {}, "tools": {},
	"electric": {}, "hybrid": {}, "suv": {}, "mpv": {}, "hatchback": {}, "saloon": {},
	"coupe": {}, "estate": {}, "convertible": {}, "people-carriers": {}, "sports": {}, "brands": {},
}

// Discovery finds candidate vehicle URLs on the site
type Discovery interface {
	Makers(ctx context.Context) []string
	Stream(ctx context.Context, makers []string) <-chan string
	BodyTypes(ctx context.Context) map[string][]string
}

type discovery struct {
	site           SiteClient
	fallbackMakers []string

	bodyMutex  sync.Mutex
	bodyTypes  map[string][]string
	bodyLoaded bool
}

func NewDiscovery(site SiteClient, fallbackMakers []string) Discovery {
	return &discovery{
		site:           site,
		fallbackMakers: fallbackMakers,
	}
}

// Makers reads the brand index. The configured maker list is used when the index is
// unavailable or lists nothing.
func (d *discovery) Makers(ctx context.Context) []string {
	page, err := d.site.Fetch(ctx, d.site.BaseURL()+"/brands")
	if err != nil {
		log.Warnf("⚠️ Brand index unavailable, using %d configured makers: %v", len(d.fallbackMakers), err)
		return d.fallbackMakers
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		log.Warnf("⚠️ Failed to parse brand index: %v", err)
		return d.fallbackMakers
	}

	makers := brandSlugs(doc)
	if len(makers) == 0 {
		log.Warnf("⚠️ Brand index lists no makers, using %d configured makers", len(d.fallbackMakers))
		return d.fallbackMakers
	}

	log.Infof("✅ Found %d makers on the brand index", len(makers))
	return makers
}

// Stream sends the model page URLs of each maker in turn. The channel is closed when every
// maker is done or ctx is cancelled.
func (d *discovery) Stream(ctx context.Context, makers []string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		for _, maker := range makers {
			models, err := d.modelSlugs(ctx, maker)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Errorf("❌ Failed to list models of %s: %v", maker, err)
				continue
			}

			log.Infof("🔄 %s: %d models", maker, len(models))
			for _, model := range models {
				select {
				case <-ctx.Done():
					return
				case out <- d.site.BaseURL() + "/" + maker + "/" + model:
				}
			}
		}
	}()

	return out
}

func (d *discovery) modelSlugs(ctx context.Context, maker string) ([]string, error) {
	page, err := d.site.Fetch(ctx, d.site.BaseURL()+"/"+maker)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, &domain.ParseError{Field: "maker_page", Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	var models []string
	add := func(model string) {
		model = strings.TrimSuffix(strings.ToLower(strings.Trim(model, "/")), "/review")
		if model != "" && !strings.Contains(model, "/") && !slices.Contains(models, model) {
			models = append(models, model)
		}
	}

	for _, model := range nextDataModels(doc, maker) {
		add(model)
	}

	doc.Find(`a[href*="/` + maker + `/"]`).Each(func(_ int, a *goquery.Selection) {
		if m, ok := modelFromHref(a.AttrOr("href", ""), maker); ok {
			add(m)
		}
	})

	return models, nil
}

// nextDataModels reads productCardList[].url and models[].slug from the maker page payload
func nextDataModels(doc *goquery.Document, maker string) []string {
	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil
	}

	var payload struct {
		Props struct {
			PageProps struct {
				ProductCardList []struct {
					URL string `json:"url"`
				} `json:"productCardList"`
				Models []struct {
					Slug string `json:"slug"`
				} `json:"models"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Debugf("Maker page %s has unreadable __NEXT_DATA__: %v", maker, err)
		return nil
	}

	var out []string
	for _, card := range payload.Props.PageProps.ProductCardList {
		if m, ok := modelFromHref(card.URL, maker); ok {
			out = append(out, m)
		}
	}
	for _, m := range payload.Props.PageProps.Models {
		slug := strings.TrimPrefix(strings.Trim(m.Slug, "/"), maker+"/")
		if slug != "" {
			out = append(out, slug)
		}
	}
	return out
}

// modelFromHref returns the model segment of /{maker}/{model} or /{maker}/{model}/review
func modelFromHref(href, maker string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	path := strings.TrimSuffix(strings.ToLower(u.Path), "/review")
	m := modelPathRe.FindStringSubmatch(path)
	if m == nil || m[1] != maker {
		return "", false
	}
	return m[2], true
}

func brandSlugs(doc *goquery.Document) []string {
	var makers []string
	doc.Find(`a[href*="/brands/"]`).Each(func(_ int, a *goquery.Selection) {
		u, err := url.Parse(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		_, rest, ok := strings.Cut(strings.ToLower(u.Path), "/brands/")
		if !ok {
			return
		}
		slug := strings.Trim(rest, "/")
		if _, skip := nonMakers[slug]; skip || !makerSlugRe.MatchString(slug) {
			return
		}
		if !slices.Contains(makers, slug) {
			makers = append(makers, slug)
		}
	})
	slices.Sort(makers)
	return makers
}

// BodyTypes maps maker/model slugs to the body types whose category listing includes them.
// The category pages are read once per run. A category that cannot be fetched is skipped.
func (d *discovery) BodyTypes(ctx context.Context) map[string][]string {
	d.bodyMutex.Lock()
	defer d.bodyMutex.Unlock()

	if d.bodyLoaded {
		return d.bodyTypes
	}

	types := make(map[string][]string)
	for _, category := range slices.Sorted(maps.Keys(bodyCategories)) {
		page, err := d.site.Fetch(ctx, d.site.BaseURL()+"/"+category)
		if err != nil {
			if ctx.Err() != nil {
				return types
			}
			log.Warnf("⚠️ Body type category %s unavailable: %v", category, err)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
		if err != nil {
			continue
		}

		label := bodyCategories[category]
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			u, err := url.Parse(a.AttrOr("href", ""))
			if err != nil {
				return
			}
			m := modelPathRe.FindStringSubmatch(strings.ToLower(u.Path))
			if m == nil {
				return
			}
			if _, skip := nonMakers[m[1]]; skip {
				return
			}
			slug := m[1] + "/" + m[2]
			types[slug] = domain.UnionSorted(types[slug], []string{label})
		})
	}

	log.Infof("✅ Body types known for %d models", len(types))
	d.bodyTypes = types
	d.bodyLoaded = true
	return types
}
