package extractor

import (
	"net/url"
	"strings"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const gallerySelector = ".media-gallery img, .gallery img, [data-gallery] img, .model-hub__gallery img"

// MediaExtractor collects image URLs: gallery sources first, then a scan of every <img>
// when the gallery comes up short
type MediaExtractor struct {
	Max        int
	MinGallery int
	Hosts      []string
}

var GalleryChain = Chain[[]string]{
	{Name: "next_data", Extract: nextDataGallery},
	{Name: "gallery_markup", Extract: markupGallery},
}

func (m MediaExtractor) Extract(p *Page) (Result[domain.MediaSet], bool) {
	if p == nil {
		return Result[domain.MediaSet]{}, false
	}

	var (
		urls    []string
		sources []Provenance
	)
	if res, ok := GalleryChain.Run(p); ok {
		urls = append(urls, res.Value...)
		sources = append(sources, res.Provenance)
	}

	if len(urls) < m.MinGallery {
		if scanned := m.scanImages(p); len(scanned) > 0 {
			urls = append(urls, scanned...)
			sources = append(sources, "img_scan")
		}
	}

	media := DedupeMedia(urls, m.Max)
	if len(media) == 0 {
		return Result[domain.MediaSet]{}, false
	}
	return Result[domain.MediaSet]{Value: media, Provenance: joinProvenance(sources...)}, true
}

func nextDataGallery(p *Page) ([]string, bool) {
	product := p.NextData.Product()
	if product == nil {
		return nil, false
	}
	var urls []string
	if hero := asString(product["heroImage"]); hero != "" {
		urls = append(urls, hero)
	}
	for _, key := range []string{"galleryImages", "mediaGallery", "images"} {
		urls = append(urls, asStrings(product[key])...)
	}
	urls = absoluteURLs(p.URL, urls)
	return urls, len(urls) > 0
}

func markupGallery(p *Page) ([]string, bool) {
	var urls []string
	p.Doc.Find(gallerySelector).Each(func(_ int, img *goquery.Selection) {
		if src := imageSource(img); src != "" {
			urls = append(urls, src)
		}
	})
	urls = absoluteURLs(p.URL, urls)
	return urls, len(urls) > 0
}

func (m MediaExtractor) scanImages(p *Page) []string {
	var candidates []string
	p.Doc.Find("img[src], img[data-src]").Each(func(_ int, img *goquery.Selection) {
		if src := imageSource(img); src != "" {
			candidates = append(candidates, src)
		}
	})

	var urls []string
	for _, u := range absoluteURLs(p.URL, candidates) {
		if m.allowedHost(u) {
			urls = append(urls, u)
		}
	}
	return urls
}

// allowedHost accepts absolute http(s) URLs whose host contains one of the configured hosts
func (m MediaExtractor) allowedHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if len(m.Hosts) == 0 {
		return true
	}
	host := strings.ToLower(u.Host)
	for _, h := range m.Hosts {
		if strings.Contains(host, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "src"} {
		if v, ok := img.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}
	return ""
}

func absoluteURLs(base string, urls []string) []string {
	baseURL, _ := url.Parse(base)
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		if strings.HasPrefix(raw, "//") {
			raw = "https:" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if !u.IsAbs() {
			if baseURL == nil || !baseURL.IsAbs() {
				continue
			}
			u = baseURL.ResolveReference(u)
		}
		out = append(out, u.String())
	}
	return out
}

// NormalizeMediaURL is the dedupe key of an image URL: scheme and host lowercased,
// query, fragment and trailing slash dropped
func NormalizeMediaURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
}

// DedupeMedia keeps the first occurrence of each normalized URL, in order, up to max entries.
// A max of zero or less means no cap.
func DedupeMedia(urls []string, max int) domain.MediaSet {
	seen := make(map[string]struct{}, len(urls))
	out := make(domain.MediaSet, 0, len(urls))
	for _, raw := range urls {
		if max > 0 && len(out) >= max {
			break
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key := NormalizeMediaURL(raw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, raw)
	}
	return out
}
