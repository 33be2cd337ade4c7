package classifier

import (
	"net/url"
	"regexp"
	"strings"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const (
	ReasonInScope     = "in_scope"
	ReasonUnparseable = "unparseable"
	ReasonForeignHost = "foreign_host"
	ReasonListView    = "list_view"
	ReasonBadShape    = "bad_shape"
	ReasonExcluded    = "excluded_token:"
	ReasonListPage    = "list_page_markup"
)

// defaultExclude are path segments naming categories, filters and listing views rather than a model
var defaultExclude = []string{
	"automatic", "manual", "lease", "leasing", "used", "deals", "finance", "reviews", "prices",
	"news", "hybrid", "electric", "suv", "suvs", "estate", "hatchback", "saloon", "coupe",
	"convertible", "sports", "mpv", "people-carriers", "two-tone", "editorial", "advice",
	"car-chooser", "blue", "green", "red", "black", "grey", "orange", "white", "silver",
}

// listQueryKeys mark paginated or filtered listing views
var listQueryKeys = []string{"page", "sort", "filter", "view"}

var segmentRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Vocabulary configures what the classifier accepts
type Vocabulary struct {
	Host     string // when set, absolute URLs on other hosts are rejected
	Exclude  map[string]struct{}
	Suffixes map[string]struct{}
}

// NewVocabulary builds the default exclusion vocabulary extended with extra tokens
func NewVocabulary(host string, extraExclude, suffixes []string) Vocabulary {
	v := Vocabulary{
		Host:     strings.TrimPrefix(strings.ToLower(host), "www."),
		Exclude:  make(map[string]struct{}, len(defaultExclude)+len(extraExclude)),
		Suffixes: make(map[string]struct{}, len(suffixes)),
	}
	for _, tok := range append(defaultExclude, extraExclude...) {
		v.Exclude[strings.ToLower(tok)] = struct{}{}
	}
	for _, s := range suffixes {
		v.Suffixes[strings.ToLower(s)] = struct{}{}
	}
	return v
}

type Classifier struct {
	vocab Vocabulary
}

func New(vocab Vocabulary) *Classifier {
	return &Classifier{vocab: vocab}
}

// Classify decides whether rawURL points at an individual vehicle page.
// A URL containing an exclusion token is rejected even when its shape is valid.
func (c *Classifier) Classify(rawURL string) domain.CatalogURL {
	out := domain.CatalogURL{URL: rawURL}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		out.Verdict = reject(ReasonUnparseable)
		return out
	}

	if u.Host != "" && c.vocab.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host != c.vocab.Host {
			out.Verdict = reject(ReasonForeignHost)
			return out
		}
	}

	query := u.Query()
	for key := range query {
		for _, listKey := range listQueryKeys {
			if strings.HasPrefix(strings.ToLower(key), listKey) {
				out.Verdict = reject(ReasonListView)
				return out
			}
		}
	}

	segments := strings.Split(strings.Trim(strings.ToLower(u.Path), "/"), "/")

	for _, seg := range segments {
		if tok, excluded := c.excludedToken(seg); excluded {
			out.Verdict = reject(ReasonExcluded + tok)
			return out
		}
	}

	if !c.hasVehicleShape(segments) {
		out.Verdict = reject(ReasonBadShape)
		return out
	}

	out.Slug = segments[0] + "/" + segments[1]
	out.Verdict = domain.Classification{InScope: true, Reason: ReasonInScope}
	return out
}

// excludedToken finds the first exclusion token among the hyphen-separated words of a segment,
// so multi-word tokens such as "people-carriers" match as well as whole segments
func (c *Classifier) excludedToken(segment string) (string, bool) {
	words := strings.Split(segment, "-")
	for i := range words {
		for j := i + 1; j <= len(words); j++ {
			tok := strings.Join(words[i:j], "-")
			if _, excluded := c.vocab.Exclude[tok]; excluded {
				return tok, true
			}
		}
	}
	return "", false
}

func (c *Classifier) hasVehicleShape(segments []string) bool {
	switch len(segments) {
	case 2:
	case 3:
		if _, ok := c.vocab.Suffixes[segments[2]]; !ok {
			return false
		}
	default:
		return false
	}
	return segmentRe.MatchString(segments[0]) && segmentRe.MatchString(segments[1])
}

// ClassifyPage rejects fetched pages whose markup is a listing grid rather than a single vehicle
func ClassifyPage(doc *goquery.Document) domain.Classification {
	if doc.Find("div.filter-panel, div.listing-grid").Length() > 0 {
		return reject(ReasonListPage)
	}
	return domain.Classification{InScope: true, Reason: ReasonInScope}
}

func reject(reason string) domain.Classification {
	return domain.Classification{InScope: false, Reason: reason}
}
