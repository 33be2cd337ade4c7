package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"carwow/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is one fetched page prepared for the extraction strategies
type Page struct {
	URL      string
	Doc      *goquery.Document
	Text     string    // visible text, whitespace collapsed
	NextData *NextData // nil when the page carries no __NEXT_DATA__ payload
}

func NewPage(raw *domain.RawPage) (*Page, error) {
	if raw == nil {
		return nil, nil
	}
	return NewPageFromHTML(raw.FinalURL, raw.Body)
}

func NewPageFromHTML(pageURL, body string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &domain.ParseError{Field: "document", Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	return &Page{
		URL:      pageURL,
		Doc:      doc,
		Text:     visibleText(doc.Selection),
		NextData: parseNextData(doc),
	}, nil
}

// visibleText joins all text nodes outside script/style with single spaces
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NextData is the decoded __NEXT_DATA__ JSON payload of a page
type NextData struct {
	root map[string]any
}

func parseNextData(doc *goquery.Document) *NextData {
	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil
	}
	var root map[string]any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil
	}
	return &NextData{root: root}
}

// Get walks the payload by object keys and returns nil when any key is missing
func (n *NextData) Get(path ...string) any {
	if n == nil {
		return nil
	}
	var cur any = n.root
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// PageProps returns props.pageProps[key]
func (n *NextData) PageProps(key ...string) any {
	return n.Get(append([]string{"props", "pageProps"}, key...)...)
}

// Product returns props.pageProps.product or nil
func (n *NextData) Product() map[string]any {
	m, _ := n.PageProps("product").(map[string]any)
	return m
}

var numberRe = regexp.MustCompile(`\d[\d,]*`)

// parseNumber returns the first integer in s, ignoring thousands separators
func parseNumber(s string) (int, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, key := range []string{"url", "src", "name", "label"} {
			if s, ok := t[key].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func asInt(v any) *int {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return domain.IntPtr(int(t))
		}
	case string:
		if n, ok := parseNumber(t); ok {
			return domain.IntPtr(n)
		}
	}
	return nil
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asMaps(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
