package extractor

import "strings"

// Provenance names the strategy, or strategies joined by "+", that produced a value
type Provenance string

const ProvenanceNone Provenance = ""

// Result is an extracted value tagged with where it came from
type Result[T any] struct {
	Value      T
	Provenance Provenance
}

// Strategy is one way of extracting a value from a page. Extract returns false when the
// pattern it knows does not match; it never returns a zero value as a match.
type Strategy[T any] struct {
	Name    string
	Extract func(p *Page) (T, bool)
}

// Chain is an ordered list of strategies, most current markup first
type Chain[T any] []Strategy[T]

// Run returns the result of the first strategy that matches
func (c Chain[T]) Run(p *Page) (Result[T], bool) {
	if p == nil {
		return Result[T]{}, false
	}
	for _, s := range c {
		if v, ok := s.Extract(p); ok {
			return Result[T]{Value: v, Provenance: Provenance(s.Name)}, true
		}
	}
	return Result[T]{}, false
}

// RunPages runs the chain against each page in turn and returns the first match.
// Nil pages (unavailable resources) are skipped.
func (c Chain[T]) RunPages(pages ...*Page) (Result[T], bool) {
	for _, p := range pages {
		if res, ok := c.Run(p); ok {
			return res, true
		}
	}
	return Result[T]{}, false
}

// RunAll returns every matching result in chain order
func (c Chain[T]) RunAll(p *Page) []Result[T] {
	if p == nil {
		return nil
	}
	var out []Result[T]
	for _, s := range c {
		if v, ok := s.Extract(p); ok {
			out = append(out, Result[T]{Value: v, Provenance: Provenance(s.Name)})
		}
	}
	return out
}

func joinProvenance(parts ...Provenance) Provenance {
	var names []string
	for _, p := range parts {
		if p != ProvenanceNone {
			names = append(names, string(p))
		}
	}
	return Provenance(strings.Join(names, "+"))
}
