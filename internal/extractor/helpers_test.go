package extractor

import "testing"

func mustPage(t *testing.T, body string) *Page {
	t.Helper()
	p, err := NewPageFromHTML("https://www.carwow.co.uk/bmw/3-series", body)
	if err != nil {
		t.Fatalf("NewPageFromHTML: %v", err)
	}
	return p
}

func intValue(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
