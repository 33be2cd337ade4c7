package extractor

import (
	"strings"
	"testing"
)

func TestExtractShared(t *testing.T) {
	page := mustPage(t, `<html><head>
		<meta name="description" content="The BMW 3 Series is a compact executive saloon with a sporty drive and a classy cabin.">
	</head><body><h1 class="header__title">BMW 3 Series review &amp; prices</h1></body></html>`)

	shared := ExtractShared(page, "bmw/3-series")
	if shared.Title != "BMW 3 Series" {
		t.Errorf("title = %q", shared.Title)
	}
	if shared.MakeEN != "BMW" || shared.ModelEN != "3 Series" {
		t.Errorf("make/model = %q/%q", shared.MakeEN, shared.ModelEN)
	}
	if !strings.HasPrefix(shared.OverviewEN, "The BMW 3 Series") {
		t.Errorf("overview = %q", shared.OverviewEN)
	}
	if shared.CatalogURL != page.URL {
		t.Errorf("catalog url = %q", shared.CatalogURL)
	}
}

func TestExtractSharedOverviewFallbacks(t *testing.T) {
	page := mustPage(t, `<html><head>
		<meta name="description" content="Your account settings and saved cars are all available in one place here.">
		<meta property="og:description" content="Read our in-depth review of the Mercedes-Benz A-Class hatchback and its rivals.">
	</head><body></body></html>`)

	shared := ExtractShared(page, "mercedes-benz/a-class")
	if !strings.HasPrefix(shared.OverviewEN, "Read our") {
		t.Errorf("overview = %q, want og description", shared.OverviewEN)
	}
	if shared.MakeEN != "Mercedes-Benz" || shared.ModelEN != "A Class" {
		t.Errorf("names from slug = %q/%q", shared.MakeEN, shared.ModelEN)
	}
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		title, maker, model string
		wantMake, wantModel string
	}{
		{"Land Rover Defender", "land-rover", "defender", "Land Rover", "Defender"},
		{"Mercedes-Benz GLC", "mercedes-benz", "glc", "Mercedes-Benz", "GLC"},
		{"Golf", "volkswagen", "golf", "Volkswagen", "Golf"},
		{"", "tesla", "model-3", "Tesla", "Model 3"},
	}
	for _, tt := range tests {
		gotMake, gotModel := splitTitle(tt.title, tt.maker, tt.model)
		if gotMake != tt.wantMake || gotModel != tt.wantModel {
			t.Errorf("splitTitle(%q) = %q/%q, want %q/%q", tt.title, gotMake, gotModel, tt.wantMake, tt.wantModel)
		}
	}
}

func TestExtractColours(t *testing.T) {
	page := mustPage(t, `<html><body>
		<h4 class="model-hub__colour-details-title">Alpine White Free</h4>
		<h4 class="model-hub__colour-details-title">Black Sapphire Metallic £695</h4>
		<span class="colour-name">Alpine White</span>
	</body></html>`)

	got := ExtractColours(page)
	if strings.Join(got, "|") != "Alpine White|Black Sapphire Metallic" {
		t.Fatalf("colours = %v", got)
	}
	if ExtractColours(nil) != nil {
		t.Fatal("unavailable page yields no colours")
	}
}
