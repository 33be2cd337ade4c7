package extractor

import "testing"

func TestParsePriceText(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  any
		max  any
		used any
	}{
		{"used only", "Used: £38,270", nil, nil, 38270},
		{"rrp range", "RRP £110,960 - £166,425", 110960, 166425, nil},
		{"range without rrp", "Prices £21,000 – £29,500 for new", 21000, 29500, nil},
		{"reversed range", "RRP £45,000 - £35,000", 35000, 45000, nil},
		{"used from", "Used from £12,995", nil, nil, 12995},
		{"pre-owned", "Pre-owned £9,000", nil, nil, 9000},
		{"both shapes", "RRP £35,000 - £45,000 Used: £20,100", 35000, 45000, 20100},
		{"used range is not a new price range", "Used from £20,000 - £30,000", nil, nil, 20000},
		{"malformed", "RRP £ - £", nil, nil, nil},
		{"absent", "Contact dealer for pricing", nil, nil, nil},
		{"single new price is ignored", "From £30,000", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePriceText(tt.text)
			if intValue(got.MinGBP) != tt.min || intValue(got.MaxGBP) != tt.max || intValue(got.UsedGBP) != tt.used {
				t.Errorf("ParsePriceText(%q) = {min:%v max:%v used:%v}, want {min:%v max:%v used:%v}",
					tt.text, intValue(got.MinGBP), intValue(got.MaxGBP), intValue(got.UsedGBP), tt.min, tt.max, tt.used)
			}
		})
	}
}

func TestExtractPriceProvenance(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div class="deal-summary__price">RRP £35,000 - £45,000</div>
		<p>Used: £22,500</p>
	</body></html>`)

	res, ok := ExtractPrice(page)
	if !ok {
		t.Fatal("want price")
	}
	if *res.Value.MinGBP != 35000 || *res.Value.MaxGBP != 45000 || *res.Value.UsedGBP != 22500 {
		t.Fatalf("got %+v", res.Value)
	}
	if res.Provenance != "range:current_markup+used:text" {
		t.Fatalf("provenance = %q", res.Provenance)
	}
}

func TestExtractPriceFromNextData(t *testing.T) {
	page := mustPage(t, `<html><body>
		<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"product":{"rrpMin":31000,"rrpMax":52000}}}}</script>
		<div class="price-range">RRP £1 - £2</div>
	</body></html>`)

	res, ok := ExtractPrice(page)
	if !ok || *res.Value.MinGBP != 31000 || *res.Value.MaxGBP != 52000 {
		t.Fatalf("got %+v %v, want next_data range", res.Value, ok)
	}
	if res.Provenance != "range:next_data" {
		t.Fatalf("provenance = %q", res.Provenance)
	}
}

func TestExtractPriceFallsBackToMainPage(t *testing.T) {
	main := mustPage(t, `<html><body><p>RRP £35,000 - £45,000</p></body></html>`)

	// specifications page unavailable
	res, ok := ExtractPrice(nil, main)
	if !ok || *res.Value.MinGBP != 35000 {
		t.Fatalf("got %+v %v, want main page range", res.Value, ok)
	}

	// specifications page present without prices
	specs := mustPage(t, `<html><body><dl><dt>Doors</dt><dd>4</dd></dl></body></html>`)
	res, ok = ExtractPrice(specs, main)
	if !ok || *res.Value.MaxGBP != 45000 {
		t.Fatalf("got %+v %v, want main page range", res.Value, ok)
	}
}

func TestExtractPriceAbsent(t *testing.T) {
	page := mustPage(t, `<html><body><p>No prices yet</p></body></html>`)
	res, ok := ExtractPrice(page)
	if ok {
		t.Fatalf("want no price, got %+v", res.Value)
	}
	if !res.Value.IsEmpty() {
		t.Fatalf("absent price must leave every field nil, got %+v", res.Value)
	}
}
