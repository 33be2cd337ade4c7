package extractor

import "testing"

func TestExtractVariantsGradeSections(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div class="trim-card">
			<h3 class="trim-card__name">M Sport</h3>
			<ul>
				<li class="trim-card__engine"><span class="engine-name">2.0 Diesel</span> <span class="price">£38,500</span></li>
				<li class="trim-card__engine"><span class="engine-name">2.0 Petrol</span> <span class="price">£37,100</span></li>
			</ul>
		</div>
		<section data-grade="Sport"></section>
	</body></html>`)

	res, ok := ExtractVariants(page)
	if !ok {
		t.Fatal("want variants")
	}
	if res.Provenance != "grade_sections" {
		t.Fatalf("provenance = %q", res.Provenance)
	}
	got := res.Value
	if len(got) != 3 {
		t.Fatalf("got %d variants, want 3: %+v", len(got), got)
	}
	if got[0].Grade != "M Sport" || got[0].Engine != "2.0 Diesel" || intValue(got[0].EnginePriceGBP) != 38500 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Engine != "2.0 Petrol" || intValue(got[1].EnginePriceGBP) != 37100 {
		t.Errorf("second = %+v", got[1])
	}
	if got[2].Grade != "Sport" || got[2].Engine != "" || got[2].EnginePriceGBP != nil {
		t.Errorf("grade without engines must yield one tuple with no engine, got %+v", got[2])
	}
}

func TestExtractVariantsNextData(t *testing.T) {
	page := mustPage(t, `<html><body>
		<script id="__NEXT_DATA__" type="application/json">
		{"props":{"pageProps":{"trims":[
			{"name":"SE","engine":"1.5 TSI","price":27000,"fuelType":"Petrol"},
			{"trimName":"R-Line","engine":"2.0 TDI","rrp":"£33,250"},
			{"name":"X"}
		]}}}
		</script>
		<h4 class="trim-name">Ignored</h4>
	</body></html>`)

	res, ok := ExtractVariants(page)
	if !ok || res.Provenance != "next_data" {
		t.Fatalf("got %+v %v, want next_data", res, ok)
	}
	if len(res.Value) != 2 {
		t.Fatalf("got %+v, want two named trims", res.Value)
	}
	if res.Value[0].Spec.Fuel != "Petrol" || intValue(res.Value[0].EnginePriceGBP) != 27000 {
		t.Errorf("first = %+v", res.Value[0])
	}
	if res.Value[1].Grade != "R-Line" || intValue(res.Value[1].EnginePriceGBP) != 33250 {
		t.Errorf("second = %+v", res.Value[1])
	}
}

func TestExtractVariantsLegacy(t *testing.T) {
	page := mustPage(t, `<html><body><h4 class="trim-name">Sport</h4><div class="variant-title">Vorsprung</div></body></html>`)
	res, ok := ExtractVariants(page)
	if !ok || res.Provenance != "legacy_headings" || len(res.Value) != 2 {
		t.Fatalf("got %+v %v", res, ok)
	}
}

func TestExtractVariantsNone(t *testing.T) {
	page := mustPage(t, `<html><body><p>Coming soon</p></body></html>`)
	if res, ok := ExtractVariants(page); ok {
		t.Fatalf("want none, got %+v", res.Value)
	}
}
