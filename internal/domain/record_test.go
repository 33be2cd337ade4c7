package domain

import (
	"strings"
	"testing"
)

func TestNewRecordIDDeterministic(t *testing.T) {
	a := NewRecordID("bmw/3-series", "M Sport", "2.0 Diesel")
	b := NewRecordID("BMW/3-Series", "m sport", "2.0  diesel")
	if a != b {
		t.Fatalf("normalized keys must hash alike: %s != %s", a, b)
	}
	if a == NewRecordID("bmw/3-series", "M Sport", "2.0 Petrol") {
		t.Fatal("different engines must not collide")
	}
	if NewRecordID("bmw/3-series", "", "") != (VariantKey{Slug: "bmw/3-series"}).ID() {
		t.Fatal("VariantKey.ID must match NewRecordID")
	}
}

func TestNewRecordIDKeepsSeparators(t *testing.T) {
	tests := [][2][3]string{
		{{"ab/c", "", ""}, {"a/bc", "", ""}},
		{{"peugeot/208", "Allure", ""}, {"peugeot/208", "Allure+", ""}},
		{{"bmw/x5", "2.0 Diesel", ""}, {"bmw/x5", "20 Diesel", ""}},
		{{"bmw/x5", "a", "b c"}, {"bmw/x5", "a b", "c"}},
	}
	for _, tt := range tests {
		a, b := tt[0], tt[1]
		if NewRecordID(a[0], a[1], a[2]) == NewRecordID(b[0], b[1], b[2]) {
			t.Errorf("keys %q and %q share an id", a, b)
		}
	}
}

func TestNormalizeKeyPart(t *testing.T) {
	tests := map[string]string{
		"":                 "none",
		"  ":               "none",
		"M Sport":          "m_sport",
		"2.0 TDI (150PS)":  "2.0_tdi_150ps",
		"bmw/3-series":     "bmw/3-series",
		"Allure+":          "allure+",
		"Sport | Auto":     "sport_auto",
		"Édition Spéciale": "édition_spéciale",
	}
	for in, want := range tests {
		if got := NormalizeKeyPart(in); got != want {
			t.Errorf("NormalizeKeyPart(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSpecSheetMergeDoesNotClobber(t *testing.T) {
	s := SpecSheet{Doors: IntPtr(4), Fuel: "Diesel", BodyType: []string{"Saloon"}}
	s.Merge(SpecSheet{
		Doors:    IntPtr(5),
		Seats:    IntPtr(5),
		Fuel:     "Petrol",
		BodyType: []string{"Estate", "Saloon"},
		Extra:    map[string]string{"boot": "480 litres"},
	})

	if *s.Doors != 4 || s.Fuel != "Diesel" {
		t.Errorf("populated fields were replaced: doors=%d fuel=%q", *s.Doors, s.Fuel)
	}
	if s.Seats == nil || *s.Seats != 5 {
		t.Errorf("absent seats must be filled")
	}
	if strings.Join(s.BodyType, ",") != "Estate,Saloon" {
		t.Errorf("body types = %v, want sorted union", s.BodyType)
	}
	if s.Extra["boot"] != "480 litres" {
		t.Errorf("extra = %v", s.Extra)
	}
}

func TestUnionSorted(t *testing.T) {
	if UnionSorted(nil, nil) != nil {
		t.Fatal("empty union must be nil")
	}
	got := UnionSorted([]string{"SUV", " ", "Estate"}, []string{"SUV"})
	if strings.Join(got, ",") != "Estate,SUV" {
		t.Fatalf("got %v", got)
	}
}
