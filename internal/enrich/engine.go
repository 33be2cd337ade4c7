package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"carwow/catalog/internal/domain"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fuel classes used in the engine tail of full_model_ja
const (
	FuelElectric = "Electric"
	FuelPHEV     = "PHEV"
	FuelHEV      = "HEV"
	FuelMHEV     = "MHEV"
	FuelBiFuel   = "Bi-Fuel"
	FuelDiesel   = "Diesel"
	FuelPetrol   = "Petrol"
)

var (
	mhevRe         = regexp.MustCompile(`\bmhev\b`)
	plugInRe       = regexp.MustCompile(`plug[-\s]?in|\bphev\b`)
	hasDispRe      = regexp.MustCompile(`\b\d\.\d\s*l\b`)
	dieselShortRe  = regexp.MustCompile(`\b\d\.\d\s*d\b`)
	evModelRe      = regexp.MustCompile(`\b(?:ev|electric)\b`)
	displacementRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*l\b`)
	bareDispRe     = regexp.MustCompile(`^\s*(\d\.\d)\b`)
	kwhRe          = regexp.MustCompile(`([\d.]+)\s*kwh`)

	electricDetailRe = regexp.MustCompile(`(\d+)\s*kW\s+([\d.]+)\s*kWh`)
	sizeDetailRe     = regexp.MustCompile(`(\d+\.?\d*)\s*L\b`)
	hpDetailRe       = regexp.MustCompile(`(?i)(\d+)\s*(?:hp|bhp)\b`)
	kwDetailRe       = regexp.MustCompile(`(\d+)\s*kW\b`)
	torqueDetailRe   = regexp.MustCompile(`(\d+)\s*(?:Nm|lb-ft)`)
	dimensionNumRe   = regexp.MustCompile(`\d[\d,]*`)
)

var explicitFuelClass = map[string]string{
	"electric":       FuelElectric,
	"petrol":         FuelPetrol,
	"diesel":         FuelDiesel,
	"hybrid":         FuelHEV,
	"plug-in hybrid": FuelPHEV,
	"mhev":           FuelMHEV,
	"bi-fuel":        FuelBiFuel,
}

// ClassifyFuel decides the fuel class from the engine text first, then the model name,
// then the explicit fuel value. Petrol is the default.
func ClassifyFuel(engine, model, explicitFuel string) string {
	e := strings.ToLower(engine)

	switch {
	case mhevRe.MatchString(e) || strings.Contains(e, "mild"):
		return FuelMHEV
	case plugInRe.MatchString(e):
		return FuelPHEV
	case strings.Contains(e, "hybrid") || strings.Contains(e, "e:hev"):
		return FuelHEV
	case strings.Contains(e, "bi-fuel") || strings.Contains(e, "bifuel"):
		return FuelBiFuel
	}

	if containsAny(e, "electric", "elettrica", "e-tense") || (strings.Contains(e, "kwh") && !hasDispRe.MatchString(e)) {
		return FuelElectric
	}
	if containsAny(e, "diesel", "tdi", "bluehdi", "cdi") || dieselShortRe.MatchString(e) {
		return FuelDiesel
	}
	if containsAny(e, "petrol", "tsi", "tfsi", "t-gdi", "tgi") {
		return FuelPetrol
	}
	if evModelRe.MatchString(strings.ToLower(model)) {
		return FuelElectric
	}
	if class, ok := explicitFuelClass[strings.ToLower(strings.TrimSpace(explicitFuel))]; ok {
		return class
	}
	return FuelPetrol
}

// Displacement returns "x.xL" for the engine text, or "" when none is stated
func Displacement(engine string) string {
	e := strings.ToLower(engine)
	if m := displacementRe.FindStringSubmatch(e); m != nil {
		return m[1] + "L"
	}
	if m := bareDispRe.FindStringSubmatch(e); m != nil {
		return m[1] + "L"
	}
	return ""
}

// BatteryKWh reads the battery capacity from the spec sheet or the engine text
func BatteryKWh(spec domain.SpecSheet, engine string) (float64, bool) {
	for key, value := range spec.Extra {
		if strings.Contains(key, "battery") {
			if m := kwhRe.FindStringSubmatch(strings.ToLower(value)); m != nil {
				if f, err := strconv.ParseFloat(m[1], 64); err == nil {
					return f, true
				}
			}
		}
	}
	if m := kwhRe.FindStringSubmatch(strings.ToLower(engine)); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// EngineTail is the last part of full_model_ja: the battery size or "EV" for electric
// cars, displacement plus label for hybrids and the displacement otherwise
func EngineTail(fuelClass, engine string, spec domain.SpecSheet) string {
	switch fuelClass {
	case FuelElectric:
		if kwh, ok := BatteryKWh(spec, engine); ok {
			return strings.TrimSuffix(strconv.FormatFloat(kwh, 'f', 1, 64), ".0") + "kWh"
		}
		return "EV"
	case FuelPHEV, FuelHEV, FuelMHEV, FuelBiFuel:
		if disp := Displacement(engine); disp != "" {
			return disp + " " + fuelClass
		}
		return fuelClass
	default:
		return Displacement(engine)
	}
}

// ParseEngine reads power, size, battery and torque out of a free-text engine description
func ParseEngine(engine string) *domain.Engine {
	engine = strings.TrimSpace(engine)
	if engine == "" {
		return nil
	}

	var d domain.Engine
	if m := electricDetailRe.FindStringSubmatch(engine); m != nil {
		kw, _ := strconv.Atoi(m[1])
		kwh, _ := strconv.ParseFloat(m[2], 64)
		d.Type = FuelElectric
		d.PowerKW = domain.IntPtr(kw)
		d.BatteryKWh = &kwh
		d.PowerHP = domain.IntPtr(kwToHP(kw))
		return &d
	}

	if m := sizeDetailRe.FindStringSubmatch(engine); m != nil {
		if size, err := strconv.ParseFloat(m[1], 64); err == nil {
			d.SizeL = &size
		}
	}
	if m := hpDetailRe.FindStringSubmatch(engine); m != nil {
		hp, _ := strconv.Atoi(m[1])
		d.PowerHP = domain.IntPtr(hp)
	}
	if m := kwDetailRe.FindStringSubmatch(engine); m != nil {
		kw, _ := strconv.Atoi(m[1])
		d.PowerKW = domain.IntPtr(kw)
		if d.PowerHP == nil {
			d.PowerHP = domain.IntPtr(kwToHP(kw))
		}
	}
	if m := torqueDetailRe.FindString(engine); m != "" {
		d.Torque = m
	}

	lower := strings.ToLower(engine)
	switch {
	case strings.Contains(lower, "petrol"):
		d.Type = FuelPetrol
	case strings.Contains(lower, "diesel"):
		d.Type = FuelDiesel
	case strings.Contains(lower, "hybrid"), strings.Contains(lower, "mhev"):
		d.Type = "Hybrid"
	}

	if d == (domain.Engine{}) {
		return nil
	}
	return &d
}

func kwToHP(kw int) int {
	return int(float64(kw) * 1.341)
}

var thousands = message.NewPrinter(language.English)

// DimensionsJA renders "4709 x 1827 x 1442 mm" as "全長4,709 mm x 全幅1,827 mm x 全高1,442 mm"
func DimensionsJA(dimensionsMM string) string {
	nums := dimensionNumRe.FindAllString(dimensionsMM, -1)
	if len(nums) < 3 {
		return ""
	}
	var mm [3]int
	for i := range mm {
		n, err := strconv.Atoi(strings.ReplaceAll(nums[i], ",", ""))
		if err != nil {
			return ""
		}
		mm[i] = n
	}
	return thousands.Sprintf("全長%d mm x 全幅%d mm x 全高%d mm", mm[0], mm[1], mm[2])
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
