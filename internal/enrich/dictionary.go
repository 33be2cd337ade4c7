package enrich

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed dictionaries.yaml
var dictionariesYAML []byte

type rule struct {
	Token string `yaml:"token"`
	JA    string `yaml:"ja"`
}

// Dictionaries holds the fixed English to Japanese lookups
type Dictionaries struct {
	Makes             map[string]string `yaml:"makes"`
	BodyTypes         map[string]string `yaml:"body_types"`
	Fuels             map[string]string `yaml:"fuels"`
	Transmissions     map[string]string `yaml:"transmissions"`
	TransmissionRules []rule            `yaml:"transmission_rules"`
	DriveRules        []rule            `yaml:"drive_rules"`
	Colours           map[string]string `yaml:"colours"`

	colourWords []string // longest first
}

// LoadDictionaries parses the embedded dictionaries
func LoadDictionaries() (*Dictionaries, error) {
	return ParseDictionaries(dictionariesYAML)
}

func ParseDictionaries(data []byte) (*Dictionaries, error) {
	var d Dictionaries
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dictionaries: %w", err)
	}

	for word := range d.Colours {
		d.colourWords = append(d.colourWords, word)
	}
	slices.SortFunc(d.colourWords, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})

	return &d, nil
}

func (d *Dictionaries) Make(name string) (string, bool) {
	ja, ok := d.Makes[strings.TrimSpace(name)]
	return ja, ok
}

func (d *Dictionaries) Fuel(fuel string) (string, bool) {
	ja, ok := d.Fuels[strings.TrimSpace(fuel)]
	return ja, ok
}

// BodyType also accepts the singular of a plural category name ("SUV" for "SUVs")
func (d *Dictionaries) BodyType(bodyType string) (string, bool) {
	bodyType = strings.TrimSpace(bodyType)
	if ja, ok := d.BodyTypes[bodyType]; ok {
		return ja, true
	}
	ja, ok := d.BodyTypes[bodyType+"s"]
	return ja, ok
}

func (d *Dictionaries) Transmission(text string) (string, bool) {
	if ja, ok := matchRule(d.TransmissionRules, text, false); ok {
		return ja, true
	}
	ja, ok := d.Transmissions[strings.TrimSpace(text)]
	return ja, ok
}

func (d *Dictionaries) DriveType(text string) (string, bool) {
	return matchRule(d.DriveRules, text, true)
}

// Colour replaces the first known colour word in name. It reports false when the name
// contains no known word.
func (d *Dictionaries) Colour(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, word := range d.colourWords {
		w := strings.ToLower(word)
		if strings.Contains(lower, w) {
			return strings.ReplaceAll(lower, w, d.Colours[word]), true
		}
	}
	return "", false
}

func matchRule(rules []rule, text string, foldCase bool) (string, bool) {
	if foldCase {
		text = strings.ToLower(text)
	}
	for _, r := range rules {
		token := r.Token
		if foldCase {
			token = strings.ToLower(token)
		}
		if token != "" && strings.Contains(text, token) {
			return r.JA, true
		}
	}
	return "", false
}
