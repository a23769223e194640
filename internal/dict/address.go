package dict

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Geocode is a cached lookup result for a normalized address.
type Geocode struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// AddressDictionary expands street abbreviations and resolves addresses
// against a local geocode cache. Lookups are best effort: a cache miss is
// not an error, the caller just records the address as unresolved.
type AddressDictionary struct {
	Abbreviations map[string]string  `yaml:"abbreviations"`
	Geocodes      map[string]Geocode `yaml:"geocodes"`
}

// DefaultAddressDictionary carries the abbreviation set used by the
// Montréal address normalizer, with an empty geocode cache.
func DefaultAddressDictionary() *AddressDictionary {
	return &AddressDictionary{
		Abbreviations: map[string]string{
			"st":    "saint",
			"ste":   "sainte",
			"blvd":  "boulevard",
			"boul":  "boulevard",
			"av":    "avenue",
			"ave":   "avenue",
			"ch":    "chemin",
			"mtl":   "montréal",
			"qc":    "québec",
		},
		Geocodes: map[string]Geocode{},
	}
}

// LoadAddressDictionary reads a YAML address file. An empty path falls back
// to the built-in abbreviation set.
func LoadAddressDictionary(path string) (*AddressDictionary, error) {
	if path == "" {
		return DefaultAddressDictionary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read address dictionary %s: %w", path, err)
	}
	var ad AddressDictionary
	if err := yaml.Unmarshal(data, &ad); err != nil {
		return nil, fmt.Errorf("failed to decode address dictionary %s: %w", path, err)
	}
	if ad.Abbreviations == nil {
		ad.Abbreviations = DefaultAddressDictionary().Abbreviations
	}
	if ad.Geocodes == nil {
		ad.Geocodes = map[string]Geocode{}
	}
	return &ad, nil
}

// Normalize lowercases the address, strips punctuation noise and expands
// known abbreviations token by token.
func (ad *AddressDictionary) Normalize(address string) string {
	cleaned := strings.ToLower(strings.TrimSpace(address))
	cleaned = strings.NewReplacer(",", " ", ".", " ", "#", " ").Replace(cleaned)
	tokens := strings.Fields(cleaned)
	for i, tok := range tokens {
		if full, ok := ad.Abbreviations[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// Resolve normalizes the address and tries the geocode cache. The boolean
// reports whether the lookup resolved.
func (ad *AddressDictionary) Resolve(address string) (string, bool) {
	normalized := ad.Normalize(address)
	_, ok := ad.Geocodes[normalized]
	return normalized, ok
}
