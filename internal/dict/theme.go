package dict

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ThemeUnknown is returned when no keyword matches an establishment name.
const ThemeUnknown = "unknown"

// Theme is one cuisine category with its match keywords.
type Theme struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// ThemeDictionary classifies establishments into cuisine themes by keyword
// match against the name. Order matters: the first matching theme wins.
type ThemeDictionary struct {
	Themes []Theme `yaml:"themes"`
}

// DefaultThemeDictionary covers the cuisine themes seen in the Montréal
// inspection data. Keywords are matched case-insensitively as substrings.
func DefaultThemeDictionary() *ThemeDictionary {
	return &ThemeDictionary{Themes: []Theme{
		{Name: "italian", Keywords: []string{"pizza", "pizzeria", "pasta", "italien", "trattoria", "ristorante"}},
		{Name: "asian", Keywords: []string{"sushi", "ramen", "asiatique", "chinois", "thai", "vietnamien", "wok"}},
		{Name: "french", Keywords: []string{"bistro", "brasserie", "français", "crêperie", "gourmet"}},
		{Name: "mexican", Keywords: []string{"mexicain", "taco", "burrito", "quesadilla", "nachos"}},
		{Name: "indian", Keywords: []string{"indien", "curry", "tandoor", "biryani", "naan"}},
		{Name: "fast-food", Keywords: []string{"burger", "fast", "quick", "express", "frites", "hot dog", "sandwich"}},
		{Name: "cafe-bar", Keywords: []string{"café", "coffee", "bar", "pub", "taverne", "vin"}},
		{Name: "seafood", Keywords: []string{"fruits de mer", "seafood", "poisson", "homard", "crevette"}},
		{Name: "grill", Keywords: []string{"steak", "steakhouse", "grill", "bbq", "barbecue"}},
		{Name: "healthy", Keywords: []string{"végétarien", "vegan", "bio", "organic", "santé"}},
	}}
}

// LoadThemeDictionary reads a YAML theme file. An empty path falls back to
// the built-in dictionary.
func LoadThemeDictionary(path string) (*ThemeDictionary, error) {
	if path == "" {
		return DefaultThemeDictionary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme dictionary %s: %w", path, err)
	}
	var td ThemeDictionary
	if err := yaml.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("failed to decode theme dictionary %s: %w", path, err)
	}
	if len(td.Themes) == 0 {
		return nil, fmt.Errorf("theme dictionary %s defines no themes", path)
	}
	return &td, nil
}

// Classify returns the first theme whose keywords match the name,
// or ThemeUnknown when nothing matches.
func (td *ThemeDictionary) Classify(name string) string {
	lower := strings.ToLower(name)
	for _, theme := range td.Themes {
		for _, kw := range theme.Keywords {
			if strings.Contains(lower, kw) {
				return theme.Name
			}
		}
	}
	return ThemeUnknown
}
