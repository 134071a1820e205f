package protected

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is a YAML file that extends or replaces the built-in reference data.
//
//	replace: false
//	entries:
//	  - market: germany
//	    category: banking
//	    domains: [meinebank.de]
//	    patterns: ['genossenschaftsbank']
type Overlay struct {
	Replace bool           `yaml:"replace"`
	Entries []OverlayGroup `yaml:"entries"`
}

// OverlayGroup lists the domains and patterns of one market and category
type OverlayGroup struct {
	Market   string   `yaml:"market"`
	Category string   `yaml:"category"`
	Domains  []string `yaml:"domains"`
	Patterns []string `yaml:"patterns"`
}

// LoadFile reads an overlay file
func LoadFile(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protected entity file: %w", err)
	}

	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse protected entity file %s: %w", path, err)
	}
	return &overlay, nil
}

// EntriesFor returns the overlay entries, domains before patterns within each group
func (o *Overlay) EntriesFor() ([]Entry, error) {
	var entries []Entry
	for i, g := range o.Entries {
		market, err := ParseMarket(g.Market)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		category, err := ParseCategory(g.Category)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		for _, d := range g.Domains {
			entries = append(entries, Entry{Market: market, Category: category, Domain: d})
		}
		for _, p := range g.Patterns {
			entries = append(entries, Entry{Market: market, Category: category, Pattern: p})
		}
	}
	return entries, nil
}

// Apply merges the overlay into base. Overlay patterns are tried after the
// base patterns unless the overlay replaces the base entirely.
func (o *Overlay) Apply(base []Entry) ([]Entry, error) {
	extra, err := o.EntriesFor()
	if err != nil {
		return nil, err
	}
	if o.Replace {
		return extra, nil
	}

	merged := make([]Entry, 0, len(base)+len(extra))
	merged = append(merged, base...)
	merged = append(merged, extra...)
	return merged, nil
}

// ReferenceEntries returns the built-in entries, merged with the overlay file
// at path when path is not empty
func ReferenceEntries(path string) ([]Entry, error) {
	base := DefaultEntries()
	if path == "" {
		return base, nil
	}
	overlay, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return overlay.Apply(base)
}
