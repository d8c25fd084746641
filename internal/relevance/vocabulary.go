package relevance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the set of phrases and unit tokens the filter looks for.
type Vocabulary struct {
	Indicators []string `yaml:"indicators" mapstructure:"indicators"`
	Units      []string `yaml:"units" mapstructure:"units"`
}

// DefaultVocabulary returns the built-in bioelectrochemical performance vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Indicators: []string{
			"power density",
			"current density",
			"coulombic efficiency",
			"energy efficiency",
			"power output",
			"maximum power",
			"open circuit voltage",
			"internal resistance",
			"polarization curve",
			"cod removal",
			"hydrogen production rate",
			"voltage output",
		},
		Units: []string{
			// power
			"mw/m²", "mw/m2", "mw/m³", "mw/m3", "w/m²", "w/m2", "w/m³", "w/m3", "µw/cm²", "µw/cm2", "mw", "µw", "uw", "w",
			// current
			"ma/cm²", "ma/cm2", "ma/m²", "ma/m2", "a/m²", "a/m2", "a/m³", "a/m3", "µa/cm²", "µa/cm2", "ma", "µa",
			// voltage
			"mv", "v",
			// percentage
			"%",
		},
	}
}

// LoadVocabularyFile reads a YAML vocabulary file. Sections missing from the
// file keep their defaults.
func LoadVocabularyFile(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}
	return v.withDefaults(), nil
}

// Merge returns v with any non-empty section of other replacing its own.
func (v Vocabulary) Merge(other Vocabulary) Vocabulary {
	if len(other.Indicators) > 0 {
		v.Indicators = other.Indicators
	}
	if len(other.Units) > 0 {
		v.Units = other.Units
	}
	return v
}

func (v Vocabulary) withDefaults() Vocabulary {
	return DefaultVocabulary().Merge(v)
}
