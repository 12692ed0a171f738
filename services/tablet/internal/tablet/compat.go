package tablet

import (
	"fmt"
	"strings"

	"github.com/appetiteclub/notices/pkg/notice"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

type dishProfile struct {
	Allergens []string `yaml:"allergens"`
	Excludes  []string `yaml:"excludes"`
}

type compatibilityTable struct {
	Dishes map[string]dishProfile `yaml:"dishes"`
}

// LoadCompatibility builds a dish check from a YAML table listing each dish's
// allergens and the diets it is unsuitable for. Dishes missing from the table
// are accepted.
func LoadCompatibility(data []byte) (notice.CompatibilityFunc, error) {
	var table compatibilityTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("cannot parse compatibility table: %w", err)
	}

	profiles := make(map[string]dishProfile, len(table.Dishes))
	for name, p := range table.Dishes {
		profiles[normalize(name)] = p
	}

	return func(dish string, allergies, diets []string) error {
		p, ok := profiles[normalize(dish)]
		if !ok {
			return nil
		}
		for _, a := range allergies {
			if contains(p.Allergens, a) {
				return fmt.Errorf("contains %s", normalize(a))
			}
		}
		for _, d := range diets {
			if contains(p.Excludes, d) {
				return fmt.Errorf("not suitable for a %s diet", normalize(d))
			}
		}
		return nil
	}, nil
}

func contains(list []string, v string) bool {
	v = normalize(v)
	for _, item := range list {
		if normalize(item) == v {
			return true
		}
	}
	return false
}

// normalize case-folds so "Weißwurst" and "WEISSWURST" name the same dish.
func normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
