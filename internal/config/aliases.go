package config

import (
	"fmt"
	"sort"
	"strings"
)

// Aliasable lists the canonical frontmatter keys a vault may rename.
var Aliasable = []string{
	"cr_id", "cr_type", "name", "sex", "gender", "pronouns", "occupation",
	"born", "died", "birth_place", "death_place", "collection",
	"father", "father_id", "mother", "mother_id",
	"spouse", "spouse_id", "children", "children_id",
}

func validateAliases(aliases map[string]string) error {
	known := make(map[string]struct{}, len(Aliasable))
	for _, key := range Aliasable {
		known[key] = struct{}{}
	}

	canonical := make([]string, 0, len(aliases))
	for key := range aliases {
		canonical = append(canonical, key)
	}
	sort.Strings(canonical)

	targets := make(map[string]string, len(aliases))
	for _, key := range canonical {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("alias for unknown property: %s", key)
		}
		target := strings.TrimSpace(aliases[key])
		if target == "" {
			return fmt.Errorf("alias for %s is empty", key)
		}
		if prev, exists := targets[target]; exists {
			return fmt.Errorf("properties %s and %s share alias %s", prev, key, target)
		}
		if _, clash := known[target]; clash && target != key {
			if _, renamed := aliases[target]; !renamed {
				return fmt.Errorf("alias %s for %s collides with a built-in property", target, key)
			}
		}
		targets[target] = key
	}
	return nil
}
