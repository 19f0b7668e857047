package config

import (
	"strings"
)

// EffectiveFrontMatter merges the configured scoped defaults under a
// document's own front matter. Merge order, weakest first:
//
//  1. rules with an empty path scope, in declaration order
//  2. rules with a path scope, shorter (less specific) prefixes first;
//     equally long prefixes keep declaration order
//  3. the document's own front matter
//
// Later writes win, so the document always overrides site defaults for
// the same key. Pure function: neither input map is mutated.
func (c *Config) EffectiveFrontMatter(collection, relPath string, own map[string]any) map[string]any {
	merged := map[string]any{}

	type applicable struct {
		pathLen int
		index   int
		values  map[string]any
	}
	var rules []applicable
	for i, rule := range c.Defaults {
		if rule.Scope.Collection != "" && rule.Scope.Collection != collection {
			continue
		}
		if rule.Scope.Path != "" && !strings.HasPrefix(relPath, rule.Scope.Path) {
			continue
		}
		rules = append(rules, applicable{pathLen: len(rule.Scope.Path), index: i, values: rule.Values})
	}

	// Stable ordering: shortest (least specific) path first, declaration
	// order among equals, so the most specific match is applied last.
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0; j-- {
			prev, cur := rules[j-1], rules[j]
			if prev.pathLen > cur.pathLen || (prev.pathLen == cur.pathLen && prev.index > cur.index) {
				rules[j-1], rules[j] = cur, prev
			} else {
				break
			}
		}
	}

	for _, rule := range rules {
		for k, v := range rule.values {
			merged[k] = v
		}
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}
