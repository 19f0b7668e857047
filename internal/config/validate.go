package config

import (
	"fmt"
	"strings"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// Permalink tokens understood by the assembler.
var knownPermalinkTokens = map[string]struct{}{
	"categories": {},
	"year":       {},
	"month":      {},
	"day":        {},
	"title":      {},
	"slug":       {},
}

// validate fails fast on configuration problems. It runs after normalize,
// so required keys missing here mean the configuration is genuinely broken
// rather than merely sparse.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return gerrors.NewConfig("title is required")
	}

	known := false
	for _, s := range KnownSkins() {
		if c.Skin == s {
			known = true
			break
		}
	}
	if !known {
		return gerrors.NewConfig(fmt.Sprintf("unknown skin %q (known: %s)", c.Skin, skinNames()))
	}

	if c.Paginate < 1 {
		return gerrors.NewConfig(fmt.Sprintf("paginate must be >= 1, got %d", c.Paginate))
	}

	if err := validatePermalink(c.Permalink); err != nil {
		return err
	}

	for _, p := range c.Plugins {
		if _, ok := knownPlugins[p]; !ok {
			return gerrors.NewConfig(fmt.Sprintf("unknown plugin %q", p))
		}
	}

	// Feed and sitemap emit absolute URLs; without a base they would be
	// malformed per their formats.
	if c.pluginEnabled("feed") || c.pluginEnabled("sitemap") {
		if strings.TrimSpace(c.URL) == "" {
			return gerrors.NewConfig("url is required when the feed or sitemap plugin is enabled")
		}
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
			return gerrors.NewConfig(fmt.Sprintf("url must be absolute (http:// or https://), got %q", c.URL))
		}
	}

	for i, rule := range c.Defaults {
		switch rule.Scope.Collection {
		case "", "posts", "pages":
		default:
			return gerrors.NewConfig(fmt.Sprintf("defaults[%d]: unknown collection %q", i, rule.Scope.Collection))
		}
	}

	return nil
}

func (c *Config) pluginEnabled(name string) bool {
	for _, p := range c.Plugins {
		if p == name {
			return true
		}
	}
	return false
}

// validatePermalink checks that every :token in the pattern is understood.
func validatePermalink(pattern string) error {
	if pattern == "" {
		return gerrors.NewConfig("permalink pattern is required")
	}
	if !strings.HasPrefix(pattern, "/") {
		return gerrors.NewConfig(fmt.Sprintf("permalink pattern must start with '/': %q", pattern))
	}
	for _, segment := range strings.Split(pattern, "/") {
		if !strings.HasPrefix(segment, ":") {
			continue
		}
		token := strings.TrimPrefix(segment, ":")
		if _, ok := knownPermalinkTokens[token]; !ok {
			return gerrors.NewConfig(fmt.Sprintf("invalid permalink pattern: unknown token %q in %q", ":"+token, pattern))
		}
	}
	return nil
}

func skinNames() string {
	names := make([]string, 0, len(KnownSkins()))
	for _, s := range KnownSkins() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
