// Package config loads and validates the site-wide configuration and
// resolves scoped front-matter defaults for individual documents.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// Skin is a named visual theme variant from the closed configured set.
type Skin string

// Known skins. Validation rejects anything outside this set.
const (
	SkinDefault  Skin = "default"
	SkinDark     Skin = "dark"
	SkinMint     Skin = "mint"
	SkinPlum     Skin = "plum"
	SkinSunrise  Skin = "sunrise"
	SkinContrast Skin = "contrast"
	SkinAqua     Skin = "aqua"
)

// KnownSkins returns the closed set of configurable skins.
func KnownSkins() []Skin {
	return []Skin{SkinDefault, SkinDark, SkinMint, SkinPlum, SkinSunrise, SkinContrast, SkinAqua}
}

// Config represents the site configuration.
type Config struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	URL         string `yaml:"url,omitempty"`

	Skin      Skin     `yaml:"skin,omitempty"`
	Permalink string   `yaml:"permalink,omitempty"`
	Paginate  int      `yaml:"paginate,omitempty"`
	Plugins   []string `yaml:"plugins,omitempty"`

	Author    AuthorConfig    `yaml:"author,omitempty"`
	Defaults  []DefaultsRule  `yaml:"defaults,omitempty"`
	Markdown  MarkdownConfig  `yaml:"markdown,omitempty"`
	Build     BuildConfig     `yaml:"build,omitempty"`
	Analytics AnalyticsConfig `yaml:"analytics,omitempty"`

	// Source and output directories. Relative paths are resolved against
	// the working directory by the CLI.
	Source string `yaml:"source,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// AuthorConfig is the site author profile exposed to templates.
type AuthorConfig struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// DefaultsRule applies front-matter defaults to documents matching a scope.
type DefaultsRule struct {
	Scope  Scope          `yaml:"scope"`
	Values map[string]any `yaml:"values"`
}

// Scope selects the documents a DefaultsRule applies to. An empty path
// matches every document in the collection; otherwise the document's
// source path (relative to the source root) must begin with Path.
type Scope struct {
	Collection string `yaml:"collection,omitempty"`
	Path       string `yaml:"path,omitempty"`
}

// MarkdownConfig controls Markdown rendering.
type MarkdownConfig struct {
	HighlightStyle string `yaml:"highlight_style,omitempty"`
}

// BuildConfig controls build behavior.
type BuildConfig struct {
	CompressHTML bool `yaml:"compress_html,omitempty"`
	SkipInvalid  bool `yaml:"skip_invalid,omitempty"`
	Cache        bool `yaml:"cache,omitempty"`
}

// AnalyticsConfig identifies the analytics provider. The value is opaque
// to the build; it is only echoed into the page template context.
type AnalyticsConfig struct {
	Provider string `yaml:"provider,omitempty"`
}

// Load loads, normalizes and validates configuration from the given file.
// The returned value is immutable by convention: it is threaded through
// every component explicitly and never stored as process-global state.
func Load(configPath string) (*Config, error) {
	// Load .env if present so ${VAR} expansion below can see it.
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, gerrors.NewConfig(fmt.Sprintf("configuration file not found: %s", configPath))
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, gerrors.WrapConfig(err, "failed to read config file")
	}

	return Parse(data)
}

// Parse parses configuration from raw YAML, expands environment
// variables, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, gerrors.WrapConfig(err, "failed to unmarshal config")
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return gerrors.NewConfig(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath))
	}

	example := Config{
		Title:       "My Blog",
		Description: "Notes on software and infrastructure",
		URL:         "https://example.com",
		Skin:        SkinDefault,
		Permalink:   "/:categories/:year/:month/:day/:title/",
		Paginate:    5,
		Plugins:     []string{"feed", "sitemap", "archives"},
		Author: AuthorConfig{
			Name:  "Your Name",
			Email: "you@example.com",
		},
		Defaults: []DefaultsRule{
			{
				Scope:  Scope{Collection: "posts"},
				Values: map[string]any{"layout": "post", "toc": true},
			},
		},
		Markdown: MarkdownConfig{HighlightStyle: "monokai"},
		Build:    BuildConfig{Cache: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return gerrors.WrapConfig(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return gerrors.WrapConfig(err, "failed to write config file")
	}

	return scaffoldSource(filepath.Dir(configPath))
}

// scaffoldSource lays out the conventional source directories next to the
// configuration file, with a starter post so the first build has content.
func scaffoldSource(root string) error {
	for _, dir := range []string{"_posts", "_layouts", "assets/css", "assets/js"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return gerrors.WrapConfig(err, fmt.Sprintf("failed to create %s", dir))
		}
	}

	postPath := filepath.Join(root, "_posts",
		time.Now().Format("2006-01-02")+"-welcome.md")
	if _, err := os.Stat(postPath); err == nil {
		return nil
	}
	starter := `---
title: Welcome
tags: [meta]
---
This is your first post on {{ site.title }}. Edit or delete it, then
run a build.
`
	if err := os.WriteFile(postPath, []byte(starter), 0o644); err != nil {
		return gerrors.WrapConfig(err, "failed to write starter post")
	}
	return nil
}
