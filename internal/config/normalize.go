package config

// Built-in generated-index producers. The plugin list selects from this
// static registry by name; there is no dynamic loading.
var knownPlugins = map[string]struct{}{
	"feed":     {},
	"sitemap":  {},
	"archives": {},
}

// DefaultPermalink is the permalink pattern applied when none is configured.
const DefaultPermalink = "/:categories/:year/:month/:day/:title/"

// normalize fills unset fields with their defaults. It runs before
// validation so that validation sees the effective configuration.
func (c *Config) normalize() {
	if c.Skin == "" {
		c.Skin = SkinDefault
	}
	if c.Permalink == "" {
		c.Permalink = DefaultPermalink
	}
	if c.Paginate == 0 {
		c.Paginate = 5
	}
	if c.Plugins == nil {
		c.Plugins = []string{"feed", "sitemap", "archives"}
	}
	if c.Markdown.HighlightStyle == "" {
		c.Markdown.HighlightStyle = "monokai"
	}
	if c.Source == "" {
		c.Source = "."
	}
	if c.Output == "" {
		c.Output = "_site"
	}
	for i := range c.Defaults {
		if c.Defaults[i].Values == nil {
			c.Defaults[i].Values = map[string]any{}
		}
	}
}
