package site

import (
	"fmt"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// Producer is a named generated-index implementation: given the assembled
// site model and the pages produced so far, it returns additional pages.
// Producers run in registration order, so a producer that enumerates the
// whole site (the sitemap) is registered last.
type Producer interface {
	Name() string
	Produce(m *Model, existing []Page) ([]Page, error)
}

// producerRegistry is the static registry the plugin list selects from.
// Built at startup; no dynamic loading.
var producerRegistry = map[string]Producer{
	"archives": archivesProducer{},
	"feed":     feedProducer{},
	"sitemap":  sitemapProducer{},
}

// producerOrder fixes execution order independent of configuration order.
var producerOrder = []string{"archives", "feed", "sitemap"}

// SelectProducers resolves the enabled plugin names against the registry.
// Configuration validation already rejected unknown names; hitting one
// here is an internal inconsistency.
func SelectProducers(enabled []string) ([]Producer, error) {
	want := map[string]bool{}
	for _, name := range enabled {
		if _, ok := producerRegistry[name]; !ok {
			return nil, gerrors.New(gerrors.CategoryInternal, gerrors.SeverityFatal,
				fmt.Sprintf("plugin %q passed validation but is not registered", name))
		}
		want[name] = true
	}

	var out []Producer
	for _, name := range producerOrder {
		if want[name] {
			out = append(out, producerRegistry[name])
		}
	}
	return out, nil
}
