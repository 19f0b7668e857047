package site

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strings"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// Sitemap document structure (sitemaps.org protocol).
type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod,omitempty"`
}

// sitemapProducer enumerates every publicly routable page emitted so far.
// It is registered last so archive and feed producers have already run;
// redirect stubs and the feed carry InSitemap=false and are skipped.
type sitemapProducer struct{}

func (sitemapProducer) Name() string { return "sitemap" }

func (sitemapProducer) Produce(m *Model, existing []Page) ([]Page, error) {
	base := strings.TrimSuffix(m.Cfg.URL, "/")

	entries := make([]sitemapURL, 0, len(existing))
	for _, p := range existing {
		if !p.InSitemap {
			continue
		}
		entry := sitemapURL{Loc: base + p.URL}
		if !p.Lastmod.IsZero() {
			entry.Lastmod = p.Lastmod.UTC().Format("2006-01-02")
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Loc < entries[j].Loc })

	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  entries,
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(&set); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategoryInternal, gerrors.SeverityFatal, "encode sitemap")
	}
	buf.WriteString("\n")

	return []Page{{
		OutputPath: "sitemap.xml",
		URL:        "/sitemap.xml",
		HTML:       buf.Bytes(),
		InSitemap:  false,
	}}, nil
}
