package site

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

// feedLimit caps the number of entries in the Atom feed.
const feedLimit = 20

// Atom feed document structure (RFC 4287, the subset feed readers use).
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Link    []atomLink  `xml:"link"`
	Author  *atomPerson `xml:"author,omitempty"`
	Entry   []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomPerson struct {
	Name  string `xml:"name"`
	Email string `xml:"email,omitempty"`
}

type atomEntry struct {
	Title   string       `xml:"title"`
	ID      string       `xml:"id"`
	Updated string       `xml:"updated"`
	Link    atomLink     `xml:"link"`
	Summary string       `xml:"summary,omitempty"`
	Content *atomContent `xml:"content,omitempty"`
}

// atomContent holds the entry body; encoding/xml entity-escapes the
// chardata on output, so readers see the markup after one unescape.
type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

// feedProducer emits an Atom feed of the newest posts at /feed.xml.
// Timestamps derive only from content metadata, never from the clock, so
// rebuilding unchanged input yields a byte-identical feed.
type feedProducer struct{}

func (feedProducer) Name() string { return "feed" }

func (feedProducer) Produce(m *Model, _ []Page) ([]Page, error) {
	base := strings.TrimSuffix(m.Cfg.URL, "/")

	feed := atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   m.Cfg.Title,
		ID:      base + "/",
		Updated: atomTime(newestDate(m.Posts)),
		Link: []atomLink{
			{Href: base + "/feed.xml", Rel: "self"},
			{Href: base + "/"},
		},
	}
	if m.Cfg.Author.Name != "" {
		feed.Author = &atomPerson{Name: m.Cfg.Author.Name, Email: m.Cfg.Author.Email}
	}

	limit := feedLimit
	if len(m.Posts) < limit {
		limit = len(m.Posts)
	}
	for _, p := range m.Posts[:limit] {
		feed.Entry = append(feed.Entry, atomEntry{
			Title:   p.Doc.Title,
			ID:      base + p.URL,
			Updated: atomTime(p.Doc.Date),
			Link:    atomLink{Href: base + p.URL},
			Summary: p.Doc.Excerpt,
			Content: &atomContent{Type: "html", Body: string(p.Body)},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(&feed); err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategoryInternal, gerrors.SeverityFatal, "encode atom feed")
	}
	buf.WriteString("\n")

	return []Page{{
		OutputPath: "feed.xml",
		URL:        "/feed.xml",
		HTML:       buf.Bytes(),
		InSitemap:  false, // feeds are discovered by link, not sitemap
	}}, nil
}

func newestDate(posts []RenderedDoc) time.Time {
	if len(posts) == 0 {
		return time.Time{}
	}
	return posts[0].Doc.Date
}

func atomTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339)
	}
	return t.UTC().Format(time.RFC3339)
}
