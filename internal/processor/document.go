package processor

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"FOM-CERTS/internal/models"
)

// A4 page at 96 dpi, used when a template expands into pages.
const (
	A4Width  = 794.0
	A4Height = 1123.0
)

// Messages shown in place of list data that cannot be rendered.
const (
	MsgNoData    = "no data available"
	MsgLoadError = "error loading data"
)

// Document is a resolved template: positioned boxes with their final content.
type Document struct {
	TemplateID string
	Width      float64
	Height     float64
	PageWidth  float64
	PageHeight float64
	PageCount  int
	Margin     float64
	Background string
	Fonts      []models.Font
	Boxes      []Box
}

// Paged reports whether the document was expanded into A4 pages.
func (d *Document) Paged() bool {
	for _, b := range d.Boxes {
		if len(b.Pages) > 0 {
			return true
		}
	}
	return false
}

type Box struct {
	ElementID string
	Type      models.ElementType
	X         float64
	Y         float64
	Width     float64
	Height    float64
	Style     models.Style
	// Segments hold text content: HTML-safe markup and list blocks.
	Segments []Segment
	// Source is the resolved src of image and qr boxes.
	Source string
	Hidden bool
	Pages  []Page

	// Set by the layout fitter.
	FontSize   int
	LineHeight float64
}

type Segment struct {
	Markup string
	List   *List
}

type List struct {
	Records []Record
	Fields  []string
	Message string
}

type Page struct {
	Number int
	Cover  bool
	Boxes  []Box
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags removes markup and decodes entities.
func StripTags(markup string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(markup, " "))
}

// PlainText is the visible text of the box, used for measuring.
func (b *Box) PlainText() string {
	var parts []string
	for _, seg := range b.Segments {
		if seg.List != nil {
			parts = append(parts, seg.List.PlainText())
			continue
		}
		parts = append(parts, StripTags(seg.Markup))
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func (l *List) PlainText() string {
	if l.Message != "" {
		return l.Message
	}
	lines := make([]string, 0, len(l.Records))
	for _, r := range l.Records {
		fields := []string{strconv.Itoa(r.Index) + "."}
		for _, f := range l.Fields {
			if v, ok := r.Field(f); ok && v != "" {
				fields = append(fields, v)
			}
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return strings.Join(lines, "\n")
}
