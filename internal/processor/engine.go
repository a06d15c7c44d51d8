package processor

import (
	"errors"
	"html"
	"reflect"
	"strconv"
	"strings"
	"time"

	"FOM-CERTS/internal/models"
)

type Options struct {
	// Locale selects the date format, e.g. "en-US" or "es".
	Locale string
	// Now feeds the built-in date tokens. Zero means the wall clock.
	Now time.Time
}

// Engine resolves templates against caller data. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) now() time.Time {
	if e.opts.Now.IsZero() {
		return time.Now()
	}
	return e.opts.Now
}

// Resolve substitutes data into every element of t. Tokens with no value are
// stripped and their element is hidden, so no placeholder syntax survives.
func (e *Engine) Resolve(t *models.Template, data map[string]any) (*Document, error) {
	if t == nil {
		return nil, errors.New("processor: template is nil")
	}

	s := newScope(t, data, e.now(), e.opts.Locale)
	doc := &Document{
		TemplateID: t.ID,
		Width:      t.PageSettings.Width,
		Height:     t.PageSettings.Height,
		PageWidth:  t.PageSettings.Width,
		PageHeight: t.PageSettings.Height,
		PageCount:  1,
		Margin:     t.PageSettings.Margin,
		Background: t.PageSettings.Background,
		Fonts:      t.Fonts,
		Boxes:      make([]Box, 0, len(t.Elements)),
	}

	paged := false
	for _, el := range t.Elements {
		box := s.resolveElement(el, true)
		if n := len(box.Pages); n > 0 {
			if !paged || n > doc.PageCount {
				doc.PageCount = n
			}
			paged = true
			doc.PageWidth, doc.PageHeight = A4Width, A4Height
			doc.Width = A4Width
			doc.Height = A4Height * float64(doc.PageCount)
		}
		doc.Boxes = append(doc.Boxes, box)
	}

	return doc, nil
}

type scope struct {
	tmpl   *models.Template
	data   map[string]any
	folded map[string]string
	local  map[string]any
	now    time.Time
	locale string
}

func newScope(t *models.Template, data map[string]any, now time.Time, locale string) *scope {
	folded := make(map[string]string, len(data))
	for k := range data {
		lk := strings.ToLower(k)
		// Keep the lexically smallest key on case collisions so lookups
		// do not depend on map order.
		if prev, ok := folded[lk]; !ok || k < prev {
			folded[lk] = k
		}
	}
	return &scope{tmpl: t, data: data, folded: folded, now: now, locale: locale}
}

func (s *scope) child(local map[string]any) *scope {
	c := *s
	c.local = local
	return &c
}

func (s *scope) localValue(name string) (any, bool) {
	if s.local == nil {
		return nil, false
	}
	if v, ok := s.local[name]; ok {
		return v, true
	}
	if c := CanonicalField(name); c != "" {
		v, ok := s.local[c]
		return v, ok
	}
	return nil, false
}

func (s *scope) lookup(name string) (any, bool) {
	if v, ok := s.localValue(name); ok {
		return v, true
	}
	if v, ok := s.data[name]; ok {
		return v, true
	}
	if k, ok := s.folded[strings.ToLower(name)]; ok {
		return s.data[k], true
	}
	switch name {
	case "currentYear":
		return strconv.Itoa(s.now.Year()), true
	case "today":
		return s.now, true
	}
	return nil, false
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Slice
}

// text formats a scalar value for display.
func (s *scope) text(name string, v any) string {
	if t, ok := v.(time.Time); ok {
		return FormatDate(t, s.locale)
	}
	if s.tmpl.KindOf(name) == models.FieldDate {
		if t, ok := parseDate(v); ok {
			return FormatDate(t, s.locale)
		}
	}
	return stringify(v)
}

func (s *scope) isList(name string, v any) bool {
	if _, ok := s.localValue(name); ok {
		return false
	}
	return isSlice(v) || s.tmpl.KindOf(name) == models.FieldList
}

func buildList(v any, fields []string) *List {
	if len(fields) == 0 {
		fields = DefaultRosterFields
	}
	records, err := ParseRoster(v)
	if err != nil {
		return &List{Fields: fields, Message: MsgLoadError}
	}
	if len(records) == 0 {
		return &List{Fields: fields, Message: MsgNoData}
	}
	return &List{Records: records, Fields: fields}
}

func (s *scope) resolveElement(el models.Element, allowPages bool) Box {
	box := Box{
		ElementID: el.ID,
		Type:      el.Type,
		X:         el.Position.X,
		Y:         el.Position.Y,
		Width:     el.Position.Width,
		Height:    el.Position.Height,
		Style:     el.Style,
	}

	if allowPages && el.List != nil && el.List.Mode == models.ListPages {
		s.expandPages(el, &box)
		return box
	}

	switch el.Type {
	case models.ElementImage, models.ElementQR:
		src, empty := s.resolveSource(el.Content)
		box.Source = src
		box.Hidden = src == "" || (empty && !el.KeepWhenEmpty)
	default:
		var fields []string
		if el.List != nil {
			fields = el.List.Fields
		}
		segs, empty := s.resolveSegments(el.Content, fields)
		box.Segments = segs
		box.Hidden = empty && !el.KeepWhenEmpty
	}

	return box
}

// braceEscaper keeps stray braces from reading as placeholder syntax in the
// output. Browsers display the entities as plain braces.
var braceEscaper = strings.NewReplacer("{", "&#123;", "}", "&#125;")

// EscapeText makes a data value safe to place in markup.
func EscapeText(s string) string {
	return braceEscaper.Replace(html.EscapeString(s))
}

// resolveSegments builds HTML-safe markup from content. Template literals are
// trusted markup; substituted values are escaped and never scanned again.
func (s *scope) resolveSegments(content string, fields []string) ([]Segment, bool) {
	var segs []Segment
	var markup strings.Builder
	empty := false

	flush := func() {
		if markup.Len() > 0 {
			segs = append(segs, Segment{Markup: markup.String()})
			markup.Reset()
		}
	}

	for _, part := range Scan(content) {
		if !part.IsToken() {
			markup.WriteString(braceEscaper.Replace(part.Literal))
			continue
		}

		v, ok := s.lookup(part.Token)
		if !ok || isBlank(v) {
			empty = true
			continue
		}

		if s.isList(part.Token, v) {
			flush()
			segs = append(segs, Segment{List: buildList(v, fields)})
			continue
		}

		markup.WriteString(EscapeText(s.text(part.Token, v)))
	}
	flush()

	return segs, empty
}

func (s *scope) resolveSource(content string) (string, bool) {
	var b strings.Builder
	empty := false
	for _, part := range Scan(content) {
		if !part.IsToken() {
			b.WriteString(part.Literal)
			continue
		}
		v, ok := s.lookup(part.Token)
		if !ok || isBlank(v) || isSlice(v) {
			empty = true
			continue
		}
		b.WriteString(stringify(v))
	}
	return strings.TrimSpace(b.String()), empty
}
