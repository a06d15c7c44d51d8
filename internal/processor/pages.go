package processor

import (
	"strings"

	"FOM-CERTS/internal/models"
)

// expandPages turns a pages-mode list element into an optional cover page
// followed by one A4 page per record.
func (s *scope) expandPages(el models.Element, box *Box) {
	ls := el.List
	fields := ls.Fields
	if len(fields) == 0 {
		fields = DefaultRosterFields
	}

	raw, ok := s.lookup(ls.Field)
	if !ok || isBlank(raw) {
		box.Hidden = !el.KeepWhenEmpty
		return
	}

	list := buildList(raw, fields)
	if list.Message != "" {
		box.Segments = []Segment{{List: list}}
		return
	}

	total := len(list.Records)
	if len(ls.Cover) > 0 {
		total++
	}

	pages := make([]Page, 0, total)
	if len(ls.Cover) > 0 {
		cs := s.child(map[string]any{"pageNumber": 1, "pageCount": total})
		pages = append(pages, Page{Number: 1, Cover: true, Boxes: cs.resolveAll(ls.Cover)})
	}

	elements := ls.PageElements
	if len(elements) == 0 {
		elements = defaultPageElements(fields)
	}
	for _, rec := range list.Records {
		number := len(pages) + 1
		ps := s.child(recordScope(rec, number, total))
		pages = append(pages, Page{Number: number, Boxes: ps.resolveAll(elements)})
	}

	box.X, box.Y = 0, 0
	box.Width = A4Width
	box.Height = A4Height * float64(len(pages))
	box.Pages = pages
}

func (s *scope) resolveAll(elements []models.Element) []Box {
	boxes := make([]Box, 0, len(elements))
	for _, el := range elements {
		boxes = append(boxes, s.resolveElement(el, false))
	}
	return boxes
}

func recordScope(rec Record, pageNumber, pageCount int) map[string]any {
	local := map[string]any{
		"index":      rec.Index,
		"name":       rec.Name,
		"country":    rec.Country,
		"university": rec.University,
		"major":      rec.Major,
		"pageNumber": pageNumber,
		"pageCount":  pageCount,
	}
	for k, v := range rec.Extra {
		if _, taken := local[k]; !taken {
			local[k] = v
		}
	}
	return local
}

func defaultPageElements(fields []string) []models.Element {
	const margin = 80.0
	width := A4Width - 2*margin

	elements := []models.Element{
		{
			ID:       "page-index",
			Type:     models.ElementText,
			Content:  "No. {{index}}",
			Position: models.Position{X: margin, Y: 140, Width: width, Height: 40},
			Style:    models.Style{FontSize: "20px", TextAlign: "center", Color: "#555555"},
		},
		{
			ID:       "page-name",
			Type:     models.ElementText,
			Content:  "{{name}}",
			Position: models.Position{X: margin, Y: 200, Width: width, Height: 80},
			Style:    models.Style{FontSize: "40px", FontWeight: "bold", TextAlign: "center"},
		},
	}

	y := 320.0
	for _, f := range fields {
		switch CanonicalField(f) {
		case "name", "index":
			continue
		}
		elements = append(elements, models.Element{
			ID:       "page-" + strings.ToLower(f),
			Type:     models.ElementText,
			Content:  "{{" + f + "}}",
			Position: models.Position{X: margin, Y: y, Width: width, Height: 48},
			Style:    models.Style{FontSize: "24px", TextAlign: "center"},
		})
		y += 60
	}
	return elements
}
