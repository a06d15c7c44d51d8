package render

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/processor"
)

type HTMLOptions struct {
	Title     string
	Watermark *models.Watermark
}

const baseCSS = `html, body { margin: 0; padding: 0; }
body { -webkit-print-color-adjust: exact; print-color-adjust: exact; }
.canvas { position: relative; overflow: hidden; }
.el { position: absolute; box-sizing: border-box; overflow: hidden; overflow-wrap: break-word; white-space: pre-wrap; }
.el img { display: block; width: 100%; height: 100%; object-fit: contain; }
.el img.qr { image-rendering: pixelated; object-fit: fill; }
.list-item { margin: 0 0 0.35em 0; }
.list-index { font-weight: bold; margin-right: 0.4em; }
.list-sep { margin: 0 0.35em; opacity: 0.6; }
.list-message { font-style: italic; opacity: 0.7; }
.page { position: absolute; left: 0; overflow: hidden; }
.page-break { page-break-after: always; break-after: page; height: 0; }
.watermark { position: absolute; pointer-events: none; font-size: 28px; font-weight: bold; letter-spacing: 4px; color: rgba(0, 0, 0, 0.06); white-space: nowrap; z-index: 9999; }
`

// HTML serializes a resolved document into a standalone page whose size
// matches the document exactly.
func HTML(doc *processor.Document, opts HTMLOptions) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if opts.Title != "" {
		fmt.Fprintf(&b, "<title>%s</title>\n", processor.EscapeText(opts.Title))
	}
	for _, href := range fontLinks(doc.Fonts) {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(href))
	}

	b.WriteString("<style>\n")
	fmt.Fprintf(&b, "@page { size: %spx %spx; margin: 0; }\n", px(doc.PageWidth), px(doc.PageHeight))
	b.WriteString(baseCSS)
	b.WriteString("</style>\n</head>\n<body>\n")

	canvas := []string{
		"width:" + px(doc.Width) + "px",
		"height:" + px(doc.Height) + "px",
	}
	if bg := cssValue(doc.Background); bg != "" {
		canvas = append(canvas, "background:"+bg)
	}
	fmt.Fprintf(&b, "<div class=\"canvas\" style=\"%s\">\n", html.EscapeString(strings.Join(canvas, ";")))

	for _, box := range doc.Boxes {
		if len(box.Pages) > 0 {
			writePages(&b, box, doc.PageHeight)
			continue
		}
		writeBox(&b, box)
	}

	if wm := opts.Watermark; wm != nil && wm.Text != "" {
		fmt.Fprintf(&b, "<div class=\"watermark\" style=\"left:%spx;top:%spx;transform:rotate(%sdeg)\">%s</div>\n",
			px(wm.Position.X), px(wm.Position.Y), px(wm.Position.Rotation), processor.EscapeText(wm.Text))
	}

	b.WriteString("</div>\n</body>\n</html>\n")
	return b.String()
}

func writePages(b *strings.Builder, box processor.Box, pageHeight float64) {
	if pageHeight <= 0 {
		pageHeight = processor.A4Height
	}
	for i, page := range box.Pages {
		top := float64(page.Number-1) * pageHeight
		class := "page"
		if page.Cover {
			class = "page cover"
		}
		fmt.Fprintf(b, "<div class=\"%s\" data-page=\"%d\" style=\"top:%spx;width:%spx;height:%spx\">\n",
			class, page.Number, px(top), px(box.Width), px(pageHeight))
		for _, pb := range page.Boxes {
			writeBox(b, pb)
		}
		b.WriteString("</div>\n")
		if i < len(box.Pages)-1 {
			b.WriteString("<div class=\"page-break\"></div>\n")
		}
	}
}

func writeBox(b *strings.Builder, box processor.Box) {
	fmt.Fprintf(b, "<div class=\"el el-%s\" data-id=\"%s\" style=\"%s\">",
		box.Type, html.EscapeString(box.ElementID), html.EscapeString(boxStyle(box)))

	switch box.Type {
	case models.ElementImage, models.ElementQR:
		if src := safeSource(box.Source); src != "" {
			class := ""
			if box.Type == models.ElementQR {
				class = " class=\"qr\""
			}
			fmt.Fprintf(b, "<img%s src=\"%s\" alt=\"\">", class, html.EscapeString(src))
		}
	case models.ElementShape:
	default:
		for _, seg := range box.Segments {
			if seg.List != nil {
				writeList(b, seg.List)
				continue
			}
			b.WriteString(seg.Markup)
		}
	}

	b.WriteString("</div>\n")
}

func writeList(b *strings.Builder, l *processor.List) {
	if l.Message != "" {
		fmt.Fprintf(b, "<div class=\"list-message\">%s</div>", processor.EscapeText(l.Message))
		return
	}
	b.WriteString("<div class=\"list\">")
	for _, rec := range l.Records {
		fmt.Fprintf(b, "<div class=\"list-item\"><span class=\"list-index\">%d.</span>", rec.Index)
		first := true
		for _, f := range l.Fields {
			v, ok := rec.Field(f)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			if !first {
				b.WriteString("<span class=\"list-sep\">&bull;</span>")
			}
			first = false
			fmt.Fprintf(b, "<span class=\"list-%s\">%s</span>", cssClass(f), processor.EscapeText(v))
		}
		b.WriteString("</div>")
	}
	b.WriteString("</div>")
}

func boxStyle(box processor.Box) string {
	s := box.Style
	decls := []string{
		"left:" + px(box.X) + "px",
		"top:" + px(box.Y) + "px",
		"width:" + px(box.Width) + "px",
		"height:" + px(box.Height) + "px",
	}
	add := func(prop, value string) {
		if v := cssValue(value); v != "" {
			decls = append(decls, prop+":"+v)
		}
	}

	if box.FontSize > 0 {
		add("font-size", strconv.Itoa(box.FontSize)+"px")
	} else {
		add("font-size", s.FontSize)
	}
	if box.LineHeight > 0 {
		add("line-height", strconv.FormatFloat(box.LineHeight, 'f', -1, 64))
	} else {
		add("line-height", s.LineHeight)
	}
	add("font-family", s.FontFamily)
	add("font-weight", s.FontWeight)
	add("font-style", s.FontStyle)
	add("color", s.Color)
	add("text-align", s.TextAlign)
	add("letter-spacing", s.LetterSpacing)
	add("transform", s.Transform)
	if s.Opacity != nil {
		add("opacity", strconv.FormatFloat(*s.Opacity, 'f', -1, 64))
	}
	if s.ZIndex != nil {
		add("z-index", strconv.Itoa(*s.ZIndex))
	}
	add("border", s.Border)
	add("border-width", s.BorderWidth)
	add("border-style", s.BorderStyle)
	add("border-color", s.BorderColor)
	add("border-radius", s.BorderRadius)
	add("padding", s.Padding)
	add("background-color", s.BackgroundColor)

	if box.Hidden {
		add("display", "none")
	} else {
		add("display", s.Display)
	}

	return strings.Join(decls, ";")
}

// cssValue drops characters that could end a declaration or the attribute.
func cssValue(v string) string {
	v = strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '\\', '\n', '\r':
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(v)
}

func cssClass(field string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, field)
}

// safeSource allows remote images, inline image data and same-origin asset
// paths such as /assets/seal.png or assets/seal.png.
func safeSource(src string) string {
	src = strings.TrimSpace(src)
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "data:image/"):
		return src
	case src == "", strings.HasPrefix(src, "//"), strings.ContainsAny(src, "\\\x00"):
		return ""
	}
	u, err := url.Parse(src)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return src
}

func fontLinks(fonts []models.Font) []string {
	links := make([]string, 0, len(fonts))
	for _, f := range fonts {
		family := strings.TrimSpace(f.Family)
		if family == "" {
			continue
		}
		q := url.QueryEscape(family)

		var weights []int
		for _, v := range f.Variants {
			if w, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && w >= 100 && w <= 900 {
				weights = append(weights, w)
			}
		}
		if len(weights) > 0 {
			sort.Ints(weights)
			parts := make([]string, 0, len(weights))
			for i, w := range weights {
				if i > 0 && weights[i-1] == w {
					continue
				}
				parts = append(parts, strconv.Itoa(w))
			}
			q += ":wght@" + strings.Join(parts, ";")
		}
		links = append(links, "https://fonts.googleapis.com/css2?family="+q+"&display=swap")
	}
	return links
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
