package layout

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/processor"
)

const (
	DefaultFontSize = 16.0

	longTextThreshold = 100
	charWidthRatio    = 0.6
	usableWidthRatio  = 0.9
	lineHeightRatio   = 1.2

	shortHeightCap = 0.8
	shortFloor     = 10.0
	shortUpscale   = 1.02

	longHeightTrigger = 1.5
	longMinRatio      = 0.8
	longFloor         = 12.0
	longUpscale       = 1.01

	longLineHeight       = 1.4
	longLineHeightScaled = 1.3
)

var namedSizes = map[string]float64{
	"xx-small":  9,
	"x-small":   10,
	"small":     13,
	"medium":    16,
	"large":     18,
	"x-large":   24,
	"xx-large":  32,
	"xxx-large": 48,
}

// NormalizeFontSize converts a CSS font size to pixels. Unknown or empty
// values fall back to DefaultFontSize.
func NormalizeFontSize(declared string) float64 {
	s := strings.ToLower(strings.TrimSpace(declared))
	if s == "" {
		return DefaultFontSize
	}
	if px, ok := namedSizes[s]; ok {
		return px
	}

	unit := ""
	for _, u := range []string{"rem", "px", "pt", "em", "%"} {
		if strings.HasSuffix(s, u) {
			unit = u
			s = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return DefaultFontSize
	}

	switch unit {
	case "pt":
		return v * 96 / 72
	case "em", "rem":
		return v * DefaultFontSize
	case "%":
		return v / 100 * DefaultFontSize
	}
	return v
}

type Result struct {
	FontSize int
	// LineHeight is a unitless multiplier.
	LineHeight float64
	Long       bool
}

// Fit picks a font size for text inside a width x height box. Short text is
// kept on as few lines as possible without clipping; long text is allowed to
// wrap and is only shrunk when it would grossly overflow.
func Fit(text string, width, height float64, declared string) Result {
	size := NormalizeFontSize(declared)
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return Result{FontSize: int(math.Round(size)), LineHeight: lineHeightRatio}
	}

	estWidth := float64(n) * charWidthRatio * size
	usable := width * usableWidthRatio

	if n > longTextThreshold {
		return fitLong(size, estWidth, usable, height)
	}
	return fitShort(size, estWidth, usable, height)
}

func fitShort(size, estWidth, usable, height float64) Result {
	if usable > 0 && estWidth > usable {
		size *= usable / estWidth
	}
	if height > 0 && size > height*shortHeightCap {
		size = height * shortHeightCap
	}
	if size < shortFloor {
		size = shortFloor
	}
	return Result{
		FontSize:   int(math.Round(size * shortUpscale)),
		LineHeight: lineHeightRatio,
	}
}

func fitLong(size, estWidth, usable, height float64) Result {
	original := size
	lines := 1.0
	if usable > 0 {
		lines = math.Max(1, estWidth/usable)
	}
	estHeight := lines * size * lineHeightRatio

	lineHeight := longLineHeight
	if height > 0 && estHeight > height*longHeightTrigger {
		size = math.Max(size*height*longHeightTrigger/estHeight, original*longMinRatio)
		lineHeight = longLineHeightScaled
	}
	if size < longFloor {
		size = longFloor
	}
	return Result{
		FontSize:   int(math.Round(size * longUpscale)),
		LineHeight: lineHeight,
		Long:       true,
	}
}

// Apply fits every visible text box of doc, page boxes included.
func Apply(doc *processor.Document) {
	for i := range doc.Boxes {
		applyBox(&doc.Boxes[i])
	}
}

func applyBox(b *processor.Box) {
	for p := range b.Pages {
		for i := range b.Pages[p].Boxes {
			applyBox(&b.Pages[p].Boxes[i])
		}
	}
	if b.Hidden || b.Type != models.ElementText || len(b.Pages) > 0 {
		return
	}
	r := Fit(b.PlainText(), b.Width, b.Height, b.Style.FontSize)
	b.FontSize = r.FontSize
	b.LineHeight = r.LineHeight
}
