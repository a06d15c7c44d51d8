package layout

import (
	"strings"
	"testing"

	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/processor"
)

func TestNormalizeFontSize(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 16},
		{"24px", 24},
		{"18pt", 24},
		{"1.5em", 24},
		{"2rem", 32},
		{"150%", 24},
		{"large", 18},
		{"X-Large", 24},
		{"20", 20},
		{" 12 px ", 12},
		{"bogus", 16},
		{"-4px", 16},
	}
	for _, tt := range tests {
		if got := NormalizeFontSize(tt.in); got != tt.want {
			t.Errorf("NormalizeFontSize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFitShort(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		width, height float64
		declared      string
		want          int
	}{
		// Fits: only the +2% bias applies.
		{"fits", "Jane Doe", 600, 80, "40px", 41},
		// 8 chars * 0.6 * 40 = 192 > 0.9*100 = 90, scaled to 18.75.
		{"too wide", "Jane Doe", 100, 80, "40px", 19},
		// Capped by 0.8 * height.
		{"too tall", "Jane", 600, 20, "40px", 16},
		// Scaled below the 10px floor.
		{"floor", strings.Repeat("x", 90), 100, 80, "16px", 10},
	}
	for _, tt := range tests {
		r := Fit(tt.text, tt.width, tt.height, tt.declared)
		if r.FontSize != tt.want || r.Long {
			t.Errorf("%s: Fit = %+v, want FontSize %d short", tt.name, r, tt.want)
		}
	}
}

func TestFitLong(t *testing.T) {
	para := strings.Repeat("a", 150)

	r := Fit(para, 200, 30, "16px")
	if !r.Long {
		t.Fatalf("150 chars must be long content")
	}
	if r.FontSize < 12 {
		t.Fatalf("long content shrank below 12px: %d", r.FontSize)
	}
	if r.LineHeight != 1.3 {
		t.Fatalf("scaled long content line height = %v, want 1.3", r.LineHeight)
	}

	// Roomy box: no downscale, only the +1% bias.
	r = Fit(para, 800, 400, "20px")
	if r.FontSize != 20 || r.LineHeight != 1.4 {
		t.Fatalf("roomy long content = %+v, want 20px at 1.4", r)
	}

	// Never below 80% of the declared size.
	r = Fit(strings.Repeat("a", 1000), 200, 30, "30px")
	if r.FontSize != 24 {
		t.Fatalf("long content min ratio: got %d, want 24", r.FontSize)
	}

	// 1.2 estimated lines is 23px of text in a 20px box, inside the 1.5x
	// allowance. Rounding up to whole lines would have shrunk it to 13px.
	r = Fit(strings.Repeat("a", 110), 977.8, 20, "16px")
	if r.FontSize != 16 || r.LineHeight != 1.4 {
		t.Fatalf("fractional line estimate = %+v, want 16px at 1.4", r)
	}
}

// Size never grows with length inside one class. Crossing from short to long
// content may raise it, because the floor moves from 10px to 12px.
func TestFitMonotonicWithinClass(t *testing.T) {
	boxes := []struct{ w, h float64 }{{200, 30}, {400, 60}, {120, 200}}
	for _, b := range boxes {
		prevShort, prevLong := 1<<30, 1<<30
		for n := 1; n <= 400; n++ {
			r := Fit(strings.Repeat("m", n), b.w, b.h, "24px")
			prev := &prevShort
			if r.Long {
				prev = &prevLong
			}
			if r.FontSize > *prev {
				t.Fatalf("box %vx%v: font grew from %d to %d at %d chars", b.w, b.h, *prev, r.FontSize, n)
			}
			*prev = r.FontSize
		}
	}
}

func TestFitEmpty(t *testing.T) {
	if r := Fit("", 100, 20, "18px"); r.FontSize != 18 || r.Long {
		t.Fatalf("empty text = %+v", r)
	}
}

func TestApply(t *testing.T) {
	doc := &processor.Document{
		Boxes: []processor.Box{
			{
				ElementID: "name",
				Type:      models.ElementText,
				Width:     100, Height: 80,
				Style:    models.Style{FontSize: "40px"},
				Segments: []processor.Segment{{Markup: "Jane <b>Doe</b>"}},
			},
			{
				ElementID: "hidden",
				Type:      models.ElementText,
				Width:     100, Height: 80,
				Hidden:   true,
				Segments: []processor.Segment{{Markup: "x"}},
			},
			{
				ElementID: "logo",
				Type:      models.ElementImage,
				Width:     100, Height: 80,
			},
			{
				ElementID: "pages",
				Type:      models.ElementText,
				Pages: []processor.Page{{Number: 1, Boxes: []processor.Box{{
					ElementID: "page-name",
					Type:      models.ElementText,
					Width:     600, Height: 80,
					Style:    models.Style{FontSize: "40px"},
					Segments: []processor.Segment{{Markup: "Jane"}},
				}}}},
			},
		},
	}

	Apply(doc)

	if got := doc.Boxes[0].FontSize; got != 19 {
		t.Errorf("name font = %d, want 19", got)
	}
	if doc.Boxes[1].FontSize != 0 || doc.Boxes[2].FontSize != 0 || doc.Boxes[3].FontSize != 0 {
		t.Errorf("hidden, image and page container boxes must not be fitted")
	}
	if got := doc.Boxes[3].Pages[0].Boxes[0].FontSize; got != 41 {
		t.Errorf("page box font = %d, want 41", got)
	}
}
