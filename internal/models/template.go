package models

import (
	"fmt"
	"strings"
	"time"

	"FOM-CERTS/internal/apperr"
)

type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
	ElementShape ElementType = "shape"
	ElementQR    ElementType = "qr"
)

type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldDate FieldKind = "date"
	FieldList FieldKind = "list"
)

type ListMode string

const (
	ListBlocks ListMode = "blocks"
	ListPages  ListMode = "pages"
)

// QR payload modes a template can ask for.
const (
	QRModeURL  = "url"
	QRModeJSON = "json"
)

type Template struct {
	ID             string               `json:"id"`
	OrganizationID string               `json:"organizationId"`
	Name           string               `json:"name"`
	Elements       []Element            `json:"elements"`
	PageSettings   PageSettings         `json:"pageSettings"`
	Fonts          []Font               `json:"fonts,omitempty"`
	FieldKinds     map[string]FieldKind `json:"fieldKinds,omitempty"`
	QRMode         string               `json:"qrMode,omitempty"`
	Published      bool                 `json:"published"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

type PageSettings struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Margin     float64 `json:"margin,omitempty"`
	Background string  `json:"background,omitempty"`
}

type Font struct {
	Family   string   `json:"family"`
	Variants []string `json:"variants,omitempty"`
}

type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	Content  string      `json:"content"`
	Position Position    `json:"position"`
	Style    Style       `json:"style"`
	// KeepWhenEmpty renders the element with empty tokens stripped instead
	// of hiding it.
	KeepWhenEmpty bool      `json:"keepWhenEmpty,omitempty"`
	List          *ListSpec `json:"list,omitempty"`
}

type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Style struct {
	FontSize        string   `json:"fontSize,omitempty"`
	FontFamily      string   `json:"fontFamily,omitempty"`
	FontWeight      string   `json:"fontWeight,omitempty"`
	FontStyle       string   `json:"fontStyle,omitempty"`
	Color           string   `json:"color,omitempty"`
	TextAlign       string   `json:"textAlign,omitempty"`
	LineHeight      string   `json:"lineHeight,omitempty"`
	LetterSpacing   string   `json:"letterSpacing,omitempty"`
	Transform       string   `json:"transform,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`
	ZIndex          *int     `json:"zIndex,omitempty"`
	Border          string   `json:"border,omitempty"`
	BorderWidth     string   `json:"borderWidth,omitempty"`
	BorderStyle     string   `json:"borderStyle,omitempty"`
	BorderColor     string   `json:"borderColor,omitempty"`
	BorderRadius    string   `json:"borderRadius,omitempty"`
	Padding         string   `json:"padding,omitempty"`
	Display         string   `json:"display,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
}

// ListSpec marks an element as rendering a repeating field. In pages mode
// the element expands into a cover page followed by one page per record.
type ListSpec struct {
	Field        string    `json:"field"`
	Mode         ListMode  `json:"mode,omitempty"`
	Fields       []string  `json:"fields,omitempty"`
	Cover        []Element `json:"cover,omitempty"`
	PageElements []Element `json:"pageElements,omitempty"`
}

// KindOf reports how values for field are formatted.
func (t *Template) KindOf(field string) FieldKind {
	if kind, ok := t.FieldKinds[field]; ok {
		return kind
	}
	for _, el := range t.Elements {
		if el.List != nil && el.List.Field == field {
			return FieldList
		}
	}
	if field == "date" || strings.HasSuffix(field, "Date") || strings.HasSuffix(field, "_date") {
		return FieldDate
	}
	return FieldText
}

func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Invalid("name", "template name is required")
	}
	if t.PageSettings.Width <= 0 || t.PageSettings.Height <= 0 {
		return apperr.Invalid("pageSettings", "page width and height must be positive")
	}
	switch t.QRMode {
	case "", QRModeURL, QRModeJSON:
	default:
		return apperr.Invalid("qrMode", "unknown qr mode %q", t.QRMode)
	}
	return validateElements("elements", t.Elements)
}

func validateElements(path string, elements []Element) error {
	seen := make(map[string]bool, len(elements))
	for i, el := range elements {
		field := fmt.Sprintf("%s[%d]", path, i)
		if el.ID == "" {
			return apperr.Invalid(field, "element id is required")
		}
		if seen[el.ID] {
			return apperr.Invalid(field, "duplicate element id %q", el.ID)
		}
		seen[el.ID] = true

		switch el.Type {
		case ElementText, ElementImage, ElementShape, ElementQR:
		default:
			return apperr.Invalid(field, "unknown element type %q", el.Type)
		}

		p := el.Position
		if p.X < 0 || p.Y < 0 || p.Width < 0 || p.Height < 0 {
			return apperr.Invalid(field, "position values must be non-negative")
		}

		if el.List != nil {
			if el.List.Field == "" {
				return apperr.Invalid(field, "list field is required")
			}
			switch el.List.Mode {
			case "", ListBlocks, ListPages:
			default:
				return apperr.Invalid(field, "unknown list mode %q", el.List.Mode)
			}
			if err := validateElements(field+".cover", el.List.Cover); err != nil {
				return err
			}
			if err := validateElements(field+".pageElements", el.List.PageElements); err != nil {
				return err
			}
		}
	}
	return nil
}
