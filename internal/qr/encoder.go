package qr

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

type Format string

const (
	FormatPDF     Format = "pdf"
	FormatPNG     Format = "png"
	FormatPreview Format = "preview"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatPNG, "":
		return FormatPNG, nil
	case FormatPreview:
		return FormatPreview, nil
	}
	return "", fmt.Errorf("unknown qr format %q", s)
}

type Kind string

const (
	KindCertificateJSON Kind = "certificate-json"
	KindURL             Kind = "url"
	KindGeneric         Kind = "generic"
)

// Keys that mark a JSON payload as local certificate data.
var certificateKeys = []string{"certificateId", "certificate_id", "certificateNumber", "verificationCode"}

// Settings is the module scale (pixels per module) and error correction
// chosen for a payload.
type Settings struct {
	Scale int
	Level qrcode.RecoveryLevel
}

type Image struct {
	PNG     []byte
	Kind    Kind
	Level   qrcode.RecoveryLevel
	Scale   int
	Modules int
}

func (img *Image) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG)
}

// Classify decides how a payload is encoded.
func Classify(payload string) Kind {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for _, key := range certificateKeys {
				if _, ok := obj[key]; ok {
					return KindCertificateJSON
				}
			}
		}
		return KindGeneric
	}

	u, err := url.Parse(trimmed)
	if err == nil && u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return KindURL
	}
	return KindGeneric
}

// SettingsFor picks scale and error correction. Verbose JSON yields a dense
// code, so it gets the biggest modules and the strongest recovery. Print
// tolerates finer modules than screen capture.
func SettingsFor(kind Kind, format Format) Settings {
	switch kind {
	case KindCertificateJSON:
		return Settings{Scale: 16, Level: qrcode.Highest}
	case KindURL:
		return Settings{Scale: 10, Level: qrcode.Medium}
	}
	if format == FormatPDF {
		return Settings{Scale: 10, Level: qrcode.Medium}
	}
	return Settings{Scale: 12, Level: qrcode.Medium}
}

// Encode renders payload as a PNG with no quiet zone, so the code fills its
// element box. Readers still scan it at the chosen recovery level.
func Encode(payload string, format Format) (*Image, error) {
	if payload == "" {
		return nil, errors.New("qr payload cannot be empty")
	}

	kind := Classify(payload)
	settings := SettingsFor(kind, format)

	code, err := qrcode.New(payload, settings.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr code: %w", err)
	}
	code.DisableBorder = true
	code.ForegroundColor = color.Black
	code.BackgroundColor = color.White

	// A negative size asks for exactly Scale pixels per module.
	png, err := code.PNG(-settings.Scale)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr png: %w", err)
	}

	return &Image{
		PNG:     png,
		Kind:    kind,
		Level:   settings.Level,
		Scale:   settings.Scale,
		Modules: 17 + 4*code.VersionNumber,
	}, nil
}
