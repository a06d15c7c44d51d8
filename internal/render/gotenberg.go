package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"

	"FOM-CERTS/internal/apperr"
)

type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPDF, FormatPNG:
		return Format(s), nil
	case "":
		return FormatPNG, nil
	}
	return "", apperr.Invalid("format", "unsupported format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Renderer turns serialized HTML into output bytes of the requested format.
// Dimensions are CSS pixels.
type Renderer interface {
	Render(ctx context.Context, html string, width, height float64, format Format) ([]byte, error)
}

type GotenbergRenderer struct {
	client  *gotenberg.Client
	timeout time.Duration
	log     *logrus.Logger
}

func NewGotenbergRenderer(gotenbergURL string, timeoutStr string, log *logrus.Logger) (*GotenbergRenderer, error) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		log.WithError(err).Warnf("invalid gotenberg timeout %q, using 30s", timeoutStr)
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &GotenbergRenderer{
		client:  client,
		timeout: timeout,
		log:     log,
	}, nil
}

func (r *GotenbergRenderer) Render(ctx context.Context, html string, width, height float64, format Format) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, &apperr.RenderError{Op: "render", Err: fmt.Errorf("invalid page size %vx%v", width, height)}
	}

	renderCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	index, err := document.FromString("index.html", html)
	if err != nil {
		return nil, &apperr.RenderError{Op: "render", Err: fmt.Errorf("failed to create document: %w", err)}
	}

	start := time.Now()
	var resp *http.Response
	switch format {
	case FormatPDF:
		req := gotenberg.NewHTMLRequest(index)
		req.PaperSize(gotenberg.PaperDimensions{
			Width:  width / 96,
			Height: height / 96,
			Unit:   gotenberg.IN,
		})
		req.Margins(gotenberg.NoMargins)
		req.PrintBackground()
		resp, err = r.client.Send(renderCtx, req)
	case FormatPNG:
		req := gotenberg.NewHTMLRequest(index)
		req.Format(gotenberg.PNG)
		req.ScreenshotWidth(int(math.Ceil(width)))
		req.ScreenshotHeight(int(math.Ceil(height)))
		req.ScreenshotClip()
		resp, err = r.client.Screenshot(renderCtx, req)
	default:
		return nil, &apperr.RenderError{Op: "render", Err: fmt.Errorf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, &apperr.RenderError{Op: "render " + string(format), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.RenderError{Op: "render " + string(format), Err: fmt.Errorf("gotenberg returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.RenderError{Op: "read " + string(format), Err: err}
	}
	if len(data) == 0 {
		return nil, &apperr.RenderError{Op: "render " + string(format), Err: errors.New("empty output")}
	}

	r.log.WithFields(logrus.Fields{
		"format":   format,
		"bytes":    len(data),
		"duration": time.Since(start).String(),
	}).Debug("render complete")

	return data, nil
}
