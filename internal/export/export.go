// Package export produces downloadable artifacts (PDF, PNG) from receipt
// documents. Thermal paper is exported as a single page as tall as the
// measured content; page formats use their fixed dimensions.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "application/pdf"
}

// ParseFormat accepts "pdf" and "png"; empty means pdf.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatPNG:
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Stage names the step an export failed in.
type Stage string

const (
	StageValidate Stage = "validate"
	StageRender   Stage = "render"
	StageFonts    Stage = "fonts"
	StageMeasure  Stage = "measure"
	StageEncode   Stage = "encode"
	StageVerify   Stage = "verify"
)

var (
	// ErrExportFailed matches every *Error.
	ErrExportFailed  = errors.New("export failed")
	ErrFontsNotReady = errors.New("fonts did not finish loading")
	ErrEmptyArtifact = errors.New("export produced no data")
	ErrUnsupported   = errors.New("no exporter for format")
)

// Error is a failed export. The caller may retry; no artifact was produced.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrExportFailed, e.Err}
}

func fail(stage Stage, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Stage: stage, Err: err}
}

// Request is one export job.
type Request struct {
	Document *receiptformat.Document
	Format   Format
}

// Artifact is a finished export.
type Artifact struct {
	Format      Format
	ContentType string
	Data        []byte
	WidthMM     float64
	HeightMM    float64
	Pages       int
	CreatedAt   time.Time
}

// Backend renders one request under the given sizing policy.
type Backend interface {
	Export(ctx context.Context, req Request, sizing Sizing) (*Artifact, error)
}

// Pipeline validates requests, picks the backend for the format and checks
// the result before handing it out.
type Pipeline struct {
	backends map[Format]Backend
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. timeout bounds each export; zero disables it.
func NewPipeline(timeout time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		backends: make(map[Format]Backend),
		timeout:  timeout,
		logger:   logger,
	}
}

// Register installs the backend for a format, replacing any previous one.
func (p *Pipeline) Register(f Format, b Backend) *Pipeline {
	p.backends[f] = b
	return p
}

// Export renders doc as format. On failure it returns an *Error and no artifact.
func (p *Pipeline) Export(ctx context.Context, doc *receiptformat.Document, format Format) (*Artifact, error) {
	if err := receiptformat.Validate(doc); err != nil {
		return nil, fail(StageValidate, err)
	}

	backend, ok := p.backends[format]
	if !ok {
		return nil, fail(StageRender, fmt.Errorf("%w %s", ErrUnsupported, format))
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	sizing := SizingFor(doc.Settings.PaperSize)

	art, err := backend.Export(ctx, Request{Document: doc, Format: format}, sizing)
	if err != nil {
		p.logger.Warn("export failed", "format", format, "paper", doc.Settings.PaperSize, "error", err)
		return nil, fail(StageRender, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(StageRender, err)
	}
	if err := verify(art, format); err != nil {
		return nil, fail(StageVerify, err)
	}

	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now()
	}
	p.logger.Info("export finished",
		"format", format,
		"paper", doc.Settings.PaperSize,
		"bytes", len(art.Data),
		"width_mm", art.WidthMM,
		"height_mm", art.HeightMM,
		"duration", time.Since(start),
	)
	return art, nil
}

var (
	pdfMagic = []byte("%PDF-")
	pngMagic = []byte("\x89PNG\r\n\x1a\n")
)

// verify rejects empty or truncated output so a partial file is never served.
func verify(art *Artifact, format Format) error {
	if art == nil || len(art.Data) == 0 {
		return ErrEmptyArtifact
	}
	magic := pdfMagic
	if format == FormatPNG {
		magic = pngMagic
	}
	if !bytes.HasPrefix(art.Data, magic) {
		return fmt.Errorf("output is not a valid %s file", format)
	}
	if format == FormatPDF && !bytes.Contains(art.Data[max(0, len(art.Data)-1024):], []byte("%%EOF")) {
		return fmt.Errorf("pdf output is truncated")
	}
	return nil
}
