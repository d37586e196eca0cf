package export

import (
	"log/slog"

	"github.com/thereceipt/receipt-studio/internal/config"
	"github.com/thereceipt/receipt-studio/internal/renderer"
)

// Setup is a pipeline built from configuration plus the raster backend,
// which always serves printing.
type Setup struct {
	Pipeline *Pipeline
	Raster   *RasterBackend
	browser  *BrowserBackend
}

// NewSetup registers the configured backends. With the browser backend both
// PDF and PNG come from the previewed HTML; otherwise PDF is laid out by
// maroto and PNG drawn by the raster backend.
func NewSetup(cfg config.ExportConfig, logger *slog.Logger) *Setup {
	var opts []renderer.RasterOption
	if cfg.FontDir != "" {
		opts = append(opts, renderer.WithFontDir(cfg.FontDir))
	}

	s := &Setup{
		Pipeline: NewPipeline(cfg.Timeout, logger),
		Raster:   NewRasterBackend(opts...),
	}

	if cfg.Backend == config.BackendBrowser {
		s.browser = NewBrowserBackend(BrowserOptions{
			RemoteURL: cfg.ChromeWSURL,
			ExecPath:  cfg.ChromePath,
		}, logger)
		s.Pipeline.Register(FormatPDF, s.browser)
		s.Pipeline.Register(FormatPNG, s.browser)
	} else {
		s.Pipeline.Register(FormatPDF, NewDocumentBackend())
		s.Pipeline.Register(FormatPNG, s.Raster)
	}

	return s
}

// Close releases the browser, if one was started.
func (s *Setup) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
}
