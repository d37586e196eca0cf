package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/thereceipt/receipt-studio/internal/renderer"
)

// readyScript resolves once web fonts and images have settled and reports
// whether every font face loaded.
const readyScript = `Promise.all([
  document.fonts.ready,
  ...Array.from(document.images).map(img => img.complete ? null :
    new Promise(resolve => { img.onload = img.onerror = resolve; }))
]).then(() => document.fonts.status === "loaded")`

const measureScript = `document.getElementById("` + renderer.ReceiptElementID + `").getBoundingClientRect().height`

const mmPerInch = 25.4

// BrowserOptions selects how Chrome is reached.
type BrowserOptions struct {
	// RemoteURL is a DevTools websocket URL of an already running browser.
	RemoteURL string
	// ExecPath overrides the Chrome binary for a locally launched browser.
	ExecPath string
}

// BrowserBackend renders the HTML preview in headless Chrome and prints it.
// It is safe for concurrent use; each export gets its own tab.
type BrowserBackend struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewBrowserBackend prepares a browser allocator. Chrome starts lazily on
// the first export.
func NewBrowserBackend(opts BrowserOptions, logger *slog.Logger) *BrowserBackend {
	if logger == nil {
		logger = slog.Default()
	}

	var allocCtx context.Context
	var cancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		execOpts = append(execOpts, chromedp.DisableGPU, chromedp.NoSandbox)
		if opts.ExecPath != "" {
			execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), execOpts...)
	}

	return &BrowserBackend{allocCtx: allocCtx, cancel: cancel, logger: logger}
}

// Close shuts the browser down.
func (b *BrowserBackend) Close() {
	b.cancel()
}

func (b *BrowserBackend) Export(ctx context.Context, req Request, sizing Sizing) (*Artifact, error) {
	tree, err := renderer.Build(req.Document)
	if err != nil {
		return nil, fail(StageRender, err)
	}
	html, err := renderer.HTML(tree, req.Document.Name)
	if err != nil {
		return nil, fail(StageRender, err)
	}

	tabCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	widthPx := int64(sizing.WidthMM * cssPxPerMM)
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(widthPx, 1000),
		chromedp.Navigate("about:blank"),
		setContent(string(html)),
	); err != nil {
		return nil, fail(StageRender, b.ctxErr(ctx, err))
	}

	// Measuring before fonts settle gives the fallback font's height.
	var fontsLoaded bool
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(readyScript, &fontsLoaded, awaitPromise)); err != nil {
		return nil, fail(StageFonts, b.ctxErr(ctx, err))
	}
	if !fontsLoaded {
		return nil, fail(StageFonts, ErrFontsNotReady)
	}

	var heightPx float64
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(measureScript, &heightPx)); err != nil {
		return nil, fail(StageMeasure, b.ctxErr(ctx, err))
	}
	if heightPx <= 0 {
		return nil, fail(StageMeasure, errors.New("receipt element has no height"))
	}
	contentMM := CSSPixelsToMM(heightPx)

	art := &Artifact{
		Format:      req.Format,
		ContentType: req.Format.ContentType(),
		WidthMM:     sizing.WidthMM,
		HeightMM:    sizing.PageHeightMM(contentMM),
		Pages:       sizing.Pages(contentMM),
		CreatedAt:   time.Now(),
	}

	switch req.Format {
	case FormatPNG:
		err = chromedp.Run(tabCtx, chromedp.Screenshot("#"+renderer.ReceiptElementID, &art.Data, chromedp.ByQuery))
		art.HeightMM = contentMM
	default:
		err = chromedp.Run(tabCtx, printPDF(art.WidthMM, art.HeightMM, &art.Data))
	}
	if err != nil {
		return nil, fail(StageEncode, b.ctxErr(ctx, err))
	}

	b.logger.Debug("browser export", "format", req.Format, "content_mm", contentMM, "page_mm", art.HeightMM)
	return art, nil
}

// ctxErr prefers the caller's cancellation over chromedp's wrapped error.
func (b *BrowserBackend) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

func printPDF(widthMM, heightMM float64, out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPreferCSSPageSize(false).
			WithPaperWidth(widthMM / mmPerInch).
			WithPaperHeight(heightMM / mmPerInch).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("print to pdf: %w", err)
		}
		*out = data
		return nil
	})
}
