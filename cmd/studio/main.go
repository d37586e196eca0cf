package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/thereceipt/receipt-studio/internal/catalog"
	"github.com/thereceipt/receipt-studio/internal/config"
	"github.com/thereceipt/receipt-studio/internal/draft"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/logging"
	"github.com/thereceipt/receipt-studio/internal/printer"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/internal/tui"
)

func main() {
	envFile := flag.String("env", ".env", "Path to an env file")
	templateID := flag.String("template", "walgreens", "Template to edit")
	logFile := flag.String("log", "", "Write logs to this file (default: discard)")
	outDir := flag.String("out", ".", "Directory for exported PDFs")
	flag.Parse()

	if err := run(*envFile, *templateID, *logFile, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, templateID, logFile, outDir string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Anything written to stdout would tear the terminal UI.
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.NewWithWriter(cfg.Logging, logOut).With("app", "studio")
	slog.SetDefault(logger)

	var templates *catalog.Catalog
	if cfg.App.TemplateDir == "" {
		templates, err = catalog.Default()
	} else {
		templates, err = catalog.Open(cfg.App.TemplateDir)
	}
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	var drafts draft.Store = draft.NewMemoryStore()
	if cfg.Session.DraftPath != "" {
		fs, err := draft.NewFileStore(cfg.Session.DraftPath)
		if err != nil {
			return fmt.Errorf("failed to open draft store: %w", err)
		}
		drafts = fs
	}

	bus := events.NewBus()
	exports := export.NewSetup(cfg.Export, logger)
	defer exports.Close()

	deps := session.Deps{
		Templates:  templates,
		Drafts:     drafts,
		Exporter:   exports.Pipeline,
		Rasterizer: exports.Raster,
		Bus:        bus,
		Logger:     logger,
	}

	queue, err := printer.New(cfg.Printer, logger)
	if err != nil {
		return fmt.Errorf("failed to set up printer: %w", err)
	}
	if queue != nil {
		deps.Printer = queue
		defer queue.Stop()
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "terminal"
	}

	sess, err := session.Open(context.Background(), session.Options{
		ID:         "studio",
		ClientID:   host,
		TemplateID: templateID,
		Debounce:   cfg.Session.PreviewDebounce,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", templateID, err)
	}
	defer sess.Close()

	app := tui.NewApp(sess, bus)
	app.SetOutputDir(outDir)
	return app.Run()
}
