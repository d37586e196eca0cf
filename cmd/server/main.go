package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thereceipt/receipt-studio/internal/api"
	"github.com/thereceipt/receipt-studio/internal/auth"
	"github.com/thereceipt/receipt-studio/internal/catalog"
	"github.com/thereceipt/receipt-studio/internal/config"
	"github.com/thereceipt/receipt-studio/internal/credits"
	"github.com/thereceipt/receipt-studio/internal/database"
	"github.com/thereceipt/receipt-studio/internal/draft"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/logging"
	"github.com/thereceipt/receipt-studio/internal/printer"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/internal/store"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	envFile := flag.String("env", ".env", "Path to an env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("app", cfg.App.Name, "env", cfg.App.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Storage
	var (
		saved      store.ReceiptRepository
		creditRepo store.CreditRepository
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.NewPostgresDB(&cfg.Database, cfg.App.Debug)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		saved = store.NewReceiptRepository(db)
		creditRepo = store.NewCreditRepository(db)
	default:
		logger.Warn("using in-memory storage; saved receipts and credits are lost on restart")
		saved = store.NewMemoryReceipts()
		creditRepo = store.NewMemoryCredits()
	}

	// Templates
	templates, err := loadCatalog(cfg.App.TemplateDir)
	if err != nil {
		return err
	}
	logger.Info("templates loaded", "count", len(templates.List()))

	// Drafts
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

	creditService := credits.NewService(creditRepo, bus, credits.Options{
		DownloadCost:  cfg.Credits.DownloadCost,
		WebhookSecret: cfg.Credits.PaymentWebhookSecret,
	}, logger)

	deps := session.Deps{
		Templates:  templates,
		Drafts:     drafts,
		Saved:      saved,
		Exporter:   exports.Pipeline,
		Credits:    creditService,
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

	sessions := session.NewManager(deps, session.ManagerConfig{
		TTL:      cfg.Session.TTL,
		Debounce: cfg.Session.PreviewDebounce,
	})
	sessions.Start()
	defer sessions.Shutdown()

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Catalog:  templates,
		Sessions: sessions,
		Credits:  creditService,
		Saved:    saved,
		Tokens:   auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiry),
		Bus:      bus,
		Logger:   logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.Port
		logger.Info("starting receipt studio", "version", Version)
		if err := server.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default()
	}
	c, err := catalog.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", dir, err)
	}
	return c, nil
}
