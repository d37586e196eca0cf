package export

import (
	"context"
	"testing"
	"time"

	"github.com/thereceipt/receipt-studio/internal/config"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

func TestNewSetup_DocumentBackend(t *testing.T) {
	s := NewSetup(config.ExportConfig{Backend: config.BackendDocument, Timeout: 30 * time.Second}, nil)
	defer s.Close()

	if _, ok := s.Pipeline.backends[FormatPDF].(*DocumentBackend); !ok {
		t.Errorf("Expected document backend for PDF, got %T", s.Pipeline.backends[FormatPDF])
	}
	if s.Pipeline.backends[FormatPNG] != s.Raster {
		t.Error("Expected the raster backend for PNG")
	}

	doc := receiptformat.NewDocument("Setup")
	art, err := s.Pipeline.Export(context.Background(), &doc, FormatPNG)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.ContentType != "image/png" {
		t.Errorf("Expected image/png, got %s", art.ContentType)
	}
}

func TestNewSetup_BrowserBackendServesPDFAndPNG(t *testing.T) {
	s := NewSetup(config.ExportConfig{Backend: config.BackendBrowser, Timeout: 30 * time.Second}, nil)
	defer s.Close()

	if s.browser == nil {
		t.Fatal("Expected a browser backend")
	}
	for _, f := range []Format{FormatPDF, FormatPNG} {
		if s.Pipeline.backends[f] != s.browser {
			t.Errorf("Expected the browser backend for %s, got %T", f, s.Pipeline.backends[f])
		}
	}
	if s.Raster == nil {
		t.Error("Expected the raster backend to stay available for printing")
	}
}
