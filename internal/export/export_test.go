package export

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thereceipt/receipt-studio/internal/renderer"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

type fakeBackend struct {
	art   *Artifact
	err   error
	block bool
	calls int
}

func (f *fakeBackend) Export(ctx context.Context, req Request, sizing Sizing) (*Artifact, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.art, f.err
}

func validPDF() *Artifact {
	return &Artifact{Format: FormatPDF, Data: []byte("%PDF-1.7\n...\n%%EOF\n")}
}

func testDoc() *receiptformat.Document {
	doc := receiptformat.NewDocument("Export")
	items := doc.Sections[1].Body.(*receiptformat.ItemsListSection)
	items.Items[0] = receiptformat.Item{Quantity: 2, Name: "Soda", Price: decimal.RequireFromString("1.50")}
	return &doc
}

func TestSizingFor(t *testing.T) {
	tests := []struct {
		paper receiptformat.PaperSize
		want  Sizing
	}{
		{receiptformat.Paper58mm, Sizing{Mode: SizingThermal, WidthMM: 58}},
		{receiptformat.Paper80mm, Sizing{Mode: SizingThermal, WidthMM: 80}},
		{receiptformat.Paper112mm, Sizing{Mode: SizingThermal, WidthMM: 112}},
		{receiptformat.PaperA4, Sizing{Mode: SizingFixed, WidthMM: 210, HeightMM: 297}},
		{receiptformat.PaperLetter, Sizing{Mode: SizingFixed, WidthMM: 215.9, HeightMM: 279.4}},
	}

	for _, tt := range tests {
		if got := SizingFor(tt.paper); got != tt.want {
			t.Errorf("%s: Expected %+v, got %+v", tt.paper, tt.want, got)
		}
	}
}

func TestSizing_PageHeight(t *testing.T) {
	thermal := SizingFor(receiptformat.Paper80mm)
	if got := thermal.PageHeightMM(120); got != 120+ThermalBufferMM {
		t.Errorf("Expected content plus buffer, got %v", got)
	}
	if thermal.Pages(5000) != 1 {
		t.Error("Expected thermal output to be a single page")
	}

	a4 := SizingFor(receiptformat.PaperA4)
	if got := a4.PageHeightMM(120); got != 297 {
		t.Errorf("Expected fixed A4 height, got %v", got)
	}
	if a4.Pages(300) != 2 {
		t.Errorf("Expected 2 pages for 300mm of content, got %d", a4.Pages(300))
	}
}

func TestCSSPixelsToMM(t *testing.T) {
	if got := CSSPixelsToMM(96); math.Abs(got-25.4) > 1e-9 {
		t.Errorf("Expected 96px = 25.4mm, got %v", got)
	}
}

func TestPipeline_Success(t *testing.T) {
	backend := &fakeBackend{art: validPDF()}
	p := NewPipeline(time.Second, nil).Register(FormatPDF, backend)

	art, err := p.Export(context.Background(), testDoc(), FormatPDF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be stamped")
	}
}

func TestPipeline_Failures(t *testing.T) {
	invalid := testDoc()
	invalid.Version = "9"

	tests := []struct {
		name    string
		doc     *receiptformat.Document
		backend *fakeBackend
		format  Format
		stage   Stage
	}{
		{"invalid document", invalid, &fakeBackend{art: validPDF()}, FormatPDF, StageValidate},
		{"backend error", testDoc(), &fakeBackend{err: errors.New("chrome crashed")}, FormatPDF, StageRender},
		{"empty artifact", testDoc(), &fakeBackend{art: &Artifact{}}, FormatPDF, StageVerify},
		{"truncated pdf", testDoc(), &fakeBackend{art: &Artifact{Data: []byte("%PDF-1.7\nhalf")}}, FormatPDF, StageVerify},
		{"png expected", testDoc(), &fakeBackend{art: validPDF()}, FormatPNG, StageVerify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(time.Second, nil).
				Register(FormatPDF, tt.backend).
				Register(FormatPNG, tt.backend)

			art, err := p.Export(context.Background(), tt.doc, tt.format)
			if art != nil {
				t.Error("Expected no artifact on failure")
			}
			if !errors.Is(err, ErrExportFailed) {
				t.Fatalf("Expected ErrExportFailed, got %v", err)
			}
			var e *Error
			if !errors.As(err, &e) || e.Stage != tt.stage {
				t.Errorf("Expected stage %s, got %v", tt.stage, err)
			}
		})
	}
}

func TestPipeline_UnknownFormat(t *testing.T) {
	p := NewPipeline(0, nil)
	if _, err := p.Export(context.Background(), testDoc(), FormatPNG); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestPipeline_Timeout(t *testing.T) {
	p := NewPipeline(20*time.Millisecond, nil).Register(FormatPDF, &fakeBackend{block: true})

	_, err := p.Export(context.Background(), testDoc(), FormatPDF)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, ErrExportFailed) {
		t.Errorf("Expected a deadline export failure, got %v", err)
	}
}

func TestRasterBackend_Thermal80mm(t *testing.T) {
	p := NewPipeline(5*time.Second, nil).Register(FormatPNG, NewRasterBackend())

	art, err := p.Export(context.Background(), testDoc(), FormatPNG)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(art.Data, pngMagic) {
		t.Fatal("Expected PNG data")
	}
	if art.WidthMM != 80 {
		t.Errorf("Expected 80mm width, got %v", art.WidthMM)
	}
	if art.HeightMM <= 0 {
		t.Errorf("Expected positive height, got %v", art.HeightMM)
	}
}

func TestDocumentBackend_Thermal80mm(t *testing.T) {
	doc := testDoc()
	p := NewPipeline(5*time.Second, nil).Register(FormatPDF, NewDocumentBackend())

	art, err := p.Export(context.Background(), doc, FormatPDF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(art.Data, pdfMagic) {
		t.Fatal("Expected PDF data")
	}

	tree, _ := renderer.Build(doc)
	_, contentMM := DocumentLayout(tree, 80)

	if art.WidthMM != 80 {
		t.Errorf("Expected 80mm width, got %v", art.WidthMM)
	}
	if math.Abs(art.HeightMM-(contentMM+ThermalBufferMM)) > 1e-9 {
		t.Errorf("Expected height %v (content + buffer), got %v", contentMM+ThermalBufferMM, art.HeightMM)
	}
	if art.Pages != 1 {
		t.Errorf("Expected a single page, got %d", art.Pages)
	}
}

func TestDocumentLayout_TallerWithMoreItems(t *testing.T) {
	doc := testDoc()
	tree, _ := renderer.Build(doc)
	_, short := DocumentLayout(tree, 80)

	items := doc.Sections[1].Body.(*receiptformat.ItemsListSection)
	items.Items = append(items.Items, receiptformat.BlankItem(), receiptformat.BlankItem())
	tree, _ = renderer.Build(doc)
	_, tall := DocumentLayout(tree, 80)

	if tall <= short {
		t.Errorf("Expected more items to grow the page: %v <= %v", tall, short)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatPDF {
		t.Errorf("Expected default pdf, got %s %v", f, err)
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Error("Expected error for gif")
	}
}
