package editor

import "github.com/thereceipt/receipt-studio/pkg/receiptformat"

// Descriptor is how a section type is presented in the palette and list.
type Descriptor struct {
	Type  receiptformat.SectionType `json:"type"`
	Label string                    `json:"label"`
	Icon  string                    `json:"icon"`
}

type describer struct {
	out Descriptor
}

func (d *describer) VisitHeader(*receiptformat.HeaderSection) error {
	d.out = Descriptor{receiptformat.TypeHeader, "Header", "store"}
	return nil
}

func (d *describer) VisitDateTime(*receiptformat.DateTimeSection) error {
	d.out = Descriptor{receiptformat.TypeDateTime, "Date & Time", "clock"}
	return nil
}

func (d *describer) VisitCustomMessage(*receiptformat.CustomMessageSection) error {
	d.out = Descriptor{receiptformat.TypeCustomMessage, "Custom Message", "message"}
	return nil
}

func (d *describer) VisitTwoColumn(*receiptformat.TwoColumnSection) error {
	d.out = Descriptor{receiptformat.TypeTwoColumn, "Two Columns", "columns"}
	return nil
}

func (d *describer) VisitItemsList(*receiptformat.ItemsListSection) error {
	d.out = Descriptor{receiptformat.TypeItemsList, "Items List", "list"}
	return nil
}

func (d *describer) VisitPayment(*receiptformat.PaymentSection) error {
	d.out = Descriptor{receiptformat.TypePayment, "Payment", "credit-card"}
	return nil
}

func (d *describer) VisitBarcode(*receiptformat.BarcodeSection) error {
	d.out = Descriptor{receiptformat.TypeBarcode, "Barcode", "barcode"}
	return nil
}

// Describe returns the label and icon for a section body.
func Describe(b receiptformat.Body) Descriptor {
	var d describer
	_ = b.Accept(&d)
	return d.out
}

// Palette returns a descriptor for every section type, in palette order.
func Palette() []Descriptor {
	out := make([]Descriptor, 0, len(receiptformat.SectionTypes))
	for _, t := range receiptformat.SectionTypes {
		out = append(out, Describe(receiptformat.NewSection(t).Body))
	}
	return out
}
