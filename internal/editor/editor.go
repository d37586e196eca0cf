// Package editor holds the pure edit operations behind each section's editor.
// A Patch takes a section body and returns an edited copy; the input is never
// modified.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

var (
	ErrWrongSection = errors.New("patch does not apply to this section type")
	ErrUnknownOp    = errors.New("unknown edit operation")
)

// Patch is one edit to one section body.
type Patch interface {
	Apply(b receiptformat.Body) (receiptformat.Body, error)
}

// edit clones b, checks it is a T and runs fn on the clone.
func edit[T receiptformat.Body](b receiptformat.Body, fn func(s T) error) (receiptformat.Body, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: empty section", ErrWrongSection)
	}
	s, ok := receiptformat.CloneBody(b).(T)
	if !ok {
		var want T
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongSection, want.Type(), b.Type())
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return s, nil
}

var ops = map[string]func() Patch{
	"set_divider":         func() Patch { return &SetDivider{} },
	"set_alignment":       func() Patch { return &SetAlignment{} },
	"set_header":          func() Patch { return &SetHeader{} },
	"set_datetime":        func() Patch { return &SetDateTime{} },
	"set_message":         func() Patch { return &SetMessage{} },
	"add_pair":            func() Patch { return &AddPair{} },
	"update_pair":         func() Patch { return &UpdatePair{} },
	"remove_pair":         func() Patch { return &RemovePair{} },
	"move_pair":           func() Patch { return &MovePair{} },
	"add_item":            func() Patch { return &AddItem{} },
	"update_item":         func() Patch { return &UpdateItem{} },
	"remove_item":         func() Patch { return &RemoveItem{} },
	"move_item":           func() Patch { return &MoveItem{} },
	"add_total_line":      func() Patch { return &AddTotalLine{} },
	"update_total_line":   func() Patch { return &UpdateTotalLine{} },
	"remove_total_line":   func() Patch { return &RemoveTotalLine{} },
	"move_total_line":     func() Patch { return &MoveTotalLine{} },
	"set_total":           func() Patch { return &SetTotal{} },
	"set_total_size":      func() Patch { return &SetTotalSize{} },
	"set_payment_method":  func() Patch { return &SetPaymentMethod{} },
	"add_payment_line":    func() Patch { return &AddPaymentLine{} },
	"update_payment_line": func() Patch { return &UpdatePaymentLine{} },
	"remove_payment_line": func() Patch { return &RemovePaymentLine{} },
	"move_payment_line":   func() Patch { return &MovePaymentLine{} },
	"set_barcode":         func() Patch { return &SetBarcode{} },
}

// Ops lists the operation names Decode understands.
func Ops() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode reads a patch in its wire form: an object with an "op" field
// naming the operation plus that operation's fields.
func Decode(data []byte) (Patch, error) {
	var head struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse patch: %w", err)
	}

	newPatch, ok := ops[head.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, head.Op)
	}

	p := newPatch()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse %s patch: %w", head.Op, err)
	}
	return p, nil
}
