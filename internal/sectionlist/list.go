// Package sectionlist implements ordering operations over a document's
// sections and over the repeatable entries inside a section. Every function
// returns a new slice and leaves its input untouched.
package sectionlist

import (
	"errors"
	"fmt"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

var (
	ErrNotFound    = errors.New("section not found")
	ErrOutOfRange  = errors.New("index out of range")
	ErrLastSection = errors.New("cannot remove the only section")
)

// MoveEntry moves the element at from so that it ends up at index to.
func MoveEntry[T any](xs []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(xs) || to < 0 || to >= len(xs) {
		return nil, fmt.Errorf("%w: move %d -> %d (len %d)", ErrOutOfRange, from, to, len(xs))
	}

	out := make([]T, len(xs))
	copy(out, xs)
	if from == to {
		return out, nil
	}

	v := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = v
	return out, nil
}

// InsertEntry places v at index at; at == len(xs) appends.
func InsertEntry[T any](xs []T, at int, v T) ([]T, error) {
	if at < 0 || at > len(xs) {
		return nil, fmt.Errorf("%w: insert at %d (len %d)", ErrOutOfRange, at, len(xs))
	}

	out := make([]T, 0, len(xs)+1)
	out = append(out, xs[:at]...)
	out = append(out, v)
	out = append(out, xs[at:]...)
	return out, nil
}

// RemoveEntry drops the element at i. Removing the last remaining element
// leaves a single blank() entry so the list is never empty.
func RemoveEntry[T any](xs []T, i int, blank func() T) ([]T, error) {
	if i < 0 || i >= len(xs) {
		return nil, fmt.Errorf("%w: remove %d (len %d)", ErrOutOfRange, i, len(xs))
	}
	if len(xs) == 1 {
		return []T{blank()}, nil
	}

	out := make([]T, 0, len(xs)-1)
	out = append(out, xs[:i]...)
	out = append(out, xs[i+1:]...)
	return out, nil
}

// IndexOf returns the position of the section with id, or -1.
func IndexOf(sections []receiptformat.Section, id string) int {
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Reorder moves the section at from to index to.
func Reorder(sections []receiptformat.Section, from, to int) ([]receiptformat.Section, error) {
	return MoveEntry(sections, from, to)
}

// InsertAfter places s directly after the section with afterID. An empty
// afterID appends.
func InsertAfter(sections []receiptformat.Section, afterID string, s receiptformat.Section) ([]receiptformat.Section, error) {
	if afterID == "" {
		return InsertEntry(sections, len(sections), s)
	}

	i := IndexOf(sections, afterID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, afterID)
	}
	return InsertEntry(sections, i+1, s)
}

// RemoveSection drops the section with id. The last section cannot be removed.
func RemoveSection(sections []receiptformat.Section, id string) ([]receiptformat.Section, error) {
	i := IndexOf(sections, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(sections) == 1 {
		return nil, ErrLastSection
	}

	return RemoveEntry(sections, i, func() receiptformat.Section { return receiptformat.Section{} })
}

// Duplicate deep-copies the section with id, gives the copy a fresh id and
// inserts it right after the original.
func Duplicate(sections []receiptformat.Section, id string) ([]receiptformat.Section, receiptformat.Section, error) {
	i := IndexOf(sections, id)
	if i < 0 {
		return nil, receiptformat.Section{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	dup := sections[i].Clone()
	dup.ID = receiptformat.NewSectionID()

	out, err := InsertEntry(sections, i+1, dup)
	if err != nil {
		return nil, receiptformat.Section{}, err
	}
	return out, dup, nil
}
