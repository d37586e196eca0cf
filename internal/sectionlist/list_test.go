package sectionlist

import (
	"errors"
	"reflect"
	"testing"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

func TestMoveEntry(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
		wantErr  bool
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}, false},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}, false},
		{"same", 1, 1, []string{"a", "b", "c", "d"}, false},
		{"to end", 0, 3, []string{"b", "c", "d", "a"}, false},
		{"negative", -1, 0, nil, true},
		{"past end", 0, 4, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []string{"a", "b", "c", "d"}
			got, err := MoveEntry(in, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MoveEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrOutOfRange) {
					t.Errorf("Expected ErrOutOfRange, got %v", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if !reflect.DeepEqual(in, []string{"a", "b", "c", "d"}) {
				t.Errorf("Expected input untouched, got %v", in)
			}
		})
	}
}

func TestInsertEntry(t *testing.T) {
	got, err := InsertEntry([]int{1, 2}, 1, 9)
	if err != nil || !reflect.DeepEqual(got, []int{1, 9, 2}) {
		t.Errorf("Expected [1 9 2], got %v (%v)", got, err)
	}

	got, err = InsertEntry([]int{1, 2}, 2, 9)
	if err != nil || !reflect.DeepEqual(got, []int{1, 2, 9}) {
		t.Errorf("Expected [1 2 9], got %v (%v)", got, err)
	}

	if _, err := InsertEntry([]int{1}, 3, 9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
}

func TestRemoveEntry_LastLeavesBlank(t *testing.T) {
	items := []receiptformat.Item{{Quantity: 2, Name: "Soda"}}

	got, err := RemoveEntry(items, 0, receiptformat.BlankItem)
	if err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected one blank entry, got %d entries", len(got))
	}
	if got[0].Name != "" || got[0].Quantity != 1 {
		t.Errorf("Expected blank item, got %+v", got[0])
	}
}

func TestRemoveEntry(t *testing.T) {
	got, err := RemoveEntry([]string{"a", "b", "c"}, 1, func() string { return "" })
	if err != nil || !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Expected [a c], got %v (%v)", got, err)
	}
}

func sections() []receiptformat.Section {
	return []receiptformat.Section{
		{ID: "h", Body: &receiptformat.HeaderSection{BusinessName: "Shop"}},
		{ID: "i", Body: &receiptformat.ItemsListSection{Items: []receiptformat.Item{{Quantity: 1, Name: "Tea"}}}},
		{ID: "m", Body: &receiptformat.CustomMessageSection{Message: "Bye"}},
	}
}

func ids(s []receiptformat.Section) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i].ID
	}
	return out
}

func TestReorder(t *testing.T) {
	got, err := Reorder(sections(), 2, 0)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if want := []string{"m", "h", "i"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Expected %v, got %v", want, ids(got))
	}
}

func TestInsertAfter(t *testing.T) {
	s := receiptformat.Section{ID: "new", Body: &receiptformat.CustomMessageSection{}}

	got, err := InsertAfter(sections(), "h", s)
	if err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	if want := []string{"h", "new", "i", "m"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Expected %v, got %v", want, ids(got))
	}

	got, _ = InsertAfter(sections(), "", s)
	if ids(got)[3] != "new" {
		t.Errorf("Expected empty afterID to append, got %v", ids(got))
	}

	if _, err := InsertAfter(sections(), "missing", s); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRemoveSection(t *testing.T) {
	got, err := RemoveSection(sections(), "i")
	if err != nil {
		t.Fatalf("RemoveSection: %v", err)
	}
	if want := []string{"h", "m"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Expected %v, got %v", want, ids(got))
	}

	if _, err := RemoveSection(sections()[:1], "h"); !errors.Is(err, ErrLastSection) {
		t.Errorf("Expected ErrLastSection, got %v", err)
	}
	if _, err := RemoveSection(sections(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDuplicate_DeepCopy(t *testing.T) {
	in := sections()
	got, dup, err := Duplicate(in, "i")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	if len(got) != 4 || got[2].ID != dup.ID {
		t.Fatalf("Expected duplicate right after original, got %v", ids(got))
	}
	if dup.ID == "i" || dup.ID == "" {
		t.Errorf("Expected a fresh id, got %q", dup.ID)
	}

	dup.Body.(*receiptformat.ItemsListSection).Items[0].Name = "Coffee"
	if in[1].Body.(*receiptformat.ItemsListSection).Items[0].Name != "Tea" {
		t.Error("Expected editing the duplicate to leave the original unchanged")
	}
}
