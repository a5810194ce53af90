package engine

import (
	"testing"
)

func TestSheetMappingNormalization(t *testing.T) {
	m := newSheetMapping()
	id, err := m.Add(" Sheet 1 ")
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := m.IDByName("sheet 1"); !ok || got != id {
		t.Errorf("case-insensitive trimmed lookup failed: got %d ok=%v", got, ok)
	}
	if got, ok := m.IDByName("SHEET 1"); !ok || got != id {
		t.Errorf("uppercase lookup failed: got %d ok=%v", got, ok)
	}
	if _, err := m.Add("sheet 1"); err == nil {
		t.Error("expected duplicate sheet name rejection")
	}
	if name, ok := m.NameByID(id); !ok || name != "Sheet 1" {
		t.Errorf("display name = %q, want trimmed original casing", name)
	}
}

func TestSheetMappingDenseIDs(t *testing.T) {
	m := newSheetMapping()
	for i, name := range []string{"one", "two", "three"} {
		id, err := m.Add(name)
		if err != nil {
			t.Fatal(err)
		}
		if id != SheetID(i+1) {
			t.Errorf("sheet %q got id %d, want %d", name, id, i+1)
		}
	}
	if len(m.Names()) != 3 {
		t.Errorf("Names() has %d entries, want 3", len(m.Names()))
	}
}

func TestRangeMappingInterning(t *testing.T) {
	g := NewDependencyGraph()
	addr := RangeAddress{Sheet: 1, StartRow: 0, StartColumn: 0, EndRow: 3, EndColumn: 1}
	a := g.InternRangeVertex(addr)
	b := g.InternRangeVertex(addr)
	if a.id != b.id {
		t.Error("range interning must return one vertex per (sheet, corners)")
	}
	other := g.InternRangeVertex(RangeAddress{Sheet: 1, StartRow: 0, StartColumn: 0, EndRow: 3, EndColumn: 2})
	if other.id == a.id {
		t.Error("distinct corners must intern distinct vertices")
	}
}

func TestRangeMappingPointRange(t *testing.T) {
	// A range whose top-left equals its bottom-right is a 1x1 rectangle.
	g := NewDependencyGraph()
	addr := RangeAddress{Sheet: 1, StartRow: 2, StartColumn: 2, EndRow: 2, EndColumn: 2}
	v := g.InternRangeVertex(addr)
	if v.block.Width() != 1 || v.block.Height() != 1 {
		t.Errorf("point range dims = %dx%d, want 1x1", v.block.Width(), v.block.Height())
	}
	if !addr.Contains(CellAddress{Sheet: 1, Row: 2, Column: 2}) {
		t.Error("point range must contain its only cell")
	}
}

func TestMatrixMappingRejectsOverlap(t *testing.T) {
	m := newMatrixMapping()
	if err := m.Add(1, RangeAddress{Sheet: 1, StartRow: 0, StartColumn: 0, EndRow: 2, EndColumn: 2}); err != nil {
		t.Fatal(err)
	}
	err := m.Add(2, RangeAddress{Sheet: 1, StartRow: 2, StartColumn: 2, EndRow: 4, EndColumn: 4})
	if err == nil {
		t.Error("overlapping matrix must be rejected")
	}
	if err := m.Add(3, RangeAddress{Sheet: 1, StartRow: 3, StartColumn: 3, EndRow: 4, EndColumn: 4}); err != nil {
		t.Errorf("disjoint matrix rejected: %v", err)
	}
	if err := m.Add(4, RangeAddress{Sheet: 2, StartRow: 0, StartColumn: 0, EndRow: 2, EndColumn: 2}); err != nil {
		t.Errorf("same rectangle on another sheet rejected: %v", err)
	}
}

func TestMatrixMappingFind(t *testing.T) {
	m := newMatrixMapping()
	blockA := RangeAddress{Sheet: 1, StartRow: 0, StartColumn: 0, EndRow: 1, EndColumn: 1}
	blockB := RangeAddress{Sheet: 1, StartRow: 5, StartColumn: 3, EndRow: 7, EndColumn: 4}
	if err := m.Add(10, blockA); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(11, blockB); err != nil {
		t.Fatal(err)
	}

	if id, _, ok := m.Find(CellAddress{Sheet: 1, Row: 1, Column: 1}); !ok || id != 10 {
		t.Errorf("Find inside blockA = (%d, %v)", id, ok)
	}
	if id, _, ok := m.Find(CellAddress{Sheet: 1, Row: 6, Column: 4}); !ok || id != 11 {
		t.Errorf("Find inside blockB = (%d, %v)", id, ok)
	}
	if _, _, ok := m.Find(CellAddress{Sheet: 1, Row: 3, Column: 0}); ok {
		t.Error("Find outside any matrix must miss")
	}
	if _, _, ok := m.Find(CellAddress{Sheet: 2, Row: 1, Column: 1}); ok {
		t.Error("Find on another sheet must miss")
	}
}

func TestAddressMappingShiftRows(t *testing.T) {
	m := newAddressMapping()
	for row := uint32(0); row < 4; row++ {
		m.Set(CellAddress{Sheet: 1, Row: row, Column: 0}, VertexID(row+1))
	}
	m.ShiftRowsFrom(1, 1, 2)
	if id, ok := m.Get(CellAddress{Sheet: 1, Row: 0, Column: 0}); !ok || id != 1 {
		t.Error("row before the insert point must not move")
	}
	if _, ok := m.Get(CellAddress{Sheet: 1, Row: 1, Column: 0}); ok {
		t.Error("inserted rows must be empty")
	}
	if id, ok := m.Get(CellAddress{Sheet: 1, Row: 3, Column: 0}); !ok || id != 2 {
		t.Error("row at the insert point must shift down by count")
	}
	if id, ok := m.Get(CellAddress{Sheet: 1, Row: 5, Column: 0}); !ok || id != 4 {
		t.Error("last row must shift down by count")
	}
}

func TestAddressMappingRemoveRowBand(t *testing.T) {
	m := newAddressMapping()
	for row := uint32(0); row < 5; row++ {
		m.Set(CellAddress{Sheet: 1, Row: row, Column: 0}, VertexID(row+1))
	}
	removed := m.RemoveRowBand(1, 1, 2)
	if len(removed) != 2 {
		t.Fatalf("removed %d cells, want 2", len(removed))
	}
	if id, ok := m.Get(CellAddress{Sheet: 1, Row: 1, Column: 0}); !ok || id != 4 {
		t.Error("row below the band must shift up by the band height")
	}
	if id, ok := m.Get(CellAddress{Sheet: 1, Row: 2, Column: 0}); !ok || id != 5 {
		t.Error("last row must shift up by the band height")
	}
	if _, ok := m.Get(CellAddress{Sheet: 1, Row: 3, Column: 0}); ok {
		t.Error("vacated rows must be empty")
	}
}

func TestAddressMappingDimensions(t *testing.T) {
	m := newAddressMapping()
	if rows, cols := m.Dimensions(1); rows != 0 || cols != 0 {
		t.Errorf("empty sheet dims = %dx%d, want 0x0", rows, cols)
	}
	m.Set(CellAddress{Sheet: 1, Row: 4, Column: 2}, 1)
	m.Set(CellAddress{Sheet: 1, Row: 1, Column: 7}, 2)
	rows, cols := m.Dimensions(1)
	if rows != 5 || cols != 8 {
		t.Errorf("dims = %dx%d, want 5x8", rows, cols)
	}
}
