package engine

// matrixMapping tracks the non-overlapping rectangular matrix vertices
// per sheet, with a sub-linear "does this cell belong to a matrix"
// query that every structural operation relies on.
//
// Non-overlap is maintained by bucketing matrices per sheet by their
// starting row into a sorted slice, then a binary search narrows the
// candidate set before the final Contains check — sub-linear in the
// common case of many small matrices spread across a large sheet.
type matrixMapping struct {
	bySheet map[SheetID][]matrixEntry
}

type matrixEntry struct {
	id   VertexID
	addr RangeAddress
}

func newMatrixMapping() *matrixMapping {
	return &matrixMapping{bySheet: make(map[SheetID][]matrixEntry)}
}

// Add registers a new matrix vertex. Returns an AppError if it would
// overlap an existing matrix on the same sheet.
func (m *matrixMapping) Add(id VertexID, addr RangeAddress) error {
	entries := m.bySheet[addr.Sheet]
	for _, e := range entries {
		if e.addr.Overlaps(addr) {
			return NewAppError(FailedPrecondition, "matrix at %+v overlaps existing matrix at %+v", addr, e.addr)
		}
	}
	entries = append(entries, matrixEntry{id: id, addr: addr})
	insertionSortByStartRow(entries)
	m.bySheet[addr.Sheet] = entries
	return nil
}

func insertionSortByStartRow(entries []matrixEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].addr.StartRow > entries[j].addr.StartRow; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func (m *matrixMapping) Remove(id VertexID, sheet SheetID) {
	entries := m.bySheet[sheet]
	for i, e := range entries {
		if e.id == id {
			m.bySheet[sheet] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Find returns the matrix vertex owning a cell, if any. Narrows to
// matrices whose StartRow <= cell.Row via binary search, then scans that
// prefix for column/end-row containment — sub-linear when matrices are
// sparse relative to sheet size, linear only in the pathological case of
// many matrices sharing a start row.
func (m *matrixMapping) Find(cell CellAddress) (VertexID, RangeAddress, bool) {
	entries := m.bySheet[cell.Sheet]
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].addr.StartRow <= cell.Row {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	for i := lo - 1; i >= 0; i-- {
		if entries[i].addr.Contains(cell) {
			return entries[i].id, entries[i].addr, true
		}
	}
	return 0, RangeAddress{}, false
}

// ForEach visits every matrix on every sheet.
func (m *matrixMapping) ForEach(fn func(id VertexID, r RangeAddress)) {
	for _, entries := range m.bySheet {
		for _, e := range entries {
			fn(e.id, e.addr)
		}
	}
}

// ForEachOverlapping scans matrices overlapping addr, used by structural
// transforms to detect splits (spec §9: inserting/removing inside a
// matrix's rectangle is a fail-fast violation unless the whole matrix is
// shifted).
func (m *matrixMapping) ForEachOverlapping(addr RangeAddress, fn func(id VertexID, r RangeAddress)) {
	for _, e := range m.bySheet[addr.Sheet] {
		if e.addr.Overlaps(addr) {
			fn(e.id, e.addr)
		}
	}
}

// Shift translates every matrix on sheet at or after fromCoord by delta.
// Callers validate beforehand (via ForEachOverlapping) that the affected
// span never straddles a matrix, so a plain translation is always correct
// here — no matrix can need growing or shrinking.
func (m *matrixMapping) Shift(sheet SheetID, axis axisKind, fromCoord uint32, delta int32) {
	entries := m.bySheet[sheet]
	for i := range entries {
		addr := entries[i].addr
		switch axis {
		case axisRow:
			if addr.StartRow >= fromCoord {
				addr.StartRow = uint32(int64(addr.StartRow) + int64(delta))
				addr.EndRow = uint32(int64(addr.EndRow) + int64(delta))
			}
		case axisColumn:
			if addr.StartColumn >= fromCoord {
				addr.StartColumn = uint32(int64(addr.StartColumn) + int64(delta))
				addr.EndColumn = uint32(int64(addr.EndColumn) + int64(delta))
			}
		}
		entries[i].addr = addr
	}
	insertionSortByStartRow(entries)
}
