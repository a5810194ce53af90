package engine

// SheetID identifies a sheet within an Engine instance. Zero is never a
// valid sheet id.
type SheetID uint32

// VertexID addresses a vertex in the DependencyGraph's arena. Cell,
// range, and matrix vertices share the same id space.
type VertexID uint32

// CellAddress identifies a single cell within a sheet.
type CellAddress struct {
	Sheet  SheetID
	Row    uint32
	Column uint32
}

// RangeAddress identifies a rectangular block of cells within a sheet.
// invariant: StartRow <= EndRow, StartColumn <= EndColumn.
type RangeAddress struct {
	Sheet       SheetID
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

func (r RangeAddress) Contains(addr CellAddress) bool {
	return addr.Sheet == r.Sheet &&
		addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

func (r RangeAddress) Width() uint32  { return r.EndColumn - r.StartColumn + 1 }
func (r RangeAddress) Height() uint32 { return r.EndRow - r.StartRow + 1 }

func (r RangeAddress) Overlaps(other RangeAddress) bool {
	if r.Sheet != other.Sheet {
		return false
	}
	return r.StartRow <= other.EndRow && other.StartRow <= r.EndRow &&
		r.StartColumn <= other.EndColumn && other.StartColumn <= r.EndColumn
}

// RefKind distinguishes how a single axis (row or column) of a reference
// behaves under structural transforms: anchored to an absolute coordinate
// or carried as an offset from the formula's home cell.
type RefKind uint8

const (
	RefRelative RefKind = iota
	RefAbsolute
)

// AxisRef is one axis (row or column) of a cell or range reference as it
// appears inside a template AST: either a fixed coordinate (absolute) or
// a signed offset from the anchor cell (relative).
type AxisRef struct {
	Kind   RefKind
	Offset int32  // valid when Kind == RefRelative
	Fixed  uint32 // valid when Kind == RefAbsolute
}

// Resolve computes the absolute coordinate of this axis given the
// anchor's coordinate on the same axis.
func (a AxisRef) Resolve(anchor uint32) (uint32, bool) {
	if a.Kind == RefAbsolute {
		return a.Fixed, true
	}
	v := int64(anchor) + int64(a.Offset)
	if v < 0 {
		return 0, false
	}
	return uint32(v), true
}

// addressMapping is a non-owning, two-level sparse lookup from
// CellAddress to VertexID, layered sheet → column → row so row/column
// insertion and removal touch only the affected cells.
//
// It never owns a vertex's lifetime — DependencyGraph's arena does.
type addressMapping struct {
	sheets map[SheetID]map[uint32]map[uint32]VertexID // sheet -> column -> row -> vertex
}

func newAddressMapping() *addressMapping {
	return &addressMapping{sheets: make(map[SheetID]map[uint32]map[uint32]VertexID)}
}

func (m *addressMapping) Get(addr CellAddress) (VertexID, bool) {
	cols, ok := m.sheets[addr.Sheet]
	if !ok {
		return 0, false
	}
	rows, ok := cols[addr.Column]
	if !ok {
		return 0, false
	}
	id, ok := rows[addr.Row]
	return id, ok
}

func (m *addressMapping) Set(addr CellAddress, id VertexID) {
	cols, ok := m.sheets[addr.Sheet]
	if !ok {
		cols = make(map[uint32]map[uint32]VertexID)
		m.sheets[addr.Sheet] = cols
	}
	rows, ok := cols[addr.Column]
	if !ok {
		rows = make(map[uint32]VertexID)
		cols[addr.Column] = rows
	}
	rows[addr.Row] = id
}

func (m *addressMapping) Remove(addr CellAddress) {
	cols, ok := m.sheets[addr.Sheet]
	if !ok {
		return
	}
	rows, ok := cols[addr.Column]
	if !ok {
		return
	}
	delete(rows, addr.Row)
	if len(rows) == 0 {
		delete(cols, addr.Column)
	}
	if len(cols) == 0 {
		delete(m.sheets, addr.Sheet)
	}
}

// RemoveSheet drops every address mapped under a sheet, used when a sheet
// is removed from the Engine.
func (m *addressMapping) RemoveSheet(sheet SheetID) {
	delete(m.sheets, sheet)
}

// Dimensions reports the occupied extent of a sheet as (rows, columns):
// one past the highest occupied row and column index, or (0, 0) for an
// empty sheet.
func (m *addressMapping) Dimensions(sheet SheetID) (rows, cols uint32) {
	for col, rowMap := range m.sheets[sheet] {
		for row := range rowMap {
			if row+1 > rows {
				rows = row + 1
			}
			if col+1 > cols {
				cols = col + 1
			}
		}
	}
	return rows, cols
}

// ForEachInSheet visits every mapped cell of a sheet in unspecified order.
func (m *addressMapping) ForEachInSheet(sheet SheetID, fn func(addr CellAddress, id VertexID)) {
	for col, rowMap := range m.sheets[sheet] {
		for row, id := range rowMap {
			fn(CellAddress{Sheet: sheet, Row: row, Column: col}, id)
		}
	}
}

// ForEachInColumnFrom iterates addresses in a column at or after
// fromRow, in descending row order, used by row insert/remove transforms.
func (m *addressMapping) ForEachInColumnFrom(sheet SheetID, column, fromRow uint32, fn func(row uint32, id VertexID)) {
	cols, ok := m.sheets[sheet]
	if !ok {
		return
	}
	rows, ok := cols[column]
	if !ok {
		return
	}
	matched := make([]uint32, 0, len(rows))
	for row := range rows {
		if row >= fromRow {
			matched = append(matched, row)
		}
	}
	sortUint32Desc(matched)
	for _, row := range matched {
		fn(row, rows[row])
	}
}

func sortUint32Desc(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] < xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func sortUint32Asc(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// ShiftRowsFrom relocates every cell at row >= fromRow to row+count within
// a sheet, used by addRows' eager pass. Descending order avoids a higher
// row's relocation overwriting a still-unprocessed lower row's old slot.
func (m *addressMapping) ShiftRowsFrom(sheet SheetID, fromRow, count uint32) {
	cols := m.sheets[sheet]
	for _, rows := range cols {
		var matched []uint32
		for row := range rows {
			if row >= fromRow {
				matched = append(matched, row)
			}
		}
		sortUint32Desc(matched)
		for _, row := range matched {
			id := rows[row]
			delete(rows, row)
			rows[row+count] = id
		}
	}
}

// RemoveRowBand deletes every cell within [rowStart, rowEnd] and shifts
// everything below up by the band's height, within a sheet. Returns the
// vertex ids removed, keyed by their pre-removal address.
func (m *addressMapping) RemoveRowBand(sheet SheetID, rowStart, rowEnd uint32) map[CellAddress]VertexID {
	removed := make(map[CellAddress]VertexID)
	height := rowEnd - rowStart + 1
	cols := m.sheets[sheet]
	for col, rows := range cols {
		var matched []uint32
		for row := range rows {
			if row >= rowStart {
				matched = append(matched, row)
			}
		}
		sortUint32Asc(matched)
		for _, row := range matched {
			id := rows[row]
			delete(rows, row)
			if row <= rowEnd {
				removed[CellAddress{Sheet: sheet, Column: col, Row: row}] = id
				continue
			}
			rows[row-height] = id
		}
	}
	return removed
}

// ShiftColumnsFrom relocates every cell at column >= fromCol to
// column+count within a sheet, used by addColumns' eager pass.
func (m *addressMapping) ShiftColumnsFrom(sheet SheetID, fromCol, count uint32) {
	cols := m.sheets[sheet]
	var matched []uint32
	for col := range cols {
		if col >= fromCol {
			matched = append(matched, col)
		}
	}
	sortUint32Desc(matched)
	for _, col := range matched {
		rows := cols[col]
		delete(cols, col)
		cols[col+count] = rows
	}
}

// RemoveColumnBand deletes every cell within [colStart, colEnd] and shifts
// everything to the right left by the band's width, within a sheet.
func (m *addressMapping) RemoveColumnBand(sheet SheetID, colStart, colEnd uint32) map[CellAddress]VertexID {
	removed := make(map[CellAddress]VertexID)
	width := colEnd - colStart + 1
	cols := m.sheets[sheet]
	var matched []uint32
	for col := range cols {
		if col >= colStart {
			matched = append(matched, col)
		}
	}
	sortUint32Asc(matched)
	for _, col := range matched {
		rows := cols[col]
		delete(cols, col)
		if col <= colEnd {
			for row, id := range rows {
				removed[CellAddress{Sheet: sheet, Column: col, Row: row}] = id
			}
			continue
		}
		cols[col-width] = rows
	}
	return removed
}

// MoveRect relocates every cell within src to the equal-shaped rectangle
// whose top-left corner is (destRow, destCol) on destSheet, returning the
// vertex ids that previously occupied the destination (now overwritten, for
// the caller to detach).
func (m *addressMapping) MoveRect(src RangeAddress, destSheet SheetID, destRow, destCol uint32) map[CellAddress]VertexID {
	overwritten := make(map[CellAddress]VertexID)
	dRow := int64(destRow) - int64(src.StartRow)
	dCol := int64(destCol) - int64(src.StartColumn)

	type moved struct {
		addr CellAddress
		id   VertexID
	}
	var entries []moved
	moving := make(map[VertexID]bool)
	for row := src.StartRow; row <= src.EndRow; row++ {
		for col := src.StartColumn; col <= src.EndColumn; col++ {
			addr := CellAddress{Sheet: src.Sheet, Row: row, Column: col}
			if id, ok := m.Get(addr); ok {
				entries = append(entries, moved{addr, id})
				moving[id] = true
			}
		}
	}

	// A cell that is itself part of the move (overlapping source and
	// destination) is relocated, not overwritten.
	for row := destRow; row < destRow+src.Height(); row++ {
		for col := destCol; col < destCol+src.Width(); col++ {
			dest := CellAddress{Sheet: destSheet, Row: row, Column: col}
			if id, ok := m.Get(dest); ok && !moving[id] {
				overwritten[dest] = id
			}
			m.Remove(dest)
		}
	}
	for _, e := range entries {
		m.Remove(e.addr)
	}
	for _, e := range entries {
		dest := CellAddress{
			Sheet:  destSheet,
			Row:    uint32(int64(e.addr.Row) + dRow),
			Column: uint32(int64(e.addr.Column) + dCol),
		}
		m.Set(dest, e.id)
	}
	return overwritten
}
