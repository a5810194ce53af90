package engine

// rangeKey is a comparable key for interning range vertices by their
// corners, since Go maps cannot key on structs containing slices but
// RangeAddress is already a plain comparable struct.
type rangeKey = RangeAddress

// rangeMapping interns range vertices by (sheet, corners), with
// reference counting so a range vertex is dropped once no formula
// depends on it.
type rangeMapping struct {
	idByAddr  map[rangeKey]VertexID
	addrByID  map[VertexID]RangeAddress
	refCounts map[VertexID]int
}

func newRangeMapping() *rangeMapping {
	return &rangeMapping{
		idByAddr:  make(map[rangeKey]VertexID),
		addrByID:  make(map[VertexID]RangeAddress),
		refCounts: make(map[VertexID]int),
	}
}

// Intern returns the vertex id for a range address, creating one via
// newID if it doesn't exist yet, and incrementing its reference count.
func (m *rangeMapping) Intern(addr RangeAddress, newID func() VertexID) VertexID {
	if id, exists := m.idByAddr[addr]; exists {
		m.refCounts[id]++
		return id
	}
	id := newID()
	m.idByAddr[addr] = id
	m.addrByID[id] = addr
	m.refCounts[id] = 1
	return id
}

func (m *rangeMapping) Release(id VertexID) (dropped bool) {
	m.refCounts[id]--
	if m.refCounts[id] > 0 {
		return false
	}
	addr, ok := m.addrByID[id]
	if ok {
		delete(m.idByAddr, addr)
	}
	delete(m.addrByID, id)
	delete(m.refCounts, id)
	return true
}

func (m *rangeMapping) Lookup(addr RangeAddress) (VertexID, bool) {
	id, ok := m.idByAddr[addr]
	return id, ok
}

func (m *rangeMapping) Address(id VertexID) (RangeAddress, bool) {
	addr, ok := m.addrByID[id]
	return addr, ok
}

// ForEachOverlapping scans every interned range that overlaps addr;
// linear, since named-range-scale cardinality never justifies an
// interval tree the way matrix vertices (MatrixMapping) do.
func (m *rangeMapping) ForEachOverlapping(addr RangeAddress, fn func(id VertexID, r RangeAddress)) {
	for id, r := range m.addrByID {
		if r.Overlaps(addr) {
			fn(id, r)
		}
	}
}

// ForEachContaining scans every interned range containing a cell.
func (m *rangeMapping) ForEachContaining(cell CellAddress, fn func(id VertexID, r RangeAddress)) {
	for id, r := range m.addrByID {
		if r.Contains(cell) {
			fn(id, r)
		}
	}
}

// ApplyShift rewrites every interned range on sheet through a row/column
// insert or remove, using the same corner arithmetic the AST rewrite
// applies to range reference nodes: ranges past the span translate,
// ranges straddling it grow or shrink, and a range falling entirely
// inside a removed band dies — its id is returned for the graph to
// detach (after dirtying its consumers).
func (m *rangeMapping) ApplyShift(sheet SheetID, axis axisKind, shift axisShift) (dead []VertexID) {
	for id, addr := range m.addrByID {
		if addr.Sheet != sheet {
			continue
		}
		shifted := addr
		var ok bool
		switch axis {
		case axisRow:
			shifted.StartRow, shifted.EndRow, ok = shift.applyRangeCorners(addr.StartRow, addr.EndRow)
		case axisColumn:
			shifted.StartColumn, shifted.EndColumn, ok = shift.applyRangeCorners(addr.StartColumn, addr.EndColumn)
		}
		if !ok {
			dead = append(dead, id)
			delete(m.idByAddr, addr)
			delete(m.addrByID, id)
			delete(m.refCounts, id)
			continue
		}
		if shifted != addr {
			delete(m.idByAddr, addr)
			m.addrByID[id] = shifted
			m.idByAddr[shifted] = id
		}
	}
	return dead
}
