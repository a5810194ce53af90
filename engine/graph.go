package engine

// DependencyGraph owns the vertex arena and the edges between vertices,
// and composes the address/range/matrix/sheet mappings so every vertex —
// cell, range, or matrix — shares one id space. Edges are stored as id
// pairs, so structural transforms can rewrite an address without
// touching any edge.
type DependencyGraph struct {
	vertices map[VertexID]*vertex
	nextID   VertexID

	Sheets      *sheetMapping
	Cells       *addressMapping
	Ranges      *rangeMapping
	Matrices    *matrixMapping
	NamedRanges *namedRangeMapping

	rangeObservers map[VertexID]map[VertexID]struct{} // range/matrix vertex -> observing vertices
	dirty          map[VertexID]struct{}
	volatile       map[VertexID]struct{}
	structural     map[VertexID]struct{} // formulas whose result depends on sheet layout
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		vertices:       make(map[VertexID]*vertex),
		Sheets:         newSheetMapping(),
		Cells:          newAddressMapping(),
		Ranges:         newRangeMapping(),
		Matrices:       newMatrixMapping(),
		NamedRanges:    newNamedRangeMapping(),
		rangeObservers: make(map[VertexID]map[VertexID]struct{}),
		dirty:          make(map[VertexID]struct{}),
		volatile:       make(map[VertexID]struct{}),
		structural:     make(map[VertexID]struct{}),
	}
}

func (g *DependencyGraph) allocID() VertexID {
	g.nextID++
	return g.nextID
}

// GetOrCreateCellVertex returns the vertex for a cell address, creating
// an empty one if it doesn't exist yet. A newly created vertex inside an
// already-interned range is wired into that range's fan-in so the range
// vertex keeps seeing every cell of its rectangle — fan-in is installed
// lazily on first reference and extended as cells appear.
func (g *DependencyGraph) GetOrCreateCellVertex(addr CellAddress) *vertex {
	if id, ok := g.Cells.Get(addr); ok {
		return g.vertices[id]
	}
	id := g.allocID()
	v := newVertex(id, VertexEmpty)
	v.cell = addr
	g.vertices[id] = v
	g.Cells.Set(addr, id)
	g.Ranges.ForEachContaining(addr, func(rangeID VertexID, _ RangeAddress) {
		g.AddEdge(rangeID, id)
	})
	return v
}

func (g *DependencyGraph) GetCellVertex(addr CellAddress) (*vertex, bool) {
	id, ok := g.Cells.Get(addr)
	if !ok {
		return nil, false
	}
	return g.vertices[id], true
}

func (g *DependencyGraph) Vertex(id VertexID) (*vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}

// RemoveCellVertex deletes a cell vertex and detaches it from the graph.
// Precedent/dependent edges are torn down; an empty node with dependents
// still needs to exist so those dependents have something to point at,
// so callers convert to the Empty variant first when edges remain.
func (g *DependencyGraph) RemoveCellVertex(addr CellAddress) bool {
	id, ok := g.Cells.Get(addr)
	if !ok {
		return false
	}
	g.detachVertex(id)
	g.Cells.Remove(addr)
	return true
}

func (g *DependencyGraph) detachVertex(id VertexID) {
	v, ok := g.vertices[id]
	if !ok {
		return
	}
	for precID := range v.precedents {
		if p, ok := g.vertices[precID]; ok {
			delete(p.dependents, id)
			g.cleanupIfOrphaned(precID)
		}
	}
	for depID := range v.dependents {
		if d, ok := g.vertices[depID]; ok {
			delete(d.precedents, id)
		}
	}
	for rangeID, observers := range g.rangeObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(g.rangeObservers, rangeID)
		}
	}
	delete(g.dirty, id)
	delete(g.volatile, id)
	delete(g.structural, id)
	delete(g.vertices, id)
}

func (g *DependencyGraph) cleanupIfOrphaned(id VertexID) {
	v, ok := g.vertices[id]
	if !ok || !v.isEmpty() {
		return
	}
	delete(g.vertices, id)
	delete(g.dirty, id)
}

// InternRangeVertex returns (creating if needed) the vertex for an
// anonymous range address, via RangeMapping's intern-by-address cache.
// On first creation the range's fan-in edges are installed: one edge
// from the range vertex to every existing cell vertex inside its
// rectangle, or to the owning matrix vertex for matrix-covered cells —
// this is what gives the evaluator a correct topological order through
// ranges while keeping per-formula fan-out at one edge per range.
func (g *DependencyGraph) InternRangeVertex(addr RangeAddress) *vertex {
	id := g.Ranges.Intern(addr, g.allocID)
	v, ok := g.vertices[id]
	if !ok {
		v = newVertex(id, VertexRange)
		v.block = addr
		g.vertices[id] = v
		g.installRangeFanIn(v)
	}
	return v
}

func (g *DependencyGraph) installRangeFanIn(rangeV *vertex) {
	addr := rangeV.block
	seenMatrices := make(map[VertexID]struct{})
	for row := addr.StartRow; row <= addr.EndRow; row++ {
		for col := addr.StartColumn; col <= addr.EndColumn; col++ {
			cell := CellAddress{Sheet: addr.Sheet, Row: row, Column: col}
			if matrixID, _, ok := g.Matrices.Find(cell); ok {
				if _, seen := seenMatrices[matrixID]; !seen {
					seenMatrices[matrixID] = struct{}{}
					g.AddEdge(rangeV.id, matrixID)
				}
				continue
			}
			if cellID, ok := g.Cells.Get(cell); ok {
				g.AddEdge(rangeV.id, cellID)
			}
		}
	}
}

func (g *DependencyGraph) ReleaseRangeVertex(id VertexID) {
	if g.Ranges.Release(id) {
		g.detachVertex(id)
	}
}

// AddMatrixVertex registers a new non-overlapping matrix vertex.
func (g *DependencyGraph) AddMatrixVertex(addr RangeAddress) (*vertex, error) {
	id := g.allocID()
	if err := g.Matrices.Add(id, addr); err != nil {
		return nil, err
	}
	v := newVertex(id, VertexMatrix)
	v.block = addr
	g.vertices[id] = v
	return v, nil
}

func (g *DependencyGraph) RemoveMatrixVertex(id VertexID, sheet SheetID) {
	g.Matrices.Remove(id, sheet)
	g.detachVertex(id)
}

// ProcessCellDependencies installs consumer→producer edges for a list
// of absolute cell and range dependencies. Idempotent: re-installing an
// existing edge or observer registration is a no-op. Cell dependencies
// landing inside a matrix rectangle resolve to the owning matrix vertex.
func (g *DependencyGraph) ProcessCellDependencies(cells []CellAddress, ranges []RangeAddress, consumer VertexID) {
	for _, addr := range cells {
		g.processCellDependency(consumer, addr)
	}
	for _, addr := range ranges {
		g.processRangeDependency(consumer, addr)
	}
}

func (g *DependencyGraph) processCellDependency(consumer VertexID, addr CellAddress) {
	if matrixID, _, ok := g.Matrices.Find(addr); ok {
		g.AddEdge(consumer, matrixID)
		g.AddRangeObserver(matrixID, consumer)
		return
	}
	target := g.GetOrCreateCellVertex(addr)
	g.AddEdge(consumer, target.id)
}

func (g *DependencyGraph) processRangeDependency(consumer VertexID, addr RangeAddress) {
	rangeVertex := g.InternRangeVertex(addr)
	g.AddEdge(consumer, rangeVertex.id)
	g.AddRangeObserver(rangeVertex.id, consumer)
}

func (g *DependencyGraph) AddEdge(from, to VertexID) {
	fromV, ok := g.vertices[from]
	if !ok {
		return
	}
	toV, ok := g.vertices[to]
	if !ok {
		return
	}
	fromV.precedents[to] = struct{}{}
	toV.dependents[from] = struct{}{}
}

func (g *DependencyGraph) RemoveEdge(from, to VertexID) {
	if fromV, ok := g.vertices[from]; ok {
		delete(fromV.precedents, to)
	}
	if toV, ok := g.vertices[to]; ok {
		delete(toV.dependents, from)
	}
	g.cleanupIfOrphaned(to)
}

// DisconnectConsumer removes every outgoing edge from id before its
// dependencies are re-extracted, releasing range interning refcounts and
// observer registrations along the way so a range vertex nobody reads
// anymore is dropped.
func (g *DependencyGraph) DisconnectConsumer(id VertexID) {
	v, ok := g.vertices[id]
	if !ok {
		return
	}
	for precID := range v.precedents {
		prec, exists := g.vertices[precID]
		g.RemoveEdge(id, precID)
		if !exists {
			continue
		}
		switch prec.kind {
		case VertexRange:
			g.RemoveRangeObserver(precID, id)
			g.ReleaseRangeVertex(precID)
		case VertexMatrix:
			g.RemoveRangeObserver(precID, id)
		}
	}
}

func (g *DependencyGraph) AddRangeObserver(rangeVertex, observer VertexID) {
	if g.rangeObservers[rangeVertex] == nil {
		g.rangeObservers[rangeVertex] = make(map[VertexID]struct{})
	}
	g.rangeObservers[rangeVertex][observer] = struct{}{}
}

func (g *DependencyGraph) RemoveRangeObserver(rangeVertex, observer VertexID) {
	if observers, ok := g.rangeObservers[rangeVertex]; ok {
		delete(observers, observer)
		if len(observers) == 0 {
			delete(g.rangeObservers, rangeVertex)
		}
	}
}

func (g *DependencyGraph) MarkDirty(id VertexID) {
	g.dirty[id] = struct{}{}
	if v, ok := g.vertices[id]; ok {
		v.dirty = true
	}
}

func (g *DependencyGraph) ClearDirty(id VertexID) {
	delete(g.dirty, id)
	if v, ok := g.vertices[id]; ok {
		v.dirty = false
	}
}

func (g *DependencyGraph) ClearAllDirty() {
	g.dirty = make(map[VertexID]struct{})
	for _, v := range g.vertices {
		v.dirty = false
	}
}

func (g *DependencyGraph) DirtyVertices() []VertexID {
	result := make([]VertexID, 0, len(g.dirty))
	for id := range g.dirty {
		result = append(result, id)
	}
	return result
}

// MarkRangeDirty marks every observer of a range/matrix vertex dirty,
// used when a cell inside that range/matrix changes.
func (g *DependencyGraph) MarkRangeDirty(rangeVertex VertexID) {
	for observer := range g.rangeObservers[rangeVertex] {
		g.MarkDirty(observer)
	}
}

// MarkCellIfInRangeDirty marks dirty every observer of any interned
// range or matrix that contains cell, used when a plain cell's value
// changes and some range/matrix vertex might cover it.
func (g *DependencyGraph) MarkCellIfInRangeDirty(cell CellAddress) {
	g.Ranges.ForEachContaining(cell, func(id VertexID, _ RangeAddress) {
		g.MarkRangeDirty(id)
	})
	if id, _, ok := g.Matrices.Find(cell); ok {
		g.MarkRangeDirty(id)
	}
}

func (g *DependencyGraph) GetDirectDependents(id VertexID) []VertexID {
	v, ok := g.vertices[id]
	if !ok {
		return nil
	}
	result := make([]VertexID, 0, len(v.dependents))
	for dep := range v.dependents {
		result = append(result, dep)
	}
	return result
}

func (g *DependencyGraph) GetDirectPrecedents(id VertexID) []VertexID {
	v, ok := g.vertices[id]
	if !ok {
		return nil
	}
	result := make([]VertexID, 0, len(v.precedents))
	for prec := range v.precedents {
		result = append(result, prec)
	}
	return result
}

// GetAllDependents returns the transitive closure of dependents.
func (g *DependencyGraph) GetAllDependents(id VertexID) []VertexID {
	visited := make(map[VertexID]struct{})
	var result []VertexID
	g.collectDependents(id, visited, &result)
	return result
}

func (g *DependencyGraph) collectDependents(id VertexID, visited map[VertexID]struct{}, result *[]VertexID) {
	if _, ok := visited[id]; ok {
		return
	}
	visited[id] = struct{}{}
	v, ok := g.vertices[id]
	if !ok {
		return
	}
	for dep := range v.dependents {
		if _, ok := visited[dep]; !ok {
			*result = append(*result, dep)
			g.collectDependents(dep, visited, result)
		}
	}
}

func (g *DependencyGraph) MarkVolatile(id VertexID) {
	g.volatile[id] = struct{}{}
	if v, ok := g.vertices[id]; ok {
		v.volatile = true
	}
}

func (g *DependencyGraph) UnmarkVolatile(id VertexID) {
	delete(g.volatile, id)
	if v, ok := g.vertices[id]; ok {
		v.volatile = false
	}
}

func (g *DependencyGraph) IsVolatile(id VertexID) bool {
	_, ok := g.volatile[id]
	return ok
}

func (g *DependencyGraph) GetVolatileVertices() []VertexID {
	result := make([]VertexID, 0, len(g.volatile))
	for id := range g.volatile {
		result = append(result, id)
	}
	return result
}

func (g *DependencyGraph) MarkAllVolatileDirty() {
	for id := range g.volatile {
		g.MarkDirty(id)
	}
}

func (g *DependencyGraph) MarkStructural(id VertexID) {
	g.structural[id] = struct{}{}
	if v, ok := g.vertices[id]; ok {
		v.structural = true
	}
}

func (g *DependencyGraph) UnmarkStructural(id VertexID) {
	delete(g.structural, id)
	if v, ok := g.vertices[id]; ok {
		v.structural = false
	}
}

func (g *DependencyGraph) IsStructural(id VertexID) bool {
	_, ok := g.structural[id]
	return ok
}

func (g *DependencyGraph) VertexCount() int { return len(g.vertices) }

func (g *DependencyGraph) Clear() {
	g.vertices = make(map[VertexID]*vertex)
	g.nextID = 0
	g.Sheets = newSheetMapping()
	g.Cells = newAddressMapping()
	g.Ranges = newRangeMapping()
	g.Matrices = newMatrixMapping()
	g.NamedRanges = newNamedRangeMapping()
	g.rangeObservers = make(map[VertexID]map[VertexID]struct{})
	g.dirty = make(map[VertexID]struct{})
	g.volatile = make(map[VertexID]struct{})
	g.structural = make(map[VertexID]struct{})
}
