package engine

import (
	"testing"
)

func TestGraphEdgeIdempotence(t *testing.T) {
	g := NewDependencyGraph()
	a := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 0})
	b := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 1})
	g.AddEdge(b.id, a.id)
	g.AddEdge(b.id, a.id)
	if len(b.precedents) != 1 || len(a.dependents) != 1 {
		t.Errorf("duplicate AddEdge produced %d/%d edges", len(b.precedents), len(a.dependents))
	}
}

func TestGraphProcessCellDependencies(t *testing.T) {
	g := NewDependencyGraph()
	consumer := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 9, Column: 0})
	cells := []CellAddress{{Sheet: 1, Row: 0, Column: 0}, {Sheet: 1, Row: 1, Column: 0}}
	ranges := []RangeAddress{{Sheet: 1, StartRow: 0, StartColumn: 1, EndRow: 3, EndColumn: 1}}

	g.ProcessCellDependencies(cells, ranges, consumer.id)
	g.ProcessCellDependencies(cells, ranges, consumer.id)

	if len(consumer.precedents) != 3 {
		t.Errorf("consumer has %d precedents, want 3 (two cells + one range vertex)", len(consumer.precedents))
	}
	rangeID, ok := g.Ranges.Lookup(ranges[0])
	if !ok {
		t.Fatal("range vertex not interned")
	}
	if _, ok := g.rangeObservers[rangeID][consumer.id]; !ok {
		t.Error("consumer not registered as range observer")
	}
}

func TestGraphCellDependencyThroughMatrix(t *testing.T) {
	g := NewDependencyGraph()
	block := RangeAddress{Sheet: 1, StartRow: 0, StartColumn: 0, EndRow: 1, EndColumn: 1}
	mv, err := g.AddMatrixVertex(block)
	if err != nil {
		t.Fatal(err)
	}
	consumer := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 5, Column: 5})
	g.ProcessCellDependencies([]CellAddress{{Sheet: 1, Row: 0, Column: 0}}, nil, consumer.id)

	if _, ok := consumer.precedents[mv.id]; !ok {
		t.Error("cell dependency inside a matrix must edge to the matrix vertex")
	}
	if _, ok := g.Cells.Get(CellAddress{Sheet: 1, Row: 0, Column: 0}); ok {
		t.Error("no shadow per-cell vertex may appear inside a matrix rectangle")
	}
}

func TestGraphValueConversionKeepsIncomingEdges(t *testing.T) {
	// Mutating a vertex from one variant to another replaces the payload
	// at the same id, preserving incoming edges.
	g := NewDependencyGraph()
	producer := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 0})
	consumer := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 1})
	g.AddEdge(consumer.id, producer.id)

	producer.kind = VertexValue
	producer.value = NumberValue(1)
	if _, ok := consumer.precedents[producer.id]; !ok {
		t.Error("incoming edge lost across variant conversion")
	}

	g.DisconnectConsumer(producer.id)
	if _, ok := consumer.precedents[producer.id]; !ok {
		t.Error("DisconnectConsumer must only drop outgoing edges")
	}
}

func TestGraphDirtySet(t *testing.T) {
	g := NewDependencyGraph()
	a := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 0})
	b := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 1, Column: 0})
	g.MarkDirty(a.id)
	g.MarkDirty(b.id)
	g.MarkDirty(b.id)
	if len(g.DirtyVertices()) != 2 {
		t.Errorf("dirty set = %v, want 2 entries", g.DirtyVertices())
	}
	g.ClearDirty(a.id)
	if len(g.DirtyVertices()) != 1 || a.dirty {
		t.Error("ClearDirty must drop exactly one vertex")
	}
	g.ClearAllDirty()
	if len(g.DirtyVertices()) != 0 || b.dirty {
		t.Error("ClearAllDirty must empty the set")
	}
	g.ClearAllDirty()
	if len(g.DirtyVertices()) != 0 {
		t.Error("clearing an empty set must stay empty")
	}
}

func TestGraphRangeFanInExtends(t *testing.T) {
	g := NewDependencyGraph()
	existing := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 0})
	rv := g.InternRangeVertex(RangeAddress{Sheet: 1, StartRow: 0, StartColumn: 0, EndRow: 2, EndColumn: 0})
	if _, ok := rv.precedents[existing.id]; !ok {
		t.Error("fan-in from existing cells must be installed at intern time")
	}
	late := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 2, Column: 0})
	if _, ok := rv.precedents[late.id]; !ok {
		t.Error("a cell created inside an interned range must join its fan-in")
	}
	outside := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 5, Column: 0})
	if _, ok := rv.precedents[outside.id]; ok {
		t.Error("a cell outside the rectangle must not join the fan-in")
	}
}

func TestGraphVolatileTracking(t *testing.T) {
	g := NewDependencyGraph()
	v := g.GetOrCreateCellVertex(CellAddress{Sheet: 1, Row: 0, Column: 0})
	g.MarkVolatile(v.id)
	if !g.IsVolatile(v.id) || !v.volatile {
		t.Error("MarkVolatile must set both the set and the flag")
	}
	g.MarkAllVolatileDirty()
	if len(g.DirtyVertices()) != 1 {
		t.Error("volatile vertices must be reseeded into the dirty set")
	}
	g.UnmarkVolatile(v.id)
	if g.IsVolatile(v.id) || v.volatile {
		t.Error("UnmarkVolatile must clear both the set and the flag")
	}
}
