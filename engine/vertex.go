package engine

// VertexKind tags what a vertex in the dependency graph represents.
type VertexKind uint8

const (
	VertexEmpty VertexKind = iota
	VertexValue
	VertexFormula
	VertexMatrix
	VertexRange
)

// vertex is one node in the dependency graph, addressed by an arena id
// so the address/range/matrix mappings all resolve into one VertexID
// space and structural transforms can rewrite an address without
// touching edges.
type vertex struct {
	id   VertexID
	kind VertexKind

	cell  CellAddress  // meaningful for VertexValue/VertexFormula/VertexEmpty
	block RangeAddress // meaningful for VertexMatrix/VertexRange

	formulaText string
	hash        FormulaHash
	ast         ASTNode

	value      Value
	dirty      bool
	volatile   bool
	structural bool   // calls a layout-dependent function (ROW/COLUMN)
	version    uint64 // last lazyTransformService version applied to this vertex's ast

	precedents map[VertexID]struct{} // vertices this vertex reads from
	dependents map[VertexID]struct{} // vertices that read from this vertex
}

func newVertex(id VertexID, kind VertexKind) *vertex {
	return &vertex{
		id:         id,
		kind:       kind,
		precedents: make(map[VertexID]struct{}),
		dependents: make(map[VertexID]struct{}),
		value:      EmptyValue(),
	}
}

func (v *vertex) isEmpty() bool {
	return v.kind == VertexEmpty && len(v.precedents) == 0 && len(v.dependents) == 0
}
