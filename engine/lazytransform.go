package engine

// lazyTransformService is a versioned queue of pending
// structural-transform records. DependencyTransformer already applied
// a record's effect on the graph/mapping layer eagerly by the time it's
// enqueued here; this service only carries the AST-rewrite half, deferred
// until the evaluator is about to consume a given formula vertex, so a
// workbook with many formulas never pays the cost of rewriting every AST
// up front for a structural edit that only a few of them actually read
// through.
type lazyTransformService struct {
	records []TransformRecord
	version uint64
}

func newLazyTransformService() *lazyTransformService {
	return &lazyTransformService{}
}

// Enqueue appends a transform record, stamping it with the next monotonic
// version and returning that version.
func (s *lazyTransformService) Enqueue(rec TransformRecord) uint64 {
	s.version++
	rec.Version = s.version
	s.records = append(s.records, rec)
	return s.version
}

func (s *lazyTransformService) CurrentVersion() uint64 { return s.version }

func (s *lazyTransformService) pendingSince(since uint64) []TransformRecord {
	if since >= s.version {
		return nil
	}
	var pending []TransformRecord
	for _, r := range s.records {
		if r.Version > since {
			pending = append(pending, r)
		}
	}
	return pending
}

// Clear drops every queued record and resets the version counter, used
// when the engine's state is reset wholesale.
func (s *lazyTransformService) Clear() {
	s.records = nil
	s.version = 0
}

// ApplyTo brings a vertex's AST up to date with every transform recorded
// since the vertex's own version, forking its AST the moment a record
// actually changes it (so a template still shared with untouched vertices
// via the formula cache is never mutated in place), then re-extracting the
// vertex's dependency edges so they match the rewritten references.
func (s *lazyTransformService) ApplyTo(v *vertex, e *Evaluator) {
	pending := s.pendingSince(v.version)
	v.version = s.version
	if len(pending) == 0 || v.ast == nil || (v.kind != VertexFormula && v.kind != VertexMatrix) {
		return
	}

	anchor := v.cell
	if v.kind == VertexMatrix {
		anchor = CellAddress{Sheet: v.block.Sheet, Row: v.block.StartRow, Column: v.block.StartColumn}
	}

	// The vertex's cell already reflects every record's eager pass, but
	// each record's rewrite expects the cell as of that record's own
	// pass. Walk newest-to-oldest un-applying records to recover the
	// intermediate anchors.
	anchors := make([]CellAddress, len(pending))
	cur := anchor
	for i := len(pending) - 1; i >= 0; i-- {
		anchors[i] = cur
		cur = unapplyRecordToCell(pending[i], cur)
	}

	node := v.ast
	changedAny := false
	for i, rec := range pending {
		newNode, changed := rewriteAST(node, rec, anchors[i])
		if changed {
			node = newNode
			changedAny = true
		}
	}
	if !changedAny {
		return
	}

	v.ast = node
	e.graph.DisconnectConsumer(v.id)
	e.graph.UnmarkVolatile(v.id)
	e.graph.UnmarkStructural(v.id)
	e.extractDependencies(v.id, anchor, node)
}
