package engine

import (
	"sort"

	"github.com/mandelsoft/logging"
)

// CellResolver is the narrow surface a FunctionLibrary needs to resolve
// arguments that are themselves references — used so built-in functions
// like SUM/MMULT never need to see the dependency graph directly. It is
// the only re-entrancy permitted from within a function callback.
type CellResolver interface {
	Cell(addr CellAddress) Value
	Range(addr RangeAddress) Range
}

// FunctionLibrary is the contract a function implementation provides to
// the evaluator: name-dispatched calls plus a volatility predicate used
// while extracting dependencies (volatile cells are always reseeded on
// every recalculation regardless of their dirty state).
type FunctionLibrary interface {
	Call(name string, resolver CellResolver, args ...Value) (Value, error)
	IsVolatile(name string) bool
}

// structureSensitiveFunctions result depends on sheet layout, so every
// formula calling one is re-evaluated after any structural operation even
// when none of its extracted dependencies changed.
var structureSensitiveFunctions = map[string]bool{
	"ROW":    true,
	"COLUMN": true,
}

// Evaluator performs incremental recomputation over the dependency
// graph. Cycle detection is an explicit Tarjan strongly-connected-
// components pass over the affected subgraph, so a cycle is diagnosed
// once per component instead of once per cell that touches it, and
// every cell in a cycle receives the same typed cycle error
// deterministically.
type Evaluator struct {
	graph     *DependencyGraph
	functions FunctionLibrary
	log       logging.Logger
	lazy      *lazyTransformService

	// round post-processes numeric results per the precisionRounding /
	// smartRounding configuration; nil leaves results untouched.
	round func(float64) float64

	anchor CellAddress // current evaluation anchor, valid only during Eval
}

func NewEvaluator(graph *DependencyGraph, functions FunctionLibrary, log logging.Logger) *Evaluator {
	return &Evaluator{graph: graph, functions: functions, log: log, lazy: newLazyTransformService()}
}

// Transform runs a structural operation's eager pass against the graph via
// transformFn, then enqueues the record it returns in the lazy transform
// service so affected formula vertices pick it up on next evaluation.
// Structure-sensitive formulas are re-seeded unconditionally.
func (e *Evaluator) Transform(transformFn func(*DependencyTransformer) (TransformRecord, error)) error {
	rec, err := transformFn(NewDependencyTransformer(e.graph))
	if err != nil {
		return err
	}
	e.lazy.Enqueue(rec)
	for id := range e.graph.structural {
		e.graph.MarkDirty(id)
	}
	return nil
}

// SetFormula installs a parsed formula on a cell: clears prior
// dependencies, re-extracts them from the new AST, and marks the cell
// dirty. The vertex is stamped with the lazy service's current version,
// since the AST it was just handed reflects all transforms applied so far.
func (e *Evaluator) SetFormula(addr CellAddress, formulaText string, ast ASTNode, hash FormulaHash) {
	v := e.graph.GetOrCreateCellVertex(addr)
	e.graph.DisconnectConsumer(v.id)
	e.graph.UnmarkVolatile(v.id)
	e.graph.UnmarkStructural(v.id)
	v.kind = VertexFormula
	v.formulaText = formulaText
	v.ast = ast
	v.hash = hash
	v.version = e.lazy.CurrentVersion()

	e.extractDependencies(v.id, addr, ast)
	e.graph.MarkDirty(v.id)
	e.dirtyDependentsOf(addr, v.id)
}

// SetValue installs a literal value on a cell, dropping any formula
// dependencies it previously had, and dirties its dependents.
func (e *Evaluator) SetValue(addr CellAddress, value Value) {
	v := e.graph.GetOrCreateCellVertex(addr)
	e.graph.DisconnectConsumer(v.id)
	e.graph.UnmarkVolatile(v.id)
	e.graph.UnmarkStructural(v.id)
	v.kind = VertexValue
	v.formulaText = ""
	v.ast = nil
	v.value = value
	e.dirtyDependentsOf(addr, v.id)
}

// SetMatrixFormula installs an array formula whose result covers block;
// the matrix vertex must already exist in the graph (AddMatrixVertex ran
// the overlap check). Dependencies anchor at the block's top-left corner.
func (e *Evaluator) SetMatrixFormula(v *vertex, formulaText string, ast ASTNode, hash FormulaHash) {
	v.formulaText = formulaText
	v.ast = ast
	v.hash = hash
	v.version = e.lazy.CurrentVersion()
	anchor := CellAddress{Sheet: v.block.Sheet, Row: v.block.StartRow, Column: v.block.StartColumn}
	e.extractDependencies(v.id, anchor, ast)
	e.graph.MarkDirty(v.id)
}

// RemoveCell clears a cell back to the Empty variant: outgoing edges
// drop, incoming edges survive (a consumer referencing the cell keeps
// seeing it, now empty), and consumers are dirtied. A vertex nothing
// points at anymore is removed outright.
func (e *Evaluator) RemoveCell(addr CellAddress) {
	id, ok := e.graph.Cells.Get(addr)
	if !ok {
		return
	}
	v := e.graph.vertices[id]
	e.graph.DisconnectConsumer(id)
	e.graph.UnmarkVolatile(id)
	e.graph.UnmarkStructural(id)
	v.kind = VertexEmpty
	v.formulaText = ""
	v.ast = nil
	v.value = EmptyValue()
	e.dirtyDependentsOf(addr, id)
	if v.isEmpty() {
		e.graph.RemoveCellVertex(addr)
	}
}

func (e *Evaluator) dirtyDependentsOf(addr CellAddress, id VertexID) {
	e.graph.MarkCellIfInRangeDirty(addr)
	for _, dep := range e.graph.GetDirectDependents(id) {
		e.graph.MarkDirty(dep)
	}
}

// extractDependencies walks ast and wires precedent edges from the
// owning vertex to every cell/range it reads, marking the vertex
// volatile or structure-sensitive if it calls a function declared as
// such. A named-range reference is only counted in the named-range
// mapping; it gets no edge, so edits inside a named range do not mark
// its readers dirty. A cell reference landing inside a matrix rectangle resolves
// to the owning matrix vertex, never to a shadow per-cell vertex.
func (e *Evaluator) extractDependencies(owner VertexID, anchor CellAddress, node ASTNode) {
	switch n := node.(type) {
	case *CellRefNode:
		addr, ok := n.resolve(anchor)
		if !ok {
			return
		}
		e.graph.processCellDependency(owner, addr)

	case *RangeRefNode:
		addr, ok := n.resolve(anchor)
		if !ok {
			return
		}
		e.graph.processRangeDependency(owner, addr)

	case *BinaryOpNode:
		e.extractDependencies(owner, anchor, n.Left)
		e.extractDependencies(owner, anchor, n.Right)

	case *UnaryOpNode:
		e.extractDependencies(owner, anchor, n.Operand)

	case *FunctionCallNode:
		if e.functions != nil && e.functions.IsVolatile(n.Name) {
			e.graph.MarkVolatile(owner)
		}
		if structureSensitiveFunctions[n.Name] {
			e.graph.MarkStructural(owner)
		}
		for _, arg := range n.Args {
			e.extractDependencies(owner, anchor, arg)
		}

	case *NamedRangeNode:
		e.graph.NamedRanges.Intern(n.Name)

	case *StringNode, *NumberNode, *BooleanNode, *EmptyArgNode, *ErrorNode:
		// no operand dependencies
	}
}

// ApplyPostponedTransformations eagerly rewrites every formula and
// matrix AST that still trails the transform queue, in vertex-id order.
// Normally rewrites happen lazily per vertex right before evaluation;
// this exists for hosts that want the queue drained at a known point.
func (e *Evaluator) ApplyPostponedTransformations() {
	ids := make([]VertexID, 0, len(e.graph.vertices))
	for id := range e.graph.vertices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if v, ok := e.graph.vertices[id]; ok {
			e.lazy.ApplyTo(v, e)
		}
	}
}

// Recalculate recomputes exactly the transitive consumer closure of the
// dirty set plus every volatile vertex, in one pass: expand the closure
// along dependent edges, split it into strongly connected components
// with Tarjan's algorithm (which emits producers before consumers), then
// settle each component — multi-vertex components and self-loops resolve
// to the typed cycle error, everything else evaluates against values its
// producers already wrote back.
func (e *Evaluator) Recalculate() {
	e.graph.MarkAllVolatileDirty()
	seeds := e.graph.DirtyVertices()
	if len(seeds) == 0 {
		return
	}

	closure := e.consumerClosure(seeds)
	sccs := e.stronglyConnectedComponents(seeds, closure)
	for _, scc := range sccs {
		if len(scc) > 1 || e.selfReferential(scc[0]) {
			e.settleCycle(scc)
			continue
		}
		e.settleVertex(scc[0])
	}
	e.graph.ClearAllDirty()
}

// consumerClosure expands seeds along dependent edges into the full set
// of vertices whose cached value may be affected.
func (e *Evaluator) consumerClosure(seeds []VertexID) map[VertexID]struct{} {
	closure := make(map[VertexID]struct{}, len(seeds))
	queue := append([]VertexID(nil), seeds...)
	for _, id := range seeds {
		closure[id] = struct{}{}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range e.graph.GetDirectDependents(id) {
			if _, seen := closure[dep]; !seen {
				closure[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}
	return closure
}

func (e *Evaluator) selfReferential(id VertexID) bool {
	v, ok := e.graph.vertices[id]
	if !ok {
		return false
	}
	_, ok = v.precedents[id]
	return ok
}

// settleCycle assigns a cycle error to every value-producing vertex in a
// strongly connected component.
func (e *Evaluator) settleCycle(scc []VertexID) {
	e.log.Debug("cycle detected among {{count}} vertices", "count", len(scc))
	err := NewCellError(ErrorCycle, "circular reference detected")
	for _, id := range scc {
		v, ok := e.graph.vertices[id]
		if !ok {
			continue
		}
		e.lazy.ApplyTo(v, e)
		if v.kind == VertexFormula || v.kind == VertexMatrix {
			v.value = ErrorValueOf(err)
		}
	}
}

// settleVertex recomputes one vertex: brings its AST up to date with any
// postponed transformations, evaluates it, and writes the result back so
// every later-settled consumer reads the fresh value.
func (e *Evaluator) settleVertex(id VertexID) {
	v, ok := e.graph.vertices[id]
	if !ok {
		return
	}
	e.lazy.ApplyTo(v, e)

	switch v.kind {
	case VertexFormula:
		if v.ast == nil {
			return
		}
		e.anchor = v.cell
		v.value = e.postProcess(v.ast.Eval(e))

	case VertexMatrix:
		if v.ast == nil {
			return
		}
		e.anchor = CellAddress{Sheet: v.block.Sheet, Row: v.block.StartRow, Column: v.block.StartColumn}
		v.value = e.normalizeMatrixResult(v.block, v.ast.Eval(e))
	}
}

// normalizeMatrixResult shapes an array formula's result onto the matrix
// rectangle: a range result is taken as-is (short results leave trailing
// cells empty), a scalar broadcasts to every covered cell, and an error
// fills the rectangle with itself.
func (e *Evaluator) normalizeMatrixResult(block RangeAddress, result Value) Value {
	size := int(block.Width()) * int(block.Height())
	values := make([]Value, size)
	switch result.Kind {
	case ValueRangeKind:
		src := result.AsRange().Values()
		for i := range values {
			if i < len(src) {
				values[i] = e.postProcess(src[i])
			} else {
				values[i] = EmptyValue()
			}
		}
	default:
		for i := range values {
			values[i] = e.postProcess(result)
		}
	}
	return RangeValue(&sliceRange{bounds: block, values: values})
}

func (e *Evaluator) postProcess(v Value) Value {
	if e.round == nil || v.Kind != ValueNumber {
		return v
	}
	return NumberValue(e.round(v.num))
}

// stronglyConnectedComponents runs Tarjan's algorithm over the closure
// subgraph (precedent edges restricted to closure members), visiting
// roots and edges in deterministic address order so results are
// reproducible across runs. Tarjan emits a component only after every
// component it depends on, which is exactly producer-before-consumer.
func (e *Evaluator) stronglyConnectedComponents(roots []VertexID, closure map[VertexID]struct{}) [][]VertexID {
	sort.Slice(roots, func(i, j int) bool { return e.lessAddress(roots[i], roots[j]) })

	index := 0
	indices := make(map[VertexID]int)
	lowlink := make(map[VertexID]int)
	onStack := make(map[VertexID]bool)
	var stack []VertexID
	var sccs [][]VertexID

	var strongConnect func(v VertexID)
	strongConnect = func(v VertexID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		precedents := e.graph.GetDirectPrecedents(v)
		sort.Slice(precedents, func(i, j int) bool { return e.lessAddress(precedents[i], precedents[j]) })
		for _, w := range precedents {
			if _, inClosure := closure[w]; !inClosure {
				continue
			}
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []VertexID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, component)
		}
	}

	for _, root := range roots {
		if _, seen := indices[root]; !seen {
			strongConnect(root)
		}
	}
	remaining := make([]VertexID, 0)
	for id := range closure {
		if _, seen := indices[id]; !seen {
			remaining = append(remaining, id)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return e.lessAddress(remaining[i], remaining[j]) })
	for _, id := range remaining {
		strongConnect(id)
	}
	return sccs
}

func (e *Evaluator) lessAddress(a, b VertexID) bool {
	va, aok := e.graph.vertices[a]
	vb, bok := e.graph.vertices[b]
	if !aok || !bok {
		return a < b
	}
	if va.cell.Sheet != vb.cell.Sheet {
		return va.cell.Sheet < vb.cell.Sheet
	}
	if va.cell.Column != vb.cell.Column {
		return va.cell.Column < vb.cell.Column
	}
	return va.cell.Row < vb.cell.Row
}

// EvalContext implementation

func (e *Evaluator) Anchor() CellAddress { return e.anchor }

func (e *Evaluator) ResolveSheet(name string) (SheetID, bool) {
	return e.graph.Sheets.IDByName(name)
}

// CellValue resolves a single cell, first checking whether it falls
// inside a matrix vertex (in which case the value comes from the
// matrix's result grid) and otherwise reading the plain cell vertex.
func (e *Evaluator) CellValue(addr CellAddress) Value {
	if id, block, ok := e.graph.Matrices.Find(addr); ok {
		mv, exists := e.graph.vertices[id]
		if !exists || mv.value.Kind != ValueRangeKind {
			return EmptyValue()
		}
		values := mv.value.AsRange().Values()
		idx := int(addr.Row-block.StartRow)*int(block.Width()) + int(addr.Column-block.StartColumn)
		if idx < 0 || idx >= len(values) {
			return EmptyValue()
		}
		return values[idx]
	}
	v, ok := e.graph.GetCellVertex(addr)
	if !ok {
		return EmptyValue()
	}
	return v.value
}

func (e *Evaluator) RangeValues(addr RangeAddress) Range {
	values := make([]Value, 0, int(addr.Width())*int(addr.Height()))
	for row := addr.StartRow; row <= addr.EndRow; row++ {
		for col := addr.StartColumn; col <= addr.EndColumn; col++ {
			values = append(values, e.CellValue(CellAddress{Sheet: addr.Sheet, Row: row, Column: col}))
		}
	}
	return &sliceRange{bounds: addr, values: values}
}

// CallFunction dispatches a function call, resolving the two
// layout-dependent zero-argument primitives against the anchor cell
// itself so the FunctionLibrary stays free of evaluator state.
func (e *Evaluator) CallFunction(name string, args []Value) (Value, error) {
	if len(args) == 0 {
		switch name {
		case "ROW":
			return NumberValue(float64(e.anchor.Row + 1)), nil
		case "COLUMN":
			return NumberValue(float64(e.anchor.Column + 1)), nil
		}
	}
	if e.functions == nil {
		return Value{}, NewCellError(ErrorName, "no function library configured")
	}
	return e.functions.Call(name, e, args...)
}

func (e *Evaluator) NamedRangeValue(name string) Value {
	addr, ok := e.graph.NamedRanges.Lookup(name)
	if !ok {
		return ErrorValueOf(NewCellError(ErrorName, "named range '"+name+"' not found"))
	}
	return RangeValue(e.RangeValues(addr))
}

// Cell implements CellResolver for the FunctionLibrary.
func (e *Evaluator) Cell(addr CellAddress) Value { return e.CellValue(addr) }

// Range implements CellResolver for the FunctionLibrary.
func (e *Evaluator) Range(addr RangeAddress) Range { return e.RangeValues(addr) }
