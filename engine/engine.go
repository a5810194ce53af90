package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Engine is the public surface of the spreadsheet calculation engine: it
// owns the dependency graph, the parser cache, and the evaluator, and
// keeps every cell's computed value consistent under content edits and
// structural operations. All methods must be called from one goroutine;
// every mutator completes fully, including the recomputation it implies,
// before returning.
type Engine struct {
	config    Config
	graph     *DependencyGraph
	evaluator *Evaluator
	formulas  *formulaTable
	functions FunctionLibrary
	session   SessionID

	defaultSheet            SheetID
	numericMatricesDisabled bool
}

// SheetDimensions is the occupied extent of one sheet.
type SheetDimensions struct {
	Rows    uint32
	Columns uint32
}

// New creates an empty engine with the given configuration and function
// library collaborator.
func New(config Config, functions FunctionLibrary) *Engine {
	graph := NewDependencyGraph()
	argSeparator := ','
	if config.FunctionArgSeparator != "" {
		argSeparator = []rune(config.FunctionArgSeparator)[0]
	}
	e := &Engine{
		config:    config,
		graph:     graph,
		evaluator: NewEvaluator(graph, functions, log),
		formulas:  newFormulaTableWithSeparator(argSeparator),
		functions: functions,
		session:   newSessionID(),
	}
	if config.SmartRounding {
		e.evaluator.round = precisionRounder(config.PrecisionRounding)
	}
	log.Debug("engine created", "session", e.session)
	return e
}

// NewFromArray creates an engine with a single sheet named "Sheet1"
// populated from a 2D array of cell content strings.
func NewFromArray(cells [][]string, config Config, functions FunctionLibrary) (*Engine, error) {
	return NewFromSheets(map[string][][]string{"Sheet1": cells}, config, functions)
}

// NewFromSheets creates an engine from a map of sheet name to 2D content
// array. Sheets are added in sorted name order so ids are deterministic.
func NewFromSheets(sheets map[string][][]string, config Config, functions FunctionLibrary) (*Engine, error) {
	e := New(config, functions)
	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id, err := e.AddSheet(name)
		if err != nil {
			return nil, err
		}
		if err := e.loadSheet(id, sheets[name]); err != nil {
			return nil, err
		}
	}
	e.evaluator.Recalculate()
	return e, nil
}

// precisionRounder rounds every finite float to the configured number of
// decimal places, absorbing accumulated binary representation error.
func precisionRounder(places int) func(float64) float64 {
	factor := math.Pow(10, float64(places))
	return func(x float64) float64 {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return x
		}
		return math.Round(x*factor) / factor
	}
}

// AddSheet registers a new sheet and returns its id. The first sheet
// added becomes the default for unqualified addresses.
func (e *Engine) AddSheet(name string) (SheetID, error) {
	id, err := e.graph.Sheets.Add(name)
	if err != nil {
		return 0, err
	}
	if e.defaultSheet == 0 {
		e.defaultSheet = id
	}
	log.Debug("sheet added", "session", e.session, "name", name, "id", id)
	return id, nil
}

// loadSheet ingests a 2D content array: numeric-block coalescing first
// (when matrixDetection is on), then per-cell content, without any
// recomputation — the constructor recalculates once at the end.
func (e *Engine) loadSheet(sheet SheetID, cells [][]string) error {
	covered := make(map[CellAddress]bool)
	if e.config.MatrixDetection && !e.numericMatricesDisabled {
		if err := e.coalesceNumericBlocks(sheet, cells, covered); err != nil {
			return err
		}
	}
	for row := range cells {
		for col, content := range cells[row] {
			addr := CellAddress{Sheet: sheet, Row: uint32(row), Column: uint32(col)}
			if covered[addr] || content == "" {
				continue
			}
			if _, block, ok := e.graph.Matrices.Find(addr); ok {
				return NewAppError(InvalidArgument,
					"cell (%d,%d) conflicts with the array formula rectangle rows %d-%d, columns %d-%d",
					addr.Row, addr.Column, block.StartRow, block.EndRow, block.StartColumn, block.EndColumn)
			}
			if err := e.ingestContent(addr, content); err != nil {
				return err
			}
		}
	}
	return nil
}

// coalesceNumericBlocks greedily detects maximal all-numeric rectangles of
// at least threshold×threshold cells and installs each as one matrix
// vertex with a dense numeric payload.
func (e *Engine) coalesceNumericBlocks(sheet SheetID, cells [][]string, covered map[CellAddress]bool) error {
	threshold := e.config.MatrixDetectionThreshold
	if threshold < 1 {
		threshold = 1
	}
	numericAt := func(row, col int) (float64, bool) {
		if row >= len(cells) || col >= len(cells[row]) {
			return 0, false
		}
		if covered[CellAddress{Sheet: sheet, Row: uint32(row), Column: uint32(col)}] {
			return 0, false
		}
		return parseNumericContent(cells[row][col])
	}

	for row := range cells {
		for col := range cells[row] {
			if _, ok := numericAt(row, col); !ok {
				continue
			}
			width := 1
			for {
				if _, ok := numericAt(row, col+width); !ok {
					break
				}
				width++
			}
			height := 1
			for rowOK := true; rowOK; {
				for c := col; c < col+width; c++ {
					if _, ok := numericAt(row+height, c); !ok {
						rowOK = false
						break
					}
				}
				if rowOK {
					height++
				}
			}
			if width < threshold || height < threshold {
				continue
			}
			block := RangeAddress{
				Sheet: sheet, StartRow: uint32(row), StartColumn: uint32(col),
				EndRow: uint32(row + height - 1), EndColumn: uint32(col + width - 1),
			}
			values := make([]Value, 0, width*height)
			for r := row; r < row+height; r++ {
				for c := col; c < col+width; c++ {
					n, _ := numericAt(r, c)
					values = append(values, NumberValue(n))
				}
			}
			v, err := e.graph.AddMatrixVertex(block)
			if err != nil {
				return err
			}
			v.value = RangeValue(&sliceRange{bounds: block, values: values})
			for r := row; r < row+height; r++ {
				for c := col; c < col+width; c++ {
					covered[CellAddress{Sheet: sheet, Row: uint32(r), Column: uint32(c)}] = true
				}
			}
			log.Debug("numeric block coalesced", "session", e.session, "block", block)
		}
	}
	return nil
}

func parseNumericContent(content string) (float64, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetCellContent applies the ingestion grammar to one cell addressed as
// a string ("A1" or "Sheet2!B3") and recomputes everything affected
// before returning.
func (e *Engine) SetCellContent(address, content string) (err error) {
	addr, err := e.ParseCellAddress(address)
	if err != nil {
		return err
	}
	return e.SetCellContentAt(addr, content)
}

// SetCellContentAt is SetCellContent for an already-resolved address.
// A string beginning with "=" is a formula, "{=…}" an array formula, an
// otherwise-numeric string a numeric value, the empty string deletes the
// cell, and anything else is a string value.
func (e *Engine) SetCellContentAt(addr CellAddress, content string) (err error) {
	defer e.recoverInternal(&err)
	handled, err := e.checkMatrixEdit(addr, content)
	if err != nil || handled {
		return err
	}
	if err := e.ingestContent(addr, content); err != nil {
		return err
	}
	e.evaluator.Recalculate()
	return nil
}

// checkMatrixEdit resolves an edit that lands inside a matrix rectangle:
// a numeric write into a coalesced numeric matrix updates its payload in
// place (handled == true), any other write splits the numeric matrix back
// to per-cell vertices before the edit proceeds, and any edit inside an
// array-formula matrix is rejected.
func (e *Engine) checkMatrixEdit(addr CellAddress, content string) (handled bool, err error) {
	id, block, ok := e.graph.Matrices.Find(addr)
	if !ok {
		return false, nil
	}
	v, exists := e.graph.Vertex(id)
	if !exists {
		return false, nil
	}
	if v.ast != nil {
		return false, NewAppError(FailedPrecondition,
			"cell (%d,%d,%d) belongs to an array formula spanning rows %d-%d, columns %d-%d",
			addr.Sheet, addr.Row, addr.Column, block.StartRow, block.EndRow, block.StartColumn, block.EndColumn)
	}
	if n, numeric := parseNumericContent(content); numeric {
		values := v.value.AsRange().Values()
		idx := int(addr.Row-block.StartRow)*int(block.Width()) + int(addr.Column-block.StartColumn)
		values[idx] = NumberValue(n)
		e.graph.MarkRangeDirty(id)
		e.graph.MarkCellIfInRangeDirty(addr)
		e.evaluator.Recalculate()
		return true, nil
	}
	e.splitMatrix(id)
	return false, nil
}

func (e *Engine) ingestContent(addr CellAddress, content string) error {
	switch {
	case content == "":
		e.evaluator.RemoveCell(addr)
		return nil
	case strings.HasPrefix(content, "{=") && strings.HasSuffix(content, "}"):
		return e.setArrayFormula(addr, content[1:len(content)-1])
	case strings.HasPrefix(content, "="):
		return e.setFormula(addr, content)
	default:
		if n, ok := parseNumericContent(content); ok {
			e.evaluator.SetValue(addr, NumberValue(n))
			return nil
		}
		e.evaluator.SetValue(addr, StringValue(content))
		return nil
	}
}

// setFormula parses formula text through the template cache; a lexical or
// grammatical failure still installs the cell as a formula whose AST is a
// cached error node (errors are values, never thrown). The failure cache
// keys on RegexHash, since the token stream a TokenHash needs may be
// exactly what failed.
func (e *Engine) setFormula(addr CellAddress, formula string) error {
	ast, hash, err := e.formulas.ParseCached(formula, addr, e.graph.Sheets.IDByName)
	if err != nil {
		ce, ok := err.(*CellError)
		if !ok {
			ce = NewCellError(ErrorParse, err.Error())
		}
		hash = RegexHash(formula, addr)
		ast = e.formulas.InternError(hash, ce)
	}
	e.evaluator.SetFormula(addr, formula, ast, hash)
	return nil
}

// setArrayFormula installs an array formula at addr: its result's shape
// determines the matrix rectangle, anchored at addr. The rectangle must
// not overlap another matrix or any non-empty cell.
func (e *Engine) setArrayFormula(addr CellAddress, formula string) error {
	ast, hash, err := e.formulas.ParseCached(formula, addr, e.graph.Sheets.IDByName)
	if err != nil {
		return NewAppError(InvalidArgument, "array formula does not parse: %v", err)
	}

	e.evaluator.anchor = addr
	probe := ast.Eval(e.evaluator)
	width, height := uint32(1), uint32(1)
	if probe.Kind == ValueRangeKind {
		bounds := probe.AsRange().Bounds()
		width, height = bounds.Width(), bounds.Height()
	}
	block := RangeAddress{
		Sheet: addr.Sheet, StartRow: addr.Row, StartColumn: addr.Column,
		EndRow: addr.Row + height - 1, EndColumn: addr.Column + width - 1,
	}

	for row := block.StartRow; row <= block.EndRow; row++ {
		for col := block.StartColumn; col <= block.EndColumn; col++ {
			cell := CellAddress{Sheet: addr.Sheet, Row: row, Column: col}
			if v, ok := e.graph.GetCellVertex(cell); ok && v.kind != VertexEmpty {
				return NewAppError(FailedPrecondition,
					"array formula rectangle covers non-empty cell (%d,%d,%d)", cell.Sheet, cell.Row, cell.Column)
			}
		}
	}

	mv, err := e.graph.AddMatrixVertex(block)
	if err != nil {
		return err
	}
	e.absorbCellVertices(mv, block)
	e.evaluator.SetMatrixFormula(mv, formula, ast, hash)
	log.Debug("array formula installed", "session", e.session, "block", block)
	return nil
}

// absorbCellVertices redirects consumers of empty placeholder vertices
// inside a fresh matrix rectangle onto the matrix vertex, then drops the
// placeholders, preserving the invariant that every covered cell resolves
// through the owning matrix vertex.
func (e *Engine) absorbCellVertices(mv *vertex, block RangeAddress) {
	for row := block.StartRow; row <= block.EndRow; row++ {
		for col := block.StartColumn; col <= block.EndColumn; col++ {
			cell := CellAddress{Sheet: block.Sheet, Row: row, Column: col}
			id, ok := e.graph.Cells.Get(cell)
			if !ok {
				continue
			}
			for _, dep := range e.graph.GetDirectDependents(id) {
				e.graph.AddEdge(dep, mv.id)
				e.graph.AddRangeObserver(mv.id, dep)
				e.graph.RemoveEdge(dep, id)
				e.graph.MarkDirty(dep)
			}
			e.graph.RemoveCellVertex(cell)
		}
	}
}

// splitMatrix dissolves a coalesced numeric matrix back into per-cell
// value vertices and rewires every consumer that read through it.
func (e *Engine) splitMatrix(id VertexID) {
	v, ok := e.graph.Vertex(id)
	if !ok || v.kind != VertexMatrix {
		return
	}
	block := v.block
	values := v.value.AsRange().Values()
	dependents := e.graph.GetDirectDependents(id)
	e.graph.RemoveMatrixVertex(id, block.Sheet)

	i := 0
	for row := block.StartRow; row <= block.EndRow; row++ {
		for col := block.StartColumn; col <= block.EndColumn; col++ {
			addr := CellAddress{Sheet: block.Sheet, Row: row, Column: col}
			if i < len(values) {
				e.evaluator.SetValue(addr, values[i])
			}
			i++
		}
	}

	for _, dep := range dependents {
		dv, ok := e.graph.Vertex(dep)
		if !ok || dv.ast == nil {
			continue
		}
		anchor := dv.cell
		if dv.kind == VertexMatrix {
			anchor = CellAddress{Sheet: dv.block.Sheet, Row: dv.block.StartRow, Column: dv.block.StartColumn}
		}
		e.graph.DisconnectConsumer(dep)
		e.evaluator.extractDependencies(dep, anchor, dv.ast)
		e.graph.MarkDirty(dep)
	}
	log.Debug("matrix split", "session", e.session, "block", block)
}

// GetCellValue returns the computed value of the cell addressed as a
// string; consistent, since every mutator recomputes before returning.
func (e *Engine) GetCellValue(address string) (Value, error) {
	addr, err := e.ParseCellAddress(address)
	if err != nil {
		return Value{}, err
	}
	return e.evaluator.CellValue(addr), nil
}

// CellValueAt returns the computed value at an already-resolved address.
func (e *Engine) CellValueAt(addr CellAddress) Value {
	return e.evaluator.CellValue(addr)
}

// GetValues returns the sheet's occupied rectangle as a dense 2D value
// array, rows outermost.
func (e *Engine) GetValues(sheet SheetID) [][]Value {
	dims := e.sheetDimensions(sheet)
	result := make([][]Value, dims.Rows)
	for row := uint32(0); row < dims.Rows; row++ {
		result[row] = make([]Value, dims.Columns)
		for col := uint32(0); col < dims.Columns; col++ {
			result[row][col] = e.evaluator.CellValue(CellAddress{Sheet: sheet, Row: row, Column: col})
		}
	}
	return result
}

func (e *Engine) sheetDimensions(sheet SheetID) SheetDimensions {
	rows, cols := e.graph.Cells.Dimensions(sheet)
	e.graph.Matrices.ForEach(func(_ VertexID, r RangeAddress) {
		if r.Sheet != sheet {
			return
		}
		if r.EndRow+1 > rows {
			rows = r.EndRow + 1
		}
		if r.EndColumn+1 > cols {
			cols = r.EndColumn + 1
		}
	})
	return SheetDimensions{Rows: rows, Columns: cols}
}

// GetSheetDimensions reports the occupied extent of one sheet.
func (e *Engine) GetSheetDimensions(sheet SheetID) SheetDimensions {
	return e.sheetDimensions(sheet)
}

// GetSheetsDimensions reports every sheet's occupied extent by name.
func (e *Engine) GetSheetsDimensions() map[string]SheetDimensions {
	result := make(map[string]SheetDimensions)
	for _, name := range e.graph.Sheets.Names() {
		if id, ok := e.graph.Sheets.IDByName(name); ok {
			result[name] = e.sheetDimensions(id)
		}
	}
	return result
}

// AddRows inserts count rows at rowStart: the graph and mappings shift
// eagerly, AST rewrites are queued for lazy application, and the dirty
// closure is recomputed before returning.
func (e *Engine) AddRows(sheet SheetID, rowStart, count uint32) (err error) {
	defer e.recoverInternal(&err)
	if count == 0 {
		return NewAppError(InvalidArgument, "addRows: count must be positive")
	}
	log.Debug("addRows", "session", e.session, "sheet", sheet, "rowStart", rowStart, "count", count)
	if err := e.evaluator.Transform(func(t *DependencyTransformer) (TransformRecord, error) {
		return t.AddRows(sheet, rowStart, count)
	}); err != nil {
		return err
	}
	e.RecomputeIfNeeded()
	return nil
}

// RemoveRows deletes rows [rowStart, rowEnd] inclusive.
func (e *Engine) RemoveRows(sheet SheetID, rowStart, rowEnd uint32) (err error) {
	defer e.recoverInternal(&err)
	if rowEnd < rowStart {
		return NewAppError(InvalidArgument, "removeRows: rowEnd precedes rowStart")
	}
	log.Debug("removeRows", "session", e.session, "sheet", sheet, "rowStart", rowStart, "rowEnd", rowEnd)
	if err := e.evaluator.Transform(func(t *DependencyTransformer) (TransformRecord, error) {
		return t.RemoveRows(sheet, rowStart, rowEnd)
	}); err != nil {
		return err
	}
	e.RecomputeIfNeeded()
	return nil
}

// AddColumns inserts count columns at colStart.
func (e *Engine) AddColumns(sheet SheetID, colStart, count uint32) (err error) {
	defer e.recoverInternal(&err)
	if count == 0 {
		return NewAppError(InvalidArgument, "addColumns: count must be positive")
	}
	log.Debug("addColumns", "session", e.session, "sheet", sheet, "colStart", colStart, "count", count)
	if err := e.evaluator.Transform(func(t *DependencyTransformer) (TransformRecord, error) {
		return t.AddColumns(sheet, colStart, count)
	}); err != nil {
		return err
	}
	e.RecomputeIfNeeded()
	return nil
}

// RemoveColumns deletes columns [colStart, colEnd] inclusive.
func (e *Engine) RemoveColumns(sheet SheetID, colStart, colEnd uint32) (err error) {
	defer e.recoverInternal(&err)
	if colEnd < colStart {
		return NewAppError(InvalidArgument, "removeColumns: colEnd precedes colStart")
	}
	log.Debug("removeColumns", "session", e.session, "sheet", sheet, "colStart", colStart, "colEnd", colEnd)
	if err := e.evaluator.Transform(func(t *DependencyTransformer) (TransformRecord, error) {
		return t.RemoveColumns(sheet, colStart, colEnd)
	}); err != nil {
		return err
	}
	e.RecomputeIfNeeded()
	return nil
}

// MoveCells lifts the source rectangle onto the equal-shaped rectangle
// anchored at (destRow, destCol) on destSheet, overwriting whatever the
// destination held. Fails fast if either rectangle touches a matrix.
func (e *Engine) MoveCells(source RangeAddress, destSheet SheetID, destRow, destCol uint32) (err error) {
	defer e.recoverInternal(&err)
	log.Debug("moveCells", "session", e.session, "source", source, "destSheet", destSheet, "destRow", destRow, "destCol", destCol)
	if err := e.evaluator.Transform(func(t *DependencyTransformer) (TransformRecord, error) {
		return t.MoveCells(source, destSheet, destRow, destCol)
	}); err != nil {
		return err
	}
	e.RecomputeIfNeeded()
	return nil
}

// DefineNamedRange binds a name to a range so formulas can refer to it
// as a bare identifier.
func (e *Engine) DefineNamedRange(name, address string) error {
	addr, err := e.ParseRangeAddress(address)
	if err != nil {
		return err
	}
	e.graph.NamedRanges.Define(name, addr)
	e.evaluator.Recalculate()
	return nil
}

// RecomputeIfNeeded recalculates only when the dependency graph has a
// non-empty dirty set; with nothing dirty it is a pure no-op, so
// repeated calls after a no-effect structural operation are idempotent.
func (e *Engine) RecomputeIfNeeded() {
	if len(e.graph.dirty) == 0 {
		return
	}
	e.evaluator.Recalculate()
}

// VerticesToRecompute exposes the current dirty set.
func (e *Engine) VerticesToRecompute() []VertexID {
	return e.graph.DirtyVertices()
}

// ClearRecentlyChangedVertices resets the dirty set without evaluating
// it. Clearing an already-empty set is a no-op.
func (e *Engine) ClearRecentlyChangedVertices() {
	e.graph.ClearAllDirty()
}

// ForceApplyPostponedTransformations drains the lazy transform queue,
// rewriting every trailing AST now instead of at next evaluation.
func (e *Engine) ForceApplyPostponedTransformations() {
	log.Debug("applying postponed transformations", "session", e.session)
	e.evaluator.ApplyPostponedTransformations()
}

// DisableNumericMatrices splits every coalesced numeric matrix back into
// per-cell value vertices and stops further coalescing. Array-formula
// matrices are unaffected.
func (e *Engine) DisableNumericMatrices() {
	e.numericMatricesDisabled = true
	var numeric []VertexID
	e.graph.Matrices.ForEach(func(id VertexID, _ RangeAddress) {
		if v, ok := e.graph.Vertex(id); ok && v.ast == nil {
			numeric = append(numeric, id)
		}
	})
	for _, id := range numeric {
		e.splitMatrix(id)
	}
	e.evaluator.Recalculate()
}

// Session returns the engine's log-correlation id.
func (e *Engine) Session() SessionID { return e.session }

// recoverInternal converts a panic raised by an internal invariant check
// into an Internal AppError at the public boundary.
func (e *Engine) recoverInternal(err *error) {
	if r := recover(); r != nil {
		log.Error("internal invariant violation", "session", e.session, "panic", fmt.Sprintf("%v", r))
		*err = NewAppError(Internal, "internal invariant violation: %v", r)
	}
}

// ParseCellAddress resolves "A1", "$B$2", or "Sheet2!C3" to a concrete
// address; an unqualified reference targets the default (first) sheet.
func (e *Engine) ParseCellAddress(address string) (CellAddress, error) {
	sheet, rest, err := e.splitSheetQualifier(address)
	if err != nil {
		return CellAddress{}, err
	}
	col, row, err := parseAbsoluteCell(rest)
	if err != nil {
		return CellAddress{}, err
	}
	return CellAddress{Sheet: sheet, Row: row, Column: col}, nil
}

// ParseRangeAddress resolves "A1:B2" or "Sheet2!A1:B2" to a concrete
// range, normalizing corner order.
func (e *Engine) ParseRangeAddress(address string) (RangeAddress, error) {
	sheet, rest, err := e.splitSheetQualifier(address)
	if err != nil {
		return RangeAddress{}, err
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return RangeAddress{}, NewAppError(InvalidArgument, "invalid range address %q", address)
	}
	startCol, startRow, err := parseAbsoluteCell(parts[0])
	if err != nil {
		return RangeAddress{}, err
	}
	endCol, endRow, err := parseAbsoluteCell(parts[1])
	if err != nil {
		return RangeAddress{}, err
	}
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}
	return RangeAddress{
		Sheet: sheet, StartRow: startRow, StartColumn: startCol,
		EndRow: endRow, EndColumn: endCol,
	}, nil
}

func (e *Engine) splitSheetQualifier(address string) (SheetID, string, error) {
	idx := strings.LastIndex(address, "!")
	if idx == -1 {
		if e.defaultSheet == 0 {
			return 0, "", NewAppError(FailedPrecondition, "engine has no sheets")
		}
		return e.defaultSheet, address, nil
	}
	name := address[:idx]
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") && len(name) >= 2 {
		name = name[1 : len(name)-1]
	}
	id, ok := e.graph.Sheets.IDByName(name)
	if !ok {
		return 0, "", NewAppError(NotFound, "sheet %q not found", name)
	}
	return id, address[idx+1:], nil
}

// parseAbsoluteCell parses a bare cell string, ignoring $ anchors, into
// 0-based column and row coordinates.
func parseAbsoluteCell(cell string) (col, row uint32, err error) {
	s := strings.TrimSpace(cell)
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}
	letterStart := i
	for i < len(s) && isAlphaASCII(s[i]) {
		i++
	}
	if i == letterStart {
		return 0, 0, NewAppError(InvalidArgument, "invalid cell address %q", cell)
	}
	letters := s[letterStart:i]
	if i < len(s) && s[i] == '$' {
		i++
	}
	digitStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i != len(s) || i == digitStart {
		return 0, 0, NewAppError(InvalidArgument, "invalid cell address %q", cell)
	}
	rowNum, convErr := strconv.ParseUint(s[digitStart:], 10, 32)
	if convErr != nil || rowNum < 1 {
		return 0, 0, NewAppError(InvalidArgument, "invalid row in cell address %q", cell)
	}
	return columnLettersToIndex(letters), uint32(rowNum - 1), nil
}

// FormatCellAddress renders an address back to "Sheet!A1" form.
func (e *Engine) FormatCellAddress(addr CellAddress) string {
	name, _ := e.graph.Sheets.NameByID(addr.Sheet)
	return fmt.Sprintf("%s!%s%d", name, columnIndexToLetters(addr.Column), addr.Row+1)
}

func columnIndexToLetters(col uint32) string {
	var letters []byte
	n := int64(col)
	for {
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return string(letters)
}
