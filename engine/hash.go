package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// FormulaHash identifies the "shape" of a formula relative to its anchor
// cell: two formulas hash identically exactly when their templates are
// identical once every reference operand is rewritten into its
// anchor-relative canonical form. A fill-down column of "=A1+2", "=A2+2",
// "=A3+2" therefore shares one hash (every row's reference is "one row up"),
// while the same text "=A1+2" pasted at two different rows does not — the
// offsets differ, so the cached template cannot be shared.
type FormulaHash string

// TokenHash computes a formula's template hash by tokenizing it and
// building the canonical template string: whitespace dropped, function
// names and booleans uppercased, strings re-quoted in doubled-quote form,
// and every cell/range reference replaced by its anchor-relative
// placeholder. This is the precise mode — malformed input is reported.
func TokenHash(formula string, anchor CellAddress) (FormulaHash, error) {
	return tokenHashWithSeparator(formula, anchor, ',')
}

func tokenHashWithSeparator(formula string, anchor CellAddress, argSeparator rune) (FormulaHash, error) {
	lex := NewLexerWithSeparator(formula, argSeparator)
	tokens, err := lex.Tokenize()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, t := range tokens {
		switch t.Type {
		case TokenCell, TokenRange:
			sb.WriteString(encodeReferencePlaceholder(t.Value, anchor))
		case TokenString:
			writeCanonicalString(&sb, t.Value)
		default:
			sb.WriteString(t.Value)
		}
	}
	return hashTemplate(sb.String()), nil
}

// templatePattern drives RegexHash's single scanning pass: string literals
// first (so reference-looking text inside quotes is preserved verbatim,
// including a backslash-escaped or doubled closing quote that continues
// the literal), then function-call prefixes (an identifier directly
// followed by an opening parenthesis is a call, never a reference), then
// cell/range references with optional sheet qualification, then bare
// identifiers, then whitespace.
var templatePattern = regexp.MustCompile(
	`"(?:[^"\\]|\\.|"")*"` +
		`|[A-Za-z_][A-Za-z0-9_.]*\(` +
		`|(?:'[^']+'!|[A-Za-z_][A-Za-z0-9_]*!)?\$?[A-Za-z]+\$?[0-9]+(?::\$?[A-Za-z]+\$?[0-9]+)?` +
		`|[A-Za-z_][A-Za-z0-9_]*` +
		`|[ \t\r\n]+`)

// RegexHash computes the same template hash directly from raw formula text
// via one regex-driven substitution pass, skipping tokenization entirely.
// Cheaper than TokenHash under high formula volume, at the cost of being a
// textual approximation: it agrees with TokenHash on every well-formed
// formula, but unlike TokenHash it cannot notice malformed input, so
// callers needing validation must still tokenize.
func RegexHash(formula string, anchor CellAddress) FormulaHash {
	canonical := templatePattern.ReplaceAllStringFunc(formula, func(m string) string {
		switch {
		case m[0] == '"':
			var sb strings.Builder
			writeCanonicalString(&sb, unquoteStringLiteral(m))
			return sb.String()
		case m[len(m)-1] == '(':
			return toUpperASCII(m)
		case m[0] == ' ' || m[0] == '\t' || m[0] == '\r' || m[0] == '\n':
			return ""
		default:
			upper := toUpperASCII(m)
			if upper == "TRUE" || upper == "FALSE" {
				return upper
			}
			if isReferenceText(m) {
				return encodeReferencePlaceholder(m, anchor)
			}
			return m
		}
	})
	return hashTemplate(canonical)
}

func hashTemplate(canonical string) FormulaHash {
	sum := sha256.Sum256([]byte(canonical))
	return FormulaHash(hex.EncodeToString(sum[:]))
}

// writeCanonicalString emits a string literal in its canonical doubled-quote
// escape form, regardless of which escape spelling the source used.
func writeCanonicalString(sb *strings.Builder, content string) {
	sb.WriteByte('"')
	sb.WriteString(strings.ReplaceAll(content, `"`, `""`))
	sb.WriteByte('"')
}

// unquoteStringLiteral strips the surrounding quotes off a raw literal and
// resolves both escape spellings to the bare character.
func unquoteStringLiteral(raw string) string {
	body := raw[1 : len(raw)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\\' && i+1 < len(body) && body[i+1] == '"':
			sb.WriteByte('"')
			i++
		case body[i] == '"' && i+1 < len(body) && body[i+1] == '"':
			sb.WriteByte('"')
			i++
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String()
}

// isReferenceText reports whether s (possibly sheet-qualified, possibly a
// range) parses as a cell or range reference.
func isReferenceText(s string) bool {
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		s = s[idx+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !isCellRef(p) {
			return false
		}
	}
	return true
}

// encodeReferencePlaceholder rewrites one reference into its canonical
// anchor-relative form: a relative axis becomes its signed offset from the
// anchor, an absolute axis keeps its fixed coordinate behind a '$'. A sheet
// qualifier is preserved verbatim, since references to different sheets are
// never template-equivalent.
func encodeReferencePlaceholder(ref string, anchor CellAddress) string {
	prefix := ""
	rest := ref
	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		prefix = ref[:idx+1]
		rest = ref[idx+1:]
	}
	parts := strings.Split(rest, ":")
	encoded := make([]string, 0, len(parts))
	for _, p := range parts {
		corner, ok := encodeCorner(p, anchor)
		if !ok {
			return prefix + "@REF"
		}
		encoded = append(encoded, corner)
	}
	return prefix + strings.Join(encoded, ":")
}

func encodeCorner(cell string, anchor CellAddress) (string, bool) {
	i := 0
	colAbsolute := false
	if i < len(cell) && cell[i] == '$' {
		colAbsolute = true
		i++
	}
	letterStart := i
	for i < len(cell) && isAlphaASCII(cell[i]) {
		i++
	}
	if i == letterStart {
		return "", false
	}
	col := columnLettersToIndex(cell[letterStart:i])

	rowAbsolute := false
	if i < len(cell) && cell[i] == '$' {
		rowAbsolute = true
		i++
	}
	digitStart := i
	var row uint64
	for i < len(cell) && cell[i] >= '0' && cell[i] <= '9' {
		row = row*10 + uint64(cell[i]-'0')
		i++
	}
	if i != len(cell) || i == digitStart || row < 1 {
		return "", false
	}

	return encodeAxis(rowAbsolute, uint32(row-1), anchor.Row) + "R" +
		encodeAxis(colAbsolute, col, anchor.Column), true
}

func encodeAxis(absolute bool, coord, anchorCoord uint32) string {
	if absolute {
		return fmt.Sprintf("$%d", coord)
	}
	return fmt.Sprintf("%d", int64(coord)-int64(anchorCoord))
}
