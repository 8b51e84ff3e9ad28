package spreadsheet

// ASTKey is the canonical printed form of a parsed expression. two formulas
// with the same structure, ignoring whitespace and redundant parentheses,
// have the same key
type ASTKey string

// Formula is a parsed, immutable formula expression
type Formula struct {
	ast  ASTNode
	key  ASTKey
	refs []Address
}

// ParseFormula parses an expression, without the leading '='
func ParseFormula(expression string) (*Formula, error) {
	tokens, err := NewLexer(expression).Tokenize()
	if err != nil {
		return nil, err
	}
	ast, err := NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}

	seen := make(map[Address]struct{})
	ast.visitCells(func(addr Address) {
		if addr.Valid() {
			seen[addr] = struct{}{}
		}
	})

	return &Formula{
		ast:  ast,
		key:  ASTKey(ast.ToString()),
		refs: sortedAddresses(seen),
	}, nil
}

// Evaluate computes the formula. a *SpreadsheetError is returned for formula
// errors; anything else the resolver returns is passed through unchanged
func (f *Formula) Evaluate(resolve Resolver) (float64, error) {
	return f.ast.Eval(resolve)
}

// Expression returns the canonical text of the formula with only the
// parentheses needed to preserve its meaning
func (f *Formula) Expression() string {
	return string(f.key)
}

// ReferencedCells returns the valid cells the formula reads, sorted and
// without duplicates
func (f *Formula) ReferencedCells() []Address {
	refs := make([]Address, len(f.refs))
	copy(refs, f.refs)
	return refs
}

// FormulaTable shares parsed formulas between cells holding the same
// expression. entries are reference counted and dropped when unused
type FormulaTable struct {
	astIndex  map[ASTKey]*Formula
	refCounts map[ASTKey]int
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		astIndex:  make(map[ASTKey]*Formula),
		refCounts: make(map[ASTKey]int),
	}
}

// Intern returns the shared formula for f's expression, adding f if it is
// the first of its kind
func (ft *FormulaTable) Intern(f *Formula) *Formula {
	if existing, ok := ft.astIndex[f.key]; ok {
		ft.refCounts[f.key]++
		return existing
	}
	ft.astIndex[f.key] = f
	ft.refCounts[f.key] = 1
	return f
}

// Release drops one reference to f
func (ft *FormulaTable) Release(f *Formula) {
	count, ok := ft.refCounts[f.key]
	if !ok {
		return
	}
	if count <= 1 {
		delete(ft.refCounts, f.key)
		delete(ft.astIndex, f.key)
		return
	}
	ft.refCounts[f.key] = count - 1
}

// Len returns the number of distinct formulas held
func (ft *FormulaTable) Len() int {
	return len(ft.astIndex)
}
