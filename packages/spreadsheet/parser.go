package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// Resolver resolves an operand address to a number. a *SpreadsheetError
// return is a value-level outcome that the formula propagates; any other
// error aborts the evaluation.
type Resolver func(addr Address) (float64, error)

// ASTNode is a parsed formula expression. nodes are immutable once built
type ASTNode interface {
	Eval(resolve Resolver) (float64, error)
	GetPosition() NodePosition
	ToString() string

	precedence() exprPrecedence
	visitCells(fn func(Address))
}

// exprPrecedence orders node kinds for canonical printing
type exprPrecedence int

const (
	precAdd exprPrecedence = iota
	precSub
	precMul
	precDiv
	precUnary
	precAtom
	precCount
)

// parenRule says which operand of a parent needs parentheses for a given
// child precedence
type parenRule uint8

const (
	parenNone  parenRule = 0b00
	parenLeft  parenRule = 0b01
	parenRight parenRule = 0b10
	parenBoth  parenRule = 0b11
)

// precedenceRules is indexed [parent][child]
var precedenceRules = [precCount][precCount]parenRule{
	precAdd:   {parenNone, parenNone, parenNone, parenNone, parenNone, parenNone},
	precSub:   {parenRight, parenRight, parenNone, parenNone, parenNone, parenNone},
	precMul:   {parenBoth, parenBoth, parenNone, parenNone, parenNone, parenNone},
	precDiv:   {parenBoth, parenBoth, parenRight, parenRight, parenNone, parenNone},
	precUnary: {parenBoth, parenBoth, parenNone, parenNone, parenNone, parenNone},
	precAtom:  {parenNone, parenNone, parenNone, parenNone, parenNone, parenNone},
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(resolve Resolver) (float64, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return formatNumber(n.Value)
}

func (n *NumberNode) precedence() exprPrecedence { return precAtom }

func (n *NumberNode) visitCells(fn func(Address)) {}

// CellRefNode represents a reference to a single cell. Address is NoAddress
// when the reference was syntactically a cell but outside the grid, in which
// case Name keeps the text as written
type CellRefNode struct {
	Address  Address
	Name     string
	Position NodePosition
}

func (n *CellRefNode) Eval(resolve Resolver) (float64, error) {
	return resolve(n.Address)
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	if n.Address.Valid() {
		return n.Address.String()
	}
	return n.Name
}

func (n *CellRefNode) precedence() exprPrecedence { return precAtom }

func (n *CellRefNode) visitCells(fn func(Address)) {
	fn(n.Address)
}

// RangeNode represents a rectangular block of cells. it only appears as a
// direct argument of a function that accepts ranges
type RangeNode struct {
	Range    CellRange
	Name     string
	Position NodePosition
}

// Eval on a bare range is never reached through the parser; it is kept so a
// RangeNode satisfies ASTNode
func (n *RangeNode) Eval(resolve Resolver) (float64, error) {
	return 0, NewSpreadsheetError(ErrorCodeValue, "range used as a single value")
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	if n.Range.Valid() {
		return n.Range.String()
	}
	return n.Name
}

func (n *RangeNode) precedence() exprPrecedence { return precAtom }

func (n *RangeNode) visitCells(fn func(Address)) {
	if !n.Range.Valid() {
		return
	}
	for addr := range n.Range.Addresses() {
		fn(addr)
	}
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(resolve Resolver) (float64, error) {
	// operands are evaluated left to right and the first error wins
	leftNum, err := n.Left.Eval(resolve)
	if err != nil {
		return 0, err
	}
	rightNum, err := n.Right.Eval(resolve)
	if err != nil {
		return 0, err
	}

	var result float64
	switch n.Op {
	case BinOpAdd:
		result = leftNum + rightNum
	case BinOpSubtract:
		result = leftNum - rightNum
	case BinOpMultiply:
		result = leftNum * rightNum
	case BinOpDivide:
		if rightNum == 0 {
			return 0, NewSpreadsheetError(ErrorCodeDiv0, "Division by zero")
		}
		result = leftNum / rightNum
	default:
		return 0, NewSpreadsheetError(ErrorCodeValue, "Unknown operator")
	}
	return checkFinite(result)
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	rule := precedenceRules[n.precedence()]

	left := n.Left.ToString()
	if rule[n.Left.precedence()]&parenLeft != 0 {
		left = "(" + left + ")"
	}
	right := n.Right.ToString()
	if rule[n.Right.precedence()]&parenRight != 0 {
		right = "(" + right + ")"
	}
	return left + n.opString() + right
}

func (n *BinaryOpNode) opString() string {
	switch n.Op {
	case BinOpAdd:
		return "+"
	case BinOpSubtract:
		return "-"
	case BinOpMultiply:
		return "*"
	case BinOpDivide:
		return "/"
	}
	return "?"
}

func (n *BinaryOpNode) precedence() exprPrecedence {
	switch n.Op {
	case BinOpAdd:
		return precAdd
	case BinOpSubtract:
		return precSub
	case BinOpMultiply:
		return precMul
	default:
		return precDiv
	}
}

func (n *BinaryOpNode) visitCells(fn func(Address)) {
	n.Left.visitCells(fn)
	n.Right.visitCells(fn)
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(resolve Resolver) (float64, error) {
	num, err := n.Operand.Eval(resolve)
	if err != nil {
		return 0, err
	}
	if n.Op == UnaryOpMinus {
		return -num, nil
	}
	return num, nil
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	opStr := "+"
	if n.Op == UnaryOpMinus {
		opStr = "-"
	}
	operand := n.Operand.ToString()
	if precedenceRules[precUnary][n.Operand.precedence()] != parenNone {
		operand = "(" + operand + ")"
	}
	return opStr + operand
}

func (n *UnaryOpNode) precedence() exprPrecedence { return precUnary }

func (n *UnaryOpNode) visitCells(fn func(Address)) {
	n.Operand.visitCells(fn)
}

// FunctionCallNode represents a call to a built-in function
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
	fn       *builtinFunction
}

func (n *FunctionCallNode) Eval(resolve Resolver) (float64, error) {
	args := make([]float64, 0, len(n.Args))
	for _, argNode := range n.Args {
		if rangeNode, ok := argNode.(*RangeNode); ok {
			if !rangeNode.Range.Valid() {
				return 0, NewSpreadsheetError(ErrorCodeRef, "Invalid range reference")
			}
			for addr := range rangeNode.Range.Addresses() {
				num, err := resolve(addr)
				if err != nil {
					return 0, err
				}
				args = append(args, num)
			}
			continue
		}

		num, err := argNode.Eval(resolve)
		if err != nil {
			return 0, err
		}
		args = append(args, num)
	}

	result, err := n.fn.call(args)
	if err != nil {
		return 0, err
	}
	return checkFinite(result)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

func (n *FunctionCallNode) precedence() exprPrecedence { return precAtom }

func (n *FunctionCallNode) visitCells(fn func(Address)) {
	for _, arg := range n.Args {
		arg.visitCells(fn)
	}
}

// NewParser creates a new parser for the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
	}
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return nil, newSyntaxError(0, "empty expression")
	}

	node, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		tok := p.tokens[p.pos]
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("unexpected token after expression: %s", tok.Value))
	}

	return node, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, newSyntaxError(0, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePrimary()
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}

	p.pos++
	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}

	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePrimary handles literals, references, function calls and
// parenthesized expressions
func (p *Parser) parsePrimary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, newSyntaxError(0, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil || math.IsInf(val, 0) {
			return nil, newSyntaxError(tok.Pos, fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{
			Value:    val,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenCell:
		p.pos++
		return &CellRefNode{
			Address:  ParseAddress(tok.Value),
			Name:     tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenRange:
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("range %s can only be a function argument", tok.Value))

	case TokenIdentifier:
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("unknown name: %s", tok.Value))

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseAddition()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, newSyntaxError(tok.Pos, "expected closing parenthesis")
		}
		p.pos++

		return node, nil

	default:
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses a function call and checks it against the
// built-in function table
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.tokens[p.pos]
	fn, exists := builtinFunctions[funcTok.Value]
	if !exists {
		return nil, newSyntaxError(funcTok.Pos, fmt.Sprintf("unknown function: %s", funcTok.Value))
	}
	p.pos++

	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, newSyntaxError(funcTok.Pos, "expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}

	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseArgument(fn)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.pos >= len(p.tokens) {
				return nil, newSyntaxError(funcTok.Pos, "unexpected end in function arguments")
			}
			if p.tokens[p.pos].Type == TokenRightParen {
				p.pos++
				break
			}
			if p.tokens[p.pos].Type != TokenComma {
				return nil, newSyntaxError(p.tokens[p.pos].Pos, "expected ',' or ')' in function arguments")
			}
			p.pos++
		}
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, newSyntaxError(funcTok.Pos, fmt.Sprintf("%s: %s", funcTok.Value, fn.arityDescription()))
	}

	return &FunctionCallNode{
		Name:     funcTok.Value,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
		fn:       fn,
	}, nil
}

// parseArgument parses a single function argument. a range is accepted
// only as a whole argument of a function that takes ranges
func (p *Parser) parseArgument(fn *builtinFunction) (ASTNode, error) {
	tok := p.tokens[p.pos]
	if tok.Type != TokenRange {
		return p.parseAddition()
	}
	if !fn.acceptsRanges {
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("%s does not accept ranges", fn.name))
	}
	p.pos++
	return p.parseRange(tok)
}

// parseRange parses a range token into a RangeNode
func (p *Parser) parseRange(tok Token) (ASTNode, error) {
	parts := strings.Split(tok.Value, ":")
	if len(parts) != 2 {
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("invalid range format: %s", tok.Value))
	}

	cellRange := NewCellRange(ParseAddress(parts[0]), ParseAddress(parts[1]))
	if cellRange.Valid() && cellRange.Count() > MaxRangeCells {
		return nil, newSyntaxError(tok.Pos, fmt.Sprintf("range %s exceeds %d cells", tok.Value, MaxRangeCells))
	}

	return &RangeNode{
		Range:    cellRange,
		Name:     tok.Value,
		Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
	}, nil
}

// newSyntaxError reports a malformed formula as a structural failure
func newSyntaxError(pos int, message string) error {
	return NewApplicationError(InvalidArgument, fmt.Sprintf("formula syntax error at %d: %s", pos, message))
}

// checkFinite turns overflow and NaN results into an arithmetic error
func checkFinite(v float64) (float64, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, NewSpreadsheetError(ErrorCodeDiv0, "Arithmetic result is not finite")
	}
	return v, nil
}

// formatNumber renders a number without unnecessary decimals
func formatNumber(v float64) string {
	if v == 0 {
		v = 0 // no "-0"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
