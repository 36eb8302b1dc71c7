package plot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xraygui/nbs-viewer-sub001/internal/ndarray"
)

// TransformError reports a failure in a user-authored transform
// expression, either at parse time or during evaluation. It is distinct
// from data errors so callers can show it next to the input field instead
// of treating the run's data as broken.
type TransformError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %q at %d: %s", e.Expr, e.Pos, e.Msg)
}

// Env binds the symbols available to a transform expression: x (the list
// of x arrays, indexed x[0], x[1], ...), y (the post-normalization array),
// and norm (the raw normalization array; nil means the scalar 1).
type Env struct {
	X    []*ndarray.Array
	Y    *ndarray.Array
	Norm *ndarray.Array
}

// Transform is a parsed user expression over y, norm, and x[i]. The
// grammar is a fixed whitelist: numbers, the bound symbols, parentheses,
// unary minus, + - * /, and the calls mean, max, min, sum, and log.
// There is no general evaluator behind it.
type Transform struct {
	expr string
	root node
}

// ParseTransform compiles a transform expression. An empty expression
// yields a nil transform. Syntax errors come back as *TransformError.
func ParseTransform(expr string) (*Transform, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, nil
	}
	p := &parser{expr: expr, src: []rune(expr)}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errf("unexpected %q", string(p.src[p.pos]))
	}
	return &Transform{expr: expr, root: root}, nil
}

// Text returns the source expression.
func (t *Transform) Text() string { return t.expr }

// Eval runs the transform. A scalar result is expanded to y's shape so the
// caller always gets a plottable array. All failures, including shape
// mismatches inside the expression, surface as *TransformError.
func (t *Transform) Eval(env Env) (*ndarray.Array, error) {
	v, err := t.root.eval(t, env)
	if err != nil {
		return nil, err
	}
	if v.arr != nil {
		return v.arr, nil
	}
	out := env.Y.Clone()
	for i := range out.Data {
		out.Data[i] = v.num
	}
	return out, nil
}

func (t *Transform) errf(format string, args ...any) *TransformError {
	return &TransformError{Expr: t.expr, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

// value is a scalar or an array; arr == nil means scalar.
type value struct {
	arr *ndarray.Array
	num float64
}

type node interface {
	eval(t *Transform, env Env) (value, error)
}

type numNode float64

func (n numNode) eval(*Transform, Env) (value, error) {
	return value{num: float64(n)}, nil
}

type symNode string

func (s symNode) eval(t *Transform, env Env) (value, error) {
	switch s {
	case "y":
		return value{arr: env.Y}, nil
	case "norm":
		if env.Norm == nil {
			return value{num: 1}, nil
		}
		return value{arr: env.Norm}, nil
	}
	return value{}, t.errf("unknown symbol %q", string(s))
}

type indexNode int

func (ix indexNode) eval(t *Transform, env Env) (value, error) {
	if int(ix) < 0 || int(ix) >= len(env.X) {
		return value{}, t.errf("x[%d] out of range, %d x arrays bound", int(ix), len(env.X))
	}
	return value{arr: env.X[ix]}, nil
}

type negNode struct{ arg node }

func (n negNode) eval(t *Transform, env Env) (value, error) {
	v, err := n.arg.eval(t, env)
	if err != nil {
		return value{}, err
	}
	if v.arr != nil {
		return value{arr: v.arr.MulScalar(-1)}, nil
	}
	return value{num: -v.num}, nil
}

type binNode struct {
	op   rune
	l, r node
}

func (b binNode) eval(t *Transform, env Env) (value, error) {
	l, err := b.l.eval(t, env)
	if err != nil {
		return value{}, err
	}
	r, err := b.r.eval(t, env)
	if err != nil {
		return value{}, err
	}
	return t.apply(b.op, l, r)
}

type callNode struct {
	fn  string
	arg node
}

func (c callNode) eval(t *Transform, env Env) (value, error) {
	v, err := c.arg.eval(t, env)
	if err != nil {
		return value{}, err
	}
	if v.arr == nil {
		switch c.fn {
		case "mean", "max", "min", "sum":
			return v, nil
		case "log":
			return value{num: math.Log(v.num)}, nil
		}
		return value{}, t.errf("unknown function %q", c.fn)
	}
	switch c.fn {
	case "mean":
		return value{num: v.arr.MeanAll()}, nil
	case "max":
		return value{num: v.arr.MaxAll()}, nil
	case "min":
		return value{num: v.arr.MinAll()}, nil
	case "sum":
		return value{num: v.arr.SumAll()}, nil
	case "log":
		return value{arr: v.arr.Log()}, nil
	}
	return value{}, t.errf("unknown function %q", c.fn)
}

// apply evaluates a binary op over any scalar/array combination. Division
// of a higher-rank array by a lower-rank one broadcasts the way the
// normalization path does, by appending trailing singleton dims.
func (t *Transform) apply(op rune, l, r value) (value, error) {
	if l.arr == nil && r.arr == nil {
		switch op {
		case '+':
			return value{num: l.num + r.num}, nil
		case '-':
			return value{num: l.num - r.num}, nil
		case '*':
			return value{num: l.num * r.num}, nil
		case '/':
			return value{num: l.num / r.num}, nil
		}
	}
	if l.arr != nil && r.arr == nil {
		switch op {
		case '*':
			return value{arr: l.arr.MulScalar(r.num)}, nil
		case '/':
			return value{arr: l.arr.DivScalar(r.num)}, nil
		}
		return value{arr: mapScalar(l.arr, r.num, op, false)}, nil
	}
	if l.arr == nil {
		return value{arr: mapScalar(r.arr, l.num, op, true)}, nil
	}
	if op == '/' && r.arr.Rank() < l.arr.Rank() {
		out, err := ndarray.DivBroadcast(l.arr, r.arr)
		if err != nil {
			return value{}, t.errf("%v", err)
		}
		return value{arr: out}, nil
	}
	out, err := mapElems(l.arr, r.arr, op)
	if err != nil {
		return value{}, t.errf("%v", err)
	}
	return value{arr: out}, nil
}

func mapScalar(a *ndarray.Array, s float64, op rune, scalarLeft bool) *ndarray.Array {
	out := a.Clone()
	for i, v := range out.Data {
		l, r := v, s
		if scalarLeft {
			l, r = s, v
		}
		out.Data[i] = scalarOp(op, l, r)
	}
	return out
}

func mapElems(a, b *ndarray.Array, op rune) (*ndarray.Array, error) {
	if a.Size() != b.Size() {
		return nil, &ndarray.ShapeError{Op: string(op), A: a.Shape, B: b.Shape}
	}
	out := a.Clone()
	for i := range out.Data {
		out.Data[i] = scalarOp(op, a.Data[i], b.Data[i])
	}
	return out, nil
}

func scalarOp(op rune, l, r float64) float64 {
	switch op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	default:
		return l / r
	}
}

// parser is a recursive-descent parser over the whitelisted grammar.
type parser struct {
	expr string
	src  []rune
	pos  int
}

func (p *parser) errf(format string, args ...any) *TransformError {
	return &TransformError{Expr: p.expr, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() rune {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c rune) error {
	if p.peek() != c {
		return p.errf("expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '+' && c != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binNode{op: c, l: left, r: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '*' && c != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: c, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek() == '-' {
		p.pos++
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{arg: arg}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseIdent()
	case c == 0:
		return nil, p.errf("unexpected end of expression")
	}
	return nil, p.errf("unexpected %q", string(c))
}

func (p *parser) parseNumber() (node, error) {
	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.' || p.src[p.pos] == 'e' ||
		(p.pos > start && (p.src[p.pos] == '+' || p.src[p.pos] == '-') && p.src[p.pos-1] == 'e')) {
		p.pos++
	}
	f, err := strconv.ParseFloat(string(p.src[start:p.pos]), 64)
	if err != nil {
		return nil, p.errf("bad number %q", string(p.src[start:p.pos]))
	}
	return numNode(f), nil
}

func (p *parser) parseIdent() (node, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
		p.pos++
	}
	name := string(p.src[start:p.pos])

	switch p.peek() {
	case '[':
		if name != "x" {
			return nil, p.errf("only x is indexable, got %q", name)
		}
		p.pos++
		idxStart := p.pos
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
		idx, err := strconv.Atoi(string(p.src[idxStart:p.pos]))
		if err != nil {
			return nil, p.errf("bad index in x[...]")
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return indexNode(idx), nil
	case '(':
		switch name {
		case "mean", "max", "min", "sum", "log":
		default:
			return nil, p.errf("unknown function %q", name)
		}
		p.pos++
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return callNode{fn: name, arg: arg}, nil
	}

	switch name {
	case "y", "norm":
		return symNode(name), nil
	}
	return nil, p.errf("unknown symbol %q", name)
}

func isDigit(c rune) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c rune) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' }
func isIdent(c rune) bool      { return isIdentStart(c) || isDigit(c) }
