// Package formula parses index formulas and lowers them onto the deferred
// graph. The grammar is deliberately small: + - * / **, unary minus,
// parentheses, identifiers and numbers. There are no function calls or
// comparisons, so every formula is a single per-pixel expression.
package formula

import (
	"errors"
	"fmt"
	"sort"
)

var ErrSyntax = errors.New("formula syntax error")

type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula: %s at offset %d", e.Msg, e.Pos)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

type nodeKind int

const (
	kindNum nodeKind = iota
	kindVar
	kindNeg
	kindBinary
)

type expr struct {
	kind  nodeKind
	num   float64
	name  string
	op    tokenKind
	left  *expr
	right *expr
}

// Expr is a parsed formula.
type Expr struct {
	src  string
	root *expr
}

func (e *Expr) String() string { return e.src }

// Vars returns the distinct identifiers in the formula, sorted.
func (e *Expr) Vars() []string {
	seen := map[string]struct{}{}
	var walk func(*expr)
	walk = func(n *expr) {
		if n == nil {
			return
		}
		if n.kind == kindVar {
			seen[n.name] = struct{}{}
		}
		walk(n.left)
		walk(n.right)
	}
	walk(e.root)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func Parse(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s", t.kind)}
	}
	return &Expr{src: src, root: root}, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// sum := product (('+'|'-') product)*
func (p *parser) parseSum() (*expr, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().kind
		if k != tokPlus && k != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &expr{kind: kindBinary, op: k, left: left, right: right}
	}
}

// product := unary (('*'|'/') unary)*
func (p *parser) parseProduct() (*expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().kind
		if k != tokStar && k != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &expr{kind: kindBinary, op: k, left: left, right: right}
	}
}

// unary := ('-'|'+') unary | power
func (p *parser) parseUnary() (*expr, error) {
	switch p.peek().kind {
	case tokMinus:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &expr{kind: kindNeg, left: operand}, nil
	case tokPlus:
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

// power := primary ('**' unary)?   (right-associative, binds tighter than unary minus on its left)
func (p *parser) parsePower() (*expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokPow {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &expr{kind: kindBinary, op: tokPow, left: base, right: exp}, nil
}

func (p *parser) parsePrimary() (*expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &expr{kind: kindNum, num: t.num}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("function call %q is not supported", t.text)}
		}
		return &expr{kind: kindVar, name: t.text}, nil
	case tokLParen:
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{Pos: c.pos, Msg: fmt.Sprintf("expected ')' but found %s", c.kind)}
		}
		return inner, nil
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s", t.kind)}
}
