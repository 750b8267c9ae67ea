package formula

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

var ErrUndefinedVariable = errors.New("undefined formula variable")

type UndefinedVariableError struct {
	Name    string
	Formula string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("formula: variable %q is not defined (formula %q)", e.Name, e.Formula)
}

func (e *UndefinedVariableError) Is(target error) bool { return target == ErrUndefinedVariable }

// Table maps formula identifiers to band references or constants. A table is
// built per evaluation and owned by that evaluation.
type Table map[string]*graph.Node

// Has reports whether every name is defined.
func (t Table) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := t[n]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the names not defined in t, in input order.
func (t Table) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := t[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Lower builds the graph for e against vars.
func (e *Expr) Lower(vars Table) (*graph.Node, error) {
	return e.lower(e.root, vars)
}

func (e *Expr) lower(n *expr, vars Table) (*graph.Node, error) {
	switch n.kind {
	case kindNum:
		return graph.Const(n.num), nil
	case kindVar:
		v, ok := vars[n.name]
		if !ok || v == nil {
			return nil, &UndefinedVariableError{Name: n.name, Formula: e.src}
		}
		return v, nil
	case kindNeg:
		operand, err := e.lower(n.left, vars)
		if err != nil {
			return nil, err
		}
		return graph.Neg(operand), nil
	}

	left, err := e.lower(n.left, vars)
	if err != nil {
		return nil, err
	}
	right, err := e.lower(n.right, vars)
	if err != nil {
		return nil, err
	}
	var op graph.Op
	switch n.op {
	case tokPlus:
		op = graph.OpAdd
	case tokMinus:
		op = graph.OpSubtract
	case tokStar:
		op = graph.OpMultiply
	case tokSlash:
		op = graph.OpDivide
	case tokPow:
		op = graph.OpPow
	default:
		return nil, fmt.Errorf("formula: unknown operator %s", n.op)
	}
	return graph.Binary(op, left, right), nil
}

// Evaluate parses src and lowers it against vars.
func Evaluate(src string, vars Table) (*graph.Node, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Lower(vars)
}
