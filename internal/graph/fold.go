package graph

import (
	"encoding/json"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fold evaluates a subtree made only of constants and scalar operators.
// It reports false as soon as any band, collection or property reference is
// reached, so a true result never implies pixel access.
func Fold(n *Node) (float64, bool) {
	if n == nil {
		return 0, false
	}
	if v, ok := n.IsConst(); ok {
		return v, true
	}
	switch n.Op {
	case OpExp:
		if len(n.Args) != 1 {
			return 0, false
		}
		a, ok := Fold(n.Args[0])
		if !ok {
			return 0, false
		}
		return foldUnary(OpExp, a)
	case OpNot:
		if len(n.Args) != 1 {
			return 0, false
		}
		a, ok := Fold(n.Args[0])
		if !ok {
			return 0, false
		}
		return boolf(a == 0), true
	}
	if len(n.Args) != 2 {
		return 0, false
	}
	a, ok := Fold(n.Args[0])
	if !ok {
		return 0, false
	}
	b, ok := Fold(n.Args[1])
	if !ok {
		return 0, false
	}
	switch n.Op {
	case OpEq:
		return boolf(a == b), true
	case OpNeq:
		return boolf(a != b), true
	case OpLt:
		return boolf(a < b), true
	case OpLte:
		return boolf(a <= b), true
	case OpGt:
		return boolf(a > b), true
	case OpGte:
		return boolf(a >= b), true
	case OpAnd:
		return boolf(a != 0 && b != 0), true
	case OpOr:
		return boolf(a != 0 || b != 0), true
	case OpBitwiseAnd:
		return float64(int64(a) & int64(b)), true
	case OpRightShift:
		return float64(int64(a) >> uint(b)), true
	case OpDivide:
		if b == 0 {
			return math.NaN(), true
		}
	}
	return foldBinary(n.Op, a, b)
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Fingerprint hashes the canonical JSON encoding of n. encoding/json sorts
// map keys, so structurally equal graphs hash equally.
func Fingerprint(n *Node) uint64 {
	b, err := json.Marshal(n)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// Walk visits n and every descendant (args first, then body) in depth-first
// order. Returning false from fn stops descent below that node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, a := range n.Args {
		Walk(a, fn)
	}
	Walk(n.Body, fn)
}

// Contains reports whether any node in the tree has op.
func Contains(n *Node, op Op) bool {
	found := false
	Walk(n, func(c *Node) bool {
		if c.Op == op {
			found = true
		}
		return !found
	})
	return found
}
