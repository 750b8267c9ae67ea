package spectral

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mohammed-shakir/band-algebra/internal/formula"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

type KernelType string

const (
	KernelLinear KernelType = "linear"
	KernelRBF    KernelType = "RBF"
	KernelPoly   KernelType = "poly"
)

const DefaultSigma = "0.5 * (a + b)"

var ErrInvalidKernelParameter = errors.New("invalid kernel parameter")

type KernelParameterError struct {
	Param string
	Value string
	Msg   string
}

func (e *KernelParameterError) Error() string {
	return fmt.Sprintf("kernel parameter %s=%s: %s", e.Param, e.Value, e.Msg)
}

func (e *KernelParameterError) Is(target error) bool { return target == ErrInvalidKernelParameter }

// Sigma is either a number or a formula over the pair variables a and b.
type Sigma struct {
	Value *float64
	Expr  string
}

func SigmaValue(v float64) Sigma { return Sigma{Value: &v} }
func SigmaExpr(s string) Sigma   { return Sigma{Expr: s} }

func (s Sigma) IsZero() bool { return s.Value == nil && s.Expr == "" }

func (s Sigma) String() string {
	if s.Value != nil {
		return strconv.FormatFloat(*s.Value, 'g', -1, 64)
	}
	return s.Expr
}

// ParseSigma reads a number if it can, otherwise keeps s as an expression.
func ParseSigma(s string) Sigma {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return SigmaValue(v)
	}
	return SigmaExpr(s)
}

type KernelSpec struct {
	Type  KernelType
	Sigma Sigma
	P     *float64
	C     *float64
}

// WithDefaults fills unset fields: RBF, sigma "0.5 * (a + b)", p=2, c=1.
func (k KernelSpec) WithDefaults() KernelSpec {
	if k.Type == "" {
		k.Type = KernelRBF
	}
	if k.Sigma.IsZero() {
		k.Sigma = SigmaExpr(DefaultSigma)
	}
	if k.P == nil {
		p := 2.0
		k.P = &p
	}
	if k.C == nil {
		c := 1.0
		k.C = &c
	}
	return k
}

// ValidateKernel checks k without touching any image.
func ValidateKernel(k KernelSpec) error {
	k = k.WithDefaults()
	switch k.Type {
	case KernelLinear, KernelRBF, KernelPoly:
	default:
		return &KernelParameterError{Param: "kernel", Value: string(k.Type), Msg: "must be linear, RBF or poly"}
	}
	if k.Sigma.Value != nil {
		if v := *k.Sigma.Value; v < 0 || math.IsNaN(v) {
			return &KernelParameterError{Param: "sigma", Value: k.Sigma.String(), Msg: "must be >= 0"}
		}
	} else {
		e, err := formula.Parse(k.Sigma.Expr)
		if err != nil {
			return &KernelParameterError{Param: "sigma", Value: k.Sigma.Expr, Msg: err.Error()}
		}
		for _, v := range e.Vars() {
			if v != "a" && v != "b" {
				return &KernelParameterError{Param: "sigma", Value: k.Sigma.Expr, Msg: fmt.Sprintf("unknown variable %q, only a and b are allowed", v)}
			}
		}
	}
	if p := *k.P; p <= 0 || math.IsNaN(p) {
		return &KernelParameterError{Param: "p", Value: strconv.FormatFloat(p, 'g', -1, 64), Msg: "must be > 0"}
	}
	if c := *k.C; c < 0 || math.IsNaN(c) {
		return &KernelParameterError{Param: "c", Value: strconv.FormatFloat(c, 'g', -1, 64), Msg: "must be >= 0"}
	}
	return nil
}

// kernelPairs are the (a, b) code pairs kernel indices refer to as k<a><b>.
var kernelPairs = [][2]string{
	{"N", "N"}, {"N", "R"}, {"N", "B"}, {"N", "L"},
	{"G", "G"}, {"G", "R"}, {"G", "B"},
	{"B", "B"}, {"B", "R"}, {"B", "L"},
	{"R", "R"}, {"R", "B"}, {"R", "L"},
	{"L", "L"},
}

// KernelNames returns the kernel parameter names the generator can produce.
func KernelNames() []string {
	out := make([]string, len(kernelPairs))
	for i, p := range kernelPairs {
		out[i] = "k" + p[0] + p[1]
	}
	return out
}

// Kernel builds k(a, b) for an already validated spec.
func Kernel(a, b *graph.Node, k KernelSpec) (*graph.Node, error) {
	k = k.WithDefaults()
	switch k.Type {
	case KernelLinear:
		return graph.Binary(graph.OpMultiply, a, b), nil
	case KernelPoly:
		ab := graph.Binary(graph.OpMultiply, a, b)
		return graph.Binary(graph.OpPow, graph.Binary(graph.OpAdd, ab, graph.Const(*k.C)), graph.Const(*k.P)), nil
	}

	var sigma *graph.Node
	if k.Sigma.Value != nil {
		sigma = graph.Const(*k.Sigma.Value)
	} else {
		s, err := formula.Evaluate(k.Sigma.Expr, formula.Table{"a": a, "b": b})
		if err != nil {
			return nil, fmt.Errorf("spectral: sigma: %w", err)
		}
		sigma = s
	}
	// exp(-(a-b)^2 / (2*sigma^2))
	diff := graph.Binary(graph.OpSubtract, a, b)
	num := graph.Neg(graph.Binary(graph.OpPow, diff, graph.Const(2)))
	den := graph.Binary(graph.OpMultiply, graph.Const(2), graph.Binary(graph.OpPow, sigma, graph.Const(2)))
	return graph.Unary(graph.OpExp, graph.Binary(graph.OpDivide, num, den)), nil
}

// addKernelPairs extends vars with every k<a><b> whose inputs are defined.
// Pairs with a missing input are left out.
func addKernelPairs(vars formula.Table, k KernelSpec) error {
	for _, p := range kernelPairs {
		a, okA := vars[p[0]]
		b, okB := vars[p[1]]
		if !okA || !okB {
			continue
		}
		n, err := Kernel(a, b, k)
		if err != nil {
			return err
		}
		vars["k"+p[0]+p[1]] = n
	}
	return nil
}
