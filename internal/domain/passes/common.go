// Package passes implements the tree rewrites of the obfuscation pipeline.
// Every pass mutates the module in place and reports how many sites it
// changed; decisions come from the supplied random stream so runs are
// reproducible from the seed alone.
package passes

import (
	"math/rand"

	m "veil.dev/pkg/veil/internal/model"
)

// Ctx bundles what a pass needs: the resolved configuration, the run's
// sequential random stream and the helper pool accessors.
type Ctx struct {
	Cfg *m.EffectiveConfig
	Rng *rand.Rand

	// StringHelper and CallHelper pick a helper name for one site.
	StringHelper func() string
	CallHelper   func() string

	// HelperNames marks identifiers that passes must never rewrite.
	HelperNames map[string]bool
}

// hit draws one sample against a rate. Rates clamp to [0, 1].
func (c *Ctx) hit(rate float64) bool {
	if rate >= 1.0 {
		return true
	}

	if rate <= 0.0 {
		return false
	}

	return c.Rng.Float64() <= rate
}

// intBetween returns a uniform value in [lo, hi], inclusive on both ends.
func intBetween(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}

	return lo + rng.Intn(hi-lo+1)
}

// pick chooses one option uniformly.
func pick[T any](rng *rand.Rand, options []T) T {
	return options[rng.Intn(len(options))]
}

// Docstrings returns the set of string literals sitting in docstring
// position: first statement of the module, a function body or a class body.
func Docstrings(module *m.Module) map[*m.Str]bool {
	out := make(map[*m.Str]bool)

	mark := func(body []m.Stmt) {
		if len(body) == 0 {
			return
		}

		if expr, ok := body[0].(*m.ExprStmt); ok {
			if str, ok := expr.Value.(*m.Str); ok {
				out[str] = true
			}
		}
	}

	mark(module.Body)

	m.Walk(module, func(node m.Node) bool {
		switch n := node.(type) {
		case *m.FunctionDef:
			mark(n.Body)
		case *m.ClassDef:
			mark(n.Body)
		}

		return true
	})

	return out
}

// docstringIndex returns the position after a leading docstring.
func docstringIndex(body []m.Stmt) int {
	if len(body) == 0 {
		return 0
	}

	if expr, ok := body[0].(*m.ExprStmt); ok {
		if _, ok := expr.Value.(*m.Str); ok {
			return 1
		}
	}

	return 0
}

// InsertAfterDocstring places stmt at the top of the module body, below a
// leading docstring when one exists.
func InsertAfterDocstring(module *m.Module, stmt m.Stmt) {
	at := docstringIndex(module.Body)
	module.Body = append(module.Body[:at], append([]m.Stmt{stmt}, module.Body[at:]...)...)
}

// loadName builds a Name in load context.
func loadName(id string) *m.Name {
	return &m.Name{ID: id, Ctx: m.CtxLoad}
}

// importModule builds __import__("name").
func importModule(name string) *m.Call {
	return &m.Call{
		Func: loadName("__import__"),
		Args: []m.Expr{&m.Str{Value: name}},
	}
}

// intTuple builds a load-context tuple of integer literals.
func intTuple(values []int64) *m.Tuple {
	elts := make([]m.Expr, len(values))
	for i, v := range values {
		elts[i] = &m.Int{Value: v}
	}

	return &m.Tuple{Elts: elts, Ctx: m.CtxLoad}
}

// addChain folds expressions left-to-right with +.
func addChain(exprs []m.Expr) m.Expr {
	out := exprs[0]
	for _, next := range exprs[1:] {
		out = &m.BinOp{Left: out, Op: m.OpAdd, Right: next}
	}

	return out
}
