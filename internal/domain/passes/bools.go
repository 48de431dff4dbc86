package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

var boolModes = []string{"compare", "xor"}

// RewriteBools replaces True/False literals with expressions evaluating to
// the same truth value (and, for the compare form, the same bool type).
func RewriteBools(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		lit, ok := node.(*m.Bool)
		if !ok {
			return node
		}

		mode := ctx.Cfg.Mode(m.FeatureBools)
		if mode == "mixed" {
			mode = pick(ctx.Rng, boolModes)
		}

		changed++

		if mode == "xor" {
			left := int64(intBetween(ctx.Rng, 10, 10000))

			right := left
			if lit.Value {
				right = left ^ 1
			}

			return &m.Call{
				Func: loadName("bool"),
				Args: []m.Expr{&m.BinOp{
					Left:  &m.Int{Value: left},
					Op:    m.OpBitXor,
					Right: &m.Int{Value: right},
				}},
			}
		}

		a := int64(intBetween(ctx.Rng, 10, 9999))

		b := a
		if !lit.Value {
			b = a + int64(intBetween(ctx.Rng, 1, 100))
		}

		return &m.Compare{
			Left:        &m.Int{Value: a},
			Ops:         []m.CmpOpKind{m.OpEq},
			Comparators: []m.Expr{&m.Int{Value: b}},
		}
	})

	return changed
}
