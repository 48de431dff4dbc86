package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

var noneModes = []string{"lambda", "ifexpr"}

// RewriteNone replaces None literals with expressions producing None.
func RewriteNone(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		if _, ok := node.(*m.None); !ok {
			return node
		}

		mode := ctx.Cfg.Mode(m.FeatureNone)
		if mode == "mixed" {
			mode = pick(ctx.Rng, noneModes)
		}

		changed++

		if mode == "ifexpr" {
			a := int64(intBetween(ctx.Rng, 10, 999))
			b := a + int64(intBetween(ctx.Rng, 1, 20))

			// The test can never hold, so the else branch always yields None.
			return &m.IfExp{
				Test: &m.Compare{
					Left:        &m.Int{Value: a},
					Ops:         []m.CmpOpKind{m.OpEq},
					Comparators: []m.Expr{&m.Int{Value: b}},
				},
				Body:   &m.Int{Value: 0},
				OrElse: &m.None{},
			}
		}

		return &m.Call{Func: &m.Lambda{Body: &m.None{}}}
	})

	return changed
}
