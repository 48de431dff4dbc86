package passes

import (
	"fmt"

	m "veil.dev/pkg/veil/internal/model"
)

// InjectJunk adds decoy functions to the module body per the configured
// count and position. Names avoid everything already present.
func InjectJunk(module *m.Module, ctx *Ctx) int {
	if ctx.Cfg.Junk <= 0 {
		return 0
	}

	used := make(map[string]bool)

	m.Walk(module, func(node m.Node) bool {
		switch n := node.(type) {
		case *m.Name:
			used[n.ID] = true
		case *m.FunctionDef:
			used[n.Name] = true
		case *m.ClassDef:
			used[n.Name] = true
		}

		return true
	})

	inserted := 0

	for i := 0; i < ctx.Cfg.Junk; i++ {
		base := fmt.Sprintf("_junk_%x", i)

		name := base
		for suffix := 1; used[name]; suffix++ {
			name = fmt.Sprintf("%s_%x", base, suffix)
		}

		used[name] = true
		fn := junkFunction(name, ctx)

		switch ctx.Cfg.JunkPosition {
		case "bottom":
			module.Body = append(module.Body, fn)
		case "random":
			start := docstringIndex(module.Body)
			at := intBetween(ctx.Rng, start, len(module.Body))
			module.Body = append(module.Body[:at], append([]m.Stmt{m.Stmt(fn)}, module.Body[at:]...)...)
		default:
			InsertAfterDocstring(module, fn)
		}

		inserted++
	}

	return inserted
}

// junkFunction builds a plausible-looking no-op:
//
//	def NAME(x=SEED):
//	    y = ((x ^ 1337) + 97) - 97
//	    if y == -1:
//	        return y
//	    return y ^ 0
func junkFunction(name string, ctx *Ctx) *m.FunctionDef {
	seed := int64(intBetween(ctx.Rng, 100, 9999))

	y := func(c m.NameCtx) *m.Name { return &m.Name{ID: "y", Ctx: c} }

	return &m.FunctionDef{
		Name:   name,
		Params: []m.Param{{Name: "x", Default: &m.Int{Value: seed}}},
		Body: []m.Stmt{
			&m.Assign{
				Targets: []m.Expr{y(m.CtxStore)},
				Value: &m.BinOp{
					Left: &m.BinOp{
						Left: &m.BinOp{
							Left:  loadName("x"),
							Op:    m.OpBitXor,
							Right: &m.Int{Value: 1337},
						},
						Op:    m.OpAdd,
						Right: &m.Int{Value: 97},
					},
					Op:    m.OpSub,
					Right: &m.Int{Value: 97},
				},
			},
			&m.If{
				Test: &m.Compare{
					Left:        y(m.CtxLoad),
					Ops:         []m.CmpOpKind{m.OpEq},
					Comparators: []m.Expr{&m.UnaryOp{Op: m.OpUSub, Operand: &m.Int{Value: 1}}},
				},
				Body: []m.Stmt{&m.Return{Value: y(m.CtxLoad)}},
			},
			&m.Return{Value: &m.BinOp{
				Left:  y(m.CtxLoad),
				Op:    m.OpBitXor,
				Right: &m.Int{Value: 0},
			}},
		},
	}
}
