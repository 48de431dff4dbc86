package passes

import (
	"math"
	"math/rand"

	m "veil.dev/pkg/veil/internal/model"
)

var intModes = []string{"xor", "arith", "split"}

// RewriteInts replaces integer literals with equivalent arithmetic. The
// emitted expression is evaluated with unbounded integers at runtime, so the
// arith and split shapes fall back to xor near the int64 boundaries, where
// their intermediate constants would not fit.
func RewriteInts(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		lit, ok := node.(*m.Int)
		if !ok {
			return node
		}

		mode := ctx.Cfg.Mode(m.FeatureInts)
		if mode == "mixed" {
			mode = pick(ctx.Rng, intModes)
		}

		changed++

		value := lit.Value

		switch mode {
		case "xor":
			return xorIntExpr(ctx.Rng, value)
		case "arith":
			key := int64(intBetween(ctx.Rng, 1, 1000))
			if value > math.MaxInt64-key {
				return xorIntExpr(ctx.Rng, value)
			}

			return &m.BinOp{
				Left: &m.BinOp{
					Left:  &m.Int{Value: value + key},
					Op:    m.OpSub,
					Right: &m.Int{Value: key},
				},
				Op:    m.OpAdd,
				Right: &m.Int{Value: 0},
			}
		default:
			pivot := int64(intBetween(ctx.Rng, -5000, 5000))
			if (pivot > 0 && value < math.MinInt64+pivot) ||
				(pivot < 0 && value > math.MaxInt64+pivot) {
				return xorIntExpr(ctx.Rng, value)
			}

			return &m.BinOp{
				Left:  &m.Int{Value: pivot},
				Op:    m.OpAdd,
				Right: &m.Int{Value: value - pivot},
			}
		}
	})

	return changed
}

// xorIntExpr disguises value as a xor pair. Exact for every int64.
func xorIntExpr(rng *rand.Rand, value int64) m.Expr {
	key := int64(intBetween(rng, 1, 1<<15))

	return &m.BinOp{
		Left:  &m.Int{Value: value ^ key},
		Op:    m.OpBitXor,
		Right: &m.Int{Value: key},
	}
}
