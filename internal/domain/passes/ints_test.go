package passes

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

// evalBig reduces the arithmetic shapes the literal passes emit, with
// unbounded integers, the way the emitted program evaluates them.
func evalBig(t *testing.T, expr m.Expr) *big.Int {
	t.Helper()

	switch node := expr.(type) {
	case *m.Int:
		return big.NewInt(node.Value)
	case *m.UnaryOp:
		require.Equal(t, m.OpUSub, node.Op)
		return new(big.Int).Neg(evalBig(t, node.Operand))
	case *m.BinOp:
		left := evalBig(t, node.Left)
		right := evalBig(t, node.Right)

		switch node.Op {
		case m.OpAdd:
			return new(big.Int).Add(left, right)
		case m.OpSub:
			return new(big.Int).Sub(left, right)
		case m.OpBitXor:
			return new(big.Int).Xor(left, right)
		default:
			t.Fatalf("unexpected operator %q", node.Op)
			return nil
		}
	default:
		t.Fatalf("unexpected node %T", expr)
		return nil
	}
}

func evalInt(t *testing.T, expr m.Expr) int64 {
	t.Helper()

	value := evalBig(t, expr)
	require.True(t, value.IsInt64(), "value %s exceeds int64", value)

	return value.Int64()
}

func TestRewriteInts(t *testing.T) {
	values := []int64{0, 1, -1, 42, -9000, 1 << 40, math.MaxInt64, math.MinInt64}

	intsModule := func() *m.Module {
		stmts := make([]m.Stmt, len(values))
		for i, v := range values {
			stmts[i] = &m.ExprStmt{Value: &m.Int{Value: v}}
		}

		return &m.Module{Body: stmts}
	}

	for _, mode := range []string{"xor", "arith", "split", "mixed"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testCfg()
			cfg.Modes[m.FeatureInts] = mode

			module := intsModule()

			changed := RewriteInts(module, testCtx(3, cfg))
			assert.Equal(t, len(values), changed)

			for i, stmt := range module.Body {
				expr := stmt.(*m.ExprStmt).Value
				assert.IsType(t, &m.BinOp{}, expr)
				assert.Equal(t, values[i], evalInt(t, expr))
			}
		})
	}

	t.Run("deterministic per seed", func(t *testing.T) {
		cfg := testCfg()
		cfg.Modes[m.FeatureInts] = "mixed"

		first := intsModule()
		RewriteInts(first, testCtx(11, cfg))

		second := intsModule()
		RewriteInts(second, testCtx(11, cfg))

		assert.Equal(t, first, second)
	})
}
