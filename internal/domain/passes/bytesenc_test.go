package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

// evalBytes reduces the expressions RewriteBytes emits back to raw bytes.
func evalBytes(t *testing.T, expr m.Expr) []byte {
	t.Helper()

	switch node := expr.(type) {
	case *m.BinOp:
		require.Equal(t, m.OpAdd, node.Op)
		return append(evalBytes(t, node.Left), evalBytes(t, node.Right)...)
	case *m.Call:
		require.Equal(t, "bytes", node.Func.(*m.Name).ID)
		require.Len(t, node.Args, 1)

		if tuple, ok := node.Args[0].(*m.Tuple); ok {
			out := make([]byte, len(tuple.Elts))
			for i, elt := range tuple.Elts {
				out[i] = byte(elt.(*m.Int).Value)
			}

			return out
		}

		mapped := node.Args[0].(*m.Call)
		require.Equal(t, "map", mapped.Func.(*m.Name).ID)

		decoder := mapped.Args[0].(*m.Lambda)
		key := decoder.Body.(*m.BinOp).Right.(*m.Int).Value

		tuple := mapped.Args[1].(*m.Tuple)

		out := make([]byte, len(tuple.Elts))
		for i, elt := range tuple.Elts {
			out[i] = byte(elt.(*m.Int).Value ^ key)
		}

		return out
	default:
		t.Fatalf("unexpected node %T", expr)
		return nil
	}
}

func TestRewriteBytes(t *testing.T) {
	values := [][]byte{
		{},
		{0x00},
		{0xff},
		{0x00, 0x7f, 0x80, 0xff},
		[]byte("hello world, this splits across chunks"),
	}

	bytesModule := func() *m.Module {
		stmts := make([]m.Stmt, len(values))
		for i, v := range values {
			stmts[i] = &m.ExprStmt{Value: &m.Bytes{Value: v}}
		}

		return &m.Module{Body: stmts}
	}

	for _, mode := range []string{"xor", "list", "split", "mixed"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testCfg()
			cfg.Modes[m.FeatureBytes] = mode

			module := bytesModule()

			changed := RewriteBytes(module, testCtx(7, cfg))
			assert.Equal(t, len(values), changed)

			for i, stmt := range module.Body {
				got := evalBytes(t, stmt.(*m.ExprStmt).Value)
				assert.Equal(t, values[i], append([]byte{}, got...))
			}
		})
	}

	t.Run("deterministic per seed", func(t *testing.T) {
		cfg := testCfg()
		cfg.Modes[m.FeatureBytes] = "mixed"

		first := bytesModule()
		RewriteBytes(first, testCtx(5, cfg))

		second := bytesModule()
		RewriteBytes(second, testCtx(5, cfg))

		assert.Equal(t, first, second)
	})
}
