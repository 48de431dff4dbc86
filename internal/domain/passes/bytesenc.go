package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

var (
	bytesModes     = []string{"xor", "list", "split"}
	bytesLeafModes = []string{"xor", "list"}
)

// RewriteBytes replaces bytes literals with reconstructing expressions.
func RewriteBytes(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		lit, ok := node.(*m.Bytes)
		if !ok {
			return node
		}

		mode := ctx.Cfg.Mode(m.FeatureBytes)
		if mode == "mixed" {
			mode = pick(ctx.Rng, bytesModes)
		}

		changed++

		if mode == "split" {
			return splitBytesExpr(lit.Value, ctx)
		}

		return bytesLeafExpr(lit.Value, mode, ctx)
	})

	return changed
}

func bytesLeafExpr(data []byte, mode string, ctx *Ctx) m.Expr {
	if mode == "list" {
		values := make([]int64, len(data))
		for i, b := range data {
			values[i] = int64(b)
		}

		return &m.Call{Func: loadName("bytes"), Args: []m.Expr{intTuple(values)}}
	}

	key := int64(intBetween(ctx.Rng, 1, 255))

	encoded := make([]int64, len(data))
	for i, b := range data {
		encoded[i] = int64(b) ^ key
	}

	// bytes(map(lambda _b: _b ^ key, (...)))
	decoder := &m.Lambda{
		Params: []string{"_b"},
		Body: &m.BinOp{
			Left:  loadName("_b"),
			Op:    m.OpBitXor,
			Right: &m.Int{Value: key},
		},
	}

	return &m.Call{
		Func: loadName("bytes"),
		Args: []m.Expr{&m.Call{
			Func: loadName("map"),
			Args: []m.Expr{decoder, intTuple(encoded)},
		}},
	}
}

func splitBytesExpr(data []byte, ctx *Ctx) m.Expr {
	if len(data) <= 1 {
		return bytesLeafExpr(data, "xor", ctx)
	}

	var pieces [][]byte

	idx := 0
	for idx < len(data) {
		hi := len(data) - idx
		if hi > 6 {
			hi = 6
		}

		step := intBetween(ctx.Rng, 1, hi)
		pieces = append(pieces, data[idx:idx+step])
		idx += step
	}

	if len(pieces) == 1 {
		return bytesLeafExpr(pieces[0], "xor", ctx)
	}

	exprs := make([]m.Expr, len(pieces))
	for i, piece := range pieces {
		exprs[i] = bytesLeafExpr(piece, pick(ctx.Rng, bytesLeafModes), ctx)
	}

	return addChain(exprs)
}
