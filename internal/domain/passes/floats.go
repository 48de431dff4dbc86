package passes

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	m "veil.dev/pkg/veil/internal/model"
)

var floatModes = []string{"hex", "struct"}

// RewriteFloats replaces finite float literals with bit-exact
// reconstructions. NaN and the infinities stay untouched: their literal
// forms do not round-trip.
func RewriteFloats(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		lit, ok := node.(*m.Float)
		if !ok || math.IsNaN(lit.Value) || math.IsInf(lit.Value, 0) {
			return node
		}

		mode := ctx.Cfg.Mode(m.FeatureFloats)
		if mode == "mixed" {
			mode = pick(ctx.Rng, floatModes)
		}

		changed++

		if mode == "struct" {
			return structUnpackExpr(lit.Value)
		}

		return fromHexExpr(lit.Value)
	})

	return changed
}

// fromHexExpr builds float.fromhex("0x1.8p+01").
func fromHexExpr(value float64) m.Expr {
	return &m.Call{
		Func: &m.Attribute{Value: loadName("float"), Attr: "fromhex", Ctx: m.CtxLoad},
		Args: []m.Expr{&m.Str{Value: strconv.FormatFloat(value, 'x', -1, 64)}},
	}
}

// structUnpackExpr builds __import__("struct").unpack("!d", bytes.fromhex(H))[0].
func structUnpackExpr(value float64) m.Expr {
	var raw [8]byte

	binary.BigEndian.PutUint64(raw[:], math.Float64bits(value))

	unpack := &m.Call{
		Func: &m.Attribute{Value: importModule("struct"), Attr: "unpack", Ctx: m.CtxLoad},
		Args: []m.Expr{
			&m.Str{Value: "!d"},
			&m.Call{
				Func: &m.Attribute{Value: loadName("bytes"), Attr: "fromhex", Ctx: m.CtxLoad},
				Args: []m.Expr{&m.Str{Value: hex.EncodeToString(raw[:])}},
			},
		},
	}

	return &m.Subscript{Value: unpack, Index: &m.Int{Value: 0}, Ctx: m.CtxLoad}
}
