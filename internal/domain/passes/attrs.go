package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

var attrNameStyles = []string{"plain", "join", "chr"}

// RewriteAttrs redirects attribute loads through a dynamic lookup picked
// from the resolved attr pool. Store and delete contexts are left for the
// setattr pass; dunder and preserved attribute names stay direct.
func RewriteAttrs(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		attr, ok := node.(*m.Attribute)
		if !ok || attr.Ctx != m.CtxLoad {
			return node
		}

		if ctx.Cfg.PreserveAttrs[attr.Attr] || m.IsDunder(attr.Attr) {
			return node
		}

		if !ctx.hit(ctx.Cfg.Rate(m.FeatureAttrs)) {
			return node
		}

		changed++

		return attrLoadExpr(attr.Value, attr.Attr, ctx)
	})

	return changed
}

// attrNameExpr disguises the attribute name itself: verbatim, a join of
// single characters, or a join of chr() calls.
func attrNameExpr(attr string, ctx *Ctx) m.Expr {
	style := pick(ctx.Rng, attrNameStyles)

	join := func(arg m.Expr) m.Expr {
		return &m.Call{
			Func: &m.Attribute{Value: &m.Str{Value: ""}, Attr: "join", Ctx: m.CtxLoad},
			Args: []m.Expr{arg},
		}
	}

	switch {
	case style == "join" && len(attr) > 1:
		chars := make([]m.Expr, 0, len(attr))
		for _, r := range attr {
			chars = append(chars, &m.Str{Value: string(r)})
		}

		return join(&m.Tuple{Elts: chars, Ctx: m.CtxLoad})
	case style == "chr":
		ords := make([]int64, 0, len(attr))
		for _, r := range attr {
			ords = append(ords, int64(r))
		}

		return join(&m.Call{
			Func: loadName("map"),
			Args: []m.Expr{loadName("chr"), intTuple(ords)},
		})
	default:
		return &m.Str{Value: attr}
	}
}

func attrLoadExpr(obj m.Expr, attr string, ctx *Ctx) m.Expr {
	method := pickAttrMethod(ctx)
	nameExpr := attrNameExpr(attr, ctx)

	switch method {
	case m.MethodBuiltinsGetattr:
		return &m.Call{
			Func: &m.Attribute{Value: importModule("builtins"), Attr: "getattr", Ctx: m.CtxLoad},
			Args: []m.Expr{obj, nameExpr},
		}
	case m.MethodOperatorAttrGet:
		getter := &m.Call{
			Func: &m.Attribute{Value: importModule("operator"), Attr: "attrgetter", Ctx: m.CtxLoad},
			Args: []m.Expr{nameExpr},
		}

		return &m.Call{Func: getter, Args: []m.Expr{obj}}
	case m.MethodLambdaGetattr:
		lam := &m.Lambda{
			Params: []string{"_o", "_n"},
			Body: &m.Call{
				Func: loadName("getattr"),
				Args: []m.Expr{loadName("_o"), loadName("_n")},
			},
		}

		return &m.Call{Func: lam, Args: []m.Expr{obj, nameExpr}}
	case m.MethodGlobalsGetattr:
		lookup := &m.Call{
			Func: &m.Attribute{
				Value: &m.Call{Func: loadName("globals")},
				Attr:  "get",
				Ctx:   m.CtxLoad,
			},
			Args: []m.Expr{&m.Str{Value: "getattr"}, loadName("getattr")},
		}

		return &m.Call{Func: lookup, Args: []m.Expr{obj, nameExpr}}
	case m.MethodLocalsGetattr:
		// locals().get("getattr") or getattr: the left side is always None
		// at function scope, so the builtin wins.
		lookup := &m.Call{
			Func: &m.Attribute{
				Value: &m.Call{Func: loadName("locals")},
				Attr:  "get",
				Ctx:   m.CtxLoad,
			},
			Args: []m.Expr{&m.Str{Value: "getattr"}},
		}

		return &m.Call{
			Func: &m.BoolOp{Op: m.OpOr, Values: []m.Expr{lookup, loadName("getattr")}},
			Args: []m.Expr{obj, nameExpr},
		}
	default:
		return &m.Call{Func: loadName("getattr"), Args: []m.Expr{obj, nameExpr}}
	}
}

func pickAttrMethod(ctx *Ctx) m.DynamicMethod {
	pool := ctx.Cfg.Pool(m.FamilyAttr)
	if len(pool) == 0 {
		return m.MethodGetattr
	}

	return pick(ctx.Rng, pool)
}
