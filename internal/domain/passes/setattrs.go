package passes

import (
	"strings"

	m "veil.dev/pkg/veil/internal/model"
)

// RewriteSetAttrs converts attribute assignments and deletions into
// setattr/delattr call statements. Only single-target assignments whose
// target is an attribute qualify; tuple targets and preserved or dunder
// attribute names stay direct.
func RewriteSetAttrs(module *m.Module, ctx *Ctx) int {
	changed := 0

	allowed := func(attr string) bool {
		return !ctx.Cfg.PreserveAttrs[attr] && !m.IsDunder(attr)
	}

	m.Rewrite(module, func(node m.Node) m.Node {
		switch stmt := node.(type) {
		case *m.Assign:
			if !ctx.hit(ctx.Cfg.Rate(m.FeatureSetAttrs)) {
				return node
			}

			if len(stmt.Targets) != 1 {
				return node
			}

			target, ok := stmt.Targets[0].(*m.Attribute)
			if !ok || !allowed(target.Attr) {
				return node
			}

			changed++

			return &m.ExprStmt{Value: setAttrExpr(target.Value, target.Attr, stmt.Value, ctx)}
		case *m.Delete:
			if !ctx.hit(ctx.Cfg.Rate(m.FeatureSetAttrs)) {
				return node
			}

			if len(stmt.Targets) == 0 {
				return node
			}

			for _, target := range stmt.Targets {
				attr, ok := target.(*m.Attribute)
				if !ok || !allowed(attr.Attr) {
					return node
				}
			}

			out := make([]m.Stmt, 0, len(stmt.Targets))

			for _, target := range stmt.Targets {
				attr := target.(*m.Attribute)
				changed++

				out = append(out, &m.ExprStmt{Value: delAttrExpr(attr.Value, attr.Attr, ctx)})
			}

			if len(out) == 1 {
				return out[0]
			}

			return &m.StmtSeq{Items: out}
		}

		return node
	})

	return changed
}

func setAttrExpr(obj m.Expr, attr string, value m.Expr, ctx *Ctx) m.Expr {
	switch pickPoolSuffix(ctx, m.FamilySetAttr, "setattr", m.MethodSetattr) {
	case m.MethodBuiltinsSetattr:
		return &m.Call{
			Func: &m.Attribute{Value: importModule("builtins"), Attr: "setattr", Ctx: m.CtxLoad},
			Args: []m.Expr{obj, &m.Str{Value: attr}, value},
		}
	case m.MethodLambdaSetattr:
		lam := &m.Lambda{
			Params: []string{"_o", "_n", "_v"},
			Body: &m.Call{
				Func: loadName("setattr"),
				Args: []m.Expr{loadName("_o"), loadName("_n"), loadName("_v")},
			},
		}

		return &m.Call{Func: lam, Args: []m.Expr{obj, &m.Str{Value: attr}, value}}
	default:
		return &m.Call{
			Func: loadName("setattr"),
			Args: []m.Expr{obj, &m.Str{Value: attr}, value},
		}
	}
}

func delAttrExpr(obj m.Expr, attr string, ctx *Ctx) m.Expr {
	switch pickPoolSuffix(ctx, m.FamilySetAttr, "delattr", m.MethodDelattr) {
	case m.MethodBuiltinsDelattr:
		return &m.Call{
			Func: &m.Attribute{Value: importModule("builtins"), Attr: "delattr", Ctx: m.CtxLoad},
			Args: []m.Expr{obj, &m.Str{Value: attr}},
		}
	case m.MethodLambdaDelattr:
		lam := &m.Lambda{
			Params: []string{"_o", "_n"},
			Body: &m.Call{
				Func: loadName("delattr"),
				Args: []m.Expr{loadName("_o"), loadName("_n")},
			},
		}

		return &m.Call{Func: lam, Args: []m.Expr{obj, &m.Str{Value: attr}}}
	default:
		return &m.Call{
			Func: loadName("delattr"),
			Args: []m.Expr{obj, &m.Str{Value: attr}},
		}
	}
}

// pickPoolSuffix draws from the family pool restricted to strategies whose
// name ends in suffix, falling back when the pool has none.
func pickPoolSuffix(ctx *Ctx, family m.MethodFamily, suffix string, fallback m.DynamicMethod) m.DynamicMethod {
	var choices []m.DynamicMethod

	for _, method := range ctx.Cfg.Pool(family) {
		if strings.HasSuffix(string(method), suffix) {
			choices = append(choices, method)
		}
	}

	if len(choices) == 0 {
		return fallback
	}

	return pick(ctx.Rng, choices)
}
