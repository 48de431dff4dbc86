package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

var redirectSiteModes = []m.RedirectMode{
	m.RedirectModeLambda,
	m.RedirectModeGlobalsGet,
	m.RedirectModeDictGet,
	m.RedirectModeItemGetter,
}

// redirectTarget is one top-level definition eligible for redirection.
type redirectTarget struct {
	index  int
	kind   m.RedirectKind
	symbol string
}

// RewriteRedirect routes top-level symbol loads through per-kind resolver
// tables. It runs after renaming, so table keys are the final spellings.
// With redirect-all every eligible symbol is redirected and the rate and cap
// are ignored entirely; otherwise selection is seeded sampling at the rate,
// capped at the configured maximum.
func RewriteRedirect(module *m.Module, ctx *Ctx, newName func() (string, error)) (int, error) {
	policy := ctx.Cfg.Redirect

	var selected []redirectTarget

	for i, stmt := range module.Body {
		target, ok := eligibleRedirect(i, stmt, policy)
		if !ok {
			continue
		}

		if !policy.All {
			if !ctx.hit(policy.Rate) {
				continue
			}

			if len(selected) >= policy.Max {
				break
			}
		}

		selected = append(selected, target)
	}

	if len(selected) == 0 {
		return 0, nil
	}

	// One table per kind, keyed by the redirected symbols of that kind.
	tables := make(map[m.RedirectKind]string)
	symbolKind := make(map[string]m.RedirectKind)
	insertAt := 0

	var tableStmts []m.Stmt

	for _, kind := range m.RedirectKinds {
		var keys []m.Expr

		var values []m.Expr

		for _, target := range selected {
			if target.kind != kind {
				continue
			}

			value := m.Expr(loadName(target.symbol))
			if kind == m.RedirectVariable {
				// A direct reference would freeze the value at table build
				// time; a thunk reads the live global on every use.
				value = &m.Lambda{Body: loadName(target.symbol)}
			}

			keys = append(keys, &m.Str{Value: target.symbol})
			values = append(values, value)
			symbolKind[target.symbol] = kind

			if target.index+1 > insertAt {
				insertAt = target.index + 1
			}
		}

		if len(keys) == 0 {
			continue
		}

		name, err := newName()
		if err != nil {
			return 0, err
		}

		tables[kind] = name
		tableStmts = append(tableStmts, &m.Assign{
			Targets: []m.Expr{&m.Name{ID: name, Ctx: m.CtxStore}},
			Value:   &m.Dict{Keys: keys, Values: values},
		})
	}

	rewrite := func(stmt m.Stmt) {
		m.Rewrite(stmt, func(node m.Node) m.Node {
			name, ok := node.(*m.Name)
			if !ok || name.Ctx != m.CtxLoad {
				return node
			}

			kind, ok := symbolKind[name.ID]
			if !ok {
				return node
			}

			return redirectSiteExpr(name.ID, tables[kind], kind, policy.Modes[kind], ctx)
		})
	}

	// Top-level statements before the tables exist still run the original
	// names; everything after, and every deferred body, goes through them.
	// Class bodies execute at definition time, so before the tables only
	// their method bodies are deferred enough to rewrite.
	for i, stmt := range module.Body {
		if i < insertAt {
			switch def := stmt.(type) {
			case *m.FunctionDef:
				for _, inner := range def.Body {
					rewrite(inner)
				}
			case *m.ClassDef:
				for _, inner := range def.Body {
					if method, ok := inner.(*m.FunctionDef); ok {
						for _, body := range method.Body {
							rewrite(body)
						}
					}
				}
			}

			continue
		}

		rewrite(stmt)
	}

	module.Body = append(module.Body[:insertAt], append(tableStmts, module.Body[insertAt:]...)...)

	return len(selected), nil
}

func eligibleRedirect(index int, stmt m.Stmt, policy m.RedirectPolicy) (redirectTarget, bool) {
	switch node := stmt.(type) {
	case *m.ClassDef:
		if policy.Kinds[m.RedirectClass] {
			return redirectTarget{index: index, kind: m.RedirectClass, symbol: node.Name}, true
		}
	case *m.FunctionDef:
		if policy.Kinds[m.RedirectFunction] {
			return redirectTarget{index: index, kind: m.RedirectFunction, symbol: node.Name}, true
		}
	case *m.Assign:
		if !policy.Kinds[m.RedirectVariable] || len(node.Targets) != 1 {
			break
		}

		if name, ok := node.Targets[0].(*m.Name); ok {
			return redirectTarget{index: index, kind: m.RedirectVariable, symbol: name.ID}, true
		}
	}

	return redirectTarget{}, false
}

// redirectSiteExpr builds one rewritten use site. Variable entries are
// thunks, so their lookups gain an extra call to unwrap the live value.
func redirectSiteExpr(symbol, table string, kind m.RedirectKind, mode m.RedirectMode, ctx *Ctx) m.Expr {
	if mode == m.RedirectModeMixed || mode == "" {
		mode = pick(ctx.Rng, redirectSiteModes)
	}

	// The global namespace is live by itself; no table, no thunk.
	if mode == m.RedirectModeGlobalsGet {
		return &m.Subscript{
			Value: &m.Call{Func: loadName("globals")},
			Index: &m.Str{Value: symbol},
			Ctx:   m.CtxLoad,
		}
	}

	entry := &m.Subscript{
		Value: loadName(table),
		Index: &m.Str{Value: symbol},
		Ctx:   m.CtxLoad,
	}

	var expr m.Expr

	switch mode {
	case m.RedirectModeLambda:
		expr = &m.Call{Func: &m.Lambda{Body: entry}}
	case m.RedirectModeItemGetter:
		getter := &m.Call{
			Func: &m.Attribute{Value: importModule("operator"), Attr: "itemgetter", Ctx: m.CtxLoad},
			Args: []m.Expr{&m.Str{Value: symbol}},
		}

		expr = &m.Call{Func: getter, Args: []m.Expr{loadName(table)}}
	default:
		expr = entry
	}

	if kind == m.RedirectVariable {
		expr = &m.Call{Func: expr}
	}

	return expr
}
