package passes

import (
	"strings"

	m "veil.dev/pkg/veil/internal/model"
)

// RewriteImports converts module-level import statements into dynamic
// equivalents drawn from the import pool. Only plain imports at the top
// level qualify: from-imports and function-local imports bind differently
// and keep their shape. A dotted import without an asname binds the top
// package, which only the __import__ form reproduces, so such aliases are
// pinned to it.
func RewriteImports(module *m.Module, ctx *Ctx) int {
	changed := 0
	pool := ctx.Cfg.Pool(m.FamilyImport)

	var out []m.Stmt

	for _, stmt := range module.Body {
		imp, ok := stmt.(*m.Import)
		if !ok {
			out = append(out, stmt)
			continue
		}

		var kept []m.Alias

		for _, alias := range imp.Names {
			if !ctx.hit(ctx.Cfg.Rate(m.FeatureImports)) {
				kept = append(kept, alias)
				continue
			}

			method := m.MethodDunderImport
			if len(pool) > 0 {
				method = pick(ctx.Rng, pool)
			}

			if alias.AsName == "" && strings.Contains(alias.Name, ".") {
				method = m.MethodDunderImport
			}

			changed++

			out = append(out, dynamicImportStmt(alias, method))
		}

		if len(kept) > 0 {
			out = append(out, &m.Import{Names: kept})
		}
	}

	module.Body = out

	return changed
}

func dynamicImportStmt(alias m.Alias, method m.DynamicMethod) m.Stmt {
	binding := aliasBinding(alias)

	target := alias.Name
	if alias.AsName == "" {
		// Without an asname the binding is the top package.
		target = binding
	}

	switch method {
	case m.MethodImportlibImport:
		value := &m.Call{
			Func: &m.Attribute{Value: importModule("importlib"), Attr: "import_module", Ctx: m.CtxLoad},
			Args: []m.Expr{&m.Str{Value: alias.Name}},
		}

		return &m.Assign{
			Targets: []m.Expr{&m.Name{ID: binding, Ctx: m.CtxStore}},
			Value:   value,
		}
	case m.MethodNamespaceImport:
		// globals()["name"] = __import__(...)
		return &m.Assign{
			Targets: []m.Expr{&m.Subscript{
				Value: &m.Call{Func: loadName("globals")},
				Index: &m.Str{Value: binding},
				Ctx:   m.CtxStore,
			}},
			Value: importModule(target),
		}
	default:
		value := importModule(target)

		// With an asname the binding must be the leaf module; a non-empty
		// fromlist makes __import__ return it instead of the top package.
		if alias.AsName != "" && strings.Contains(alias.Name, ".") {
			value = &m.Call{
				Func: loadName("__import__"),
				Args: []m.Expr{
					&m.Str{Value: alias.Name},
					&m.Dict{},
					&m.Dict{},
					&m.Tuple{Elts: []m.Expr{&m.Str{Value: "_"}}, Ctx: m.CtxLoad},
				},
			}
		}

		return &m.Assign{
			Targets: []m.Expr{&m.Name{ID: binding, Ctx: m.CtxStore}},
			Value:   value,
		}
	}
}
