package passes

import (
	"sort"

	m "veil.dev/pkg/veil/internal/model"
)

// CollectBuiltinLoads lists the builtin names loaded freely in the module:
// referenced in load context, not shadowed by any local binding and not
// preserved. Sorted for deterministic alias assignment order.
func CollectBuiltinLoads(module *m.Module, preserve map[string]bool) []string {
	bound := boundIdentifiers(module)
	found := make(map[string]bool)

	m.Walk(module, func(node m.Node) bool {
		name, ok := node.(*m.Name)
		if !ok || name.Ctx != m.CtxLoad {
			return true
		}

		if m.PythonBuiltins[name.ID] && !bound[name.ID] && !preserve[name.ID] && !m.IsDunder(name.ID) {
			found[name.ID] = true
		}

		return true
	})

	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// boundIdentifiers collects every name the module binds somewhere: any
// shadowing anywhere disqualifies a builtin from aliasing.
func boundIdentifiers(module *m.Module) map[string]bool {
	bound := make(map[string]bool)

	m.Walk(module, func(node m.Node) bool {
		switch n := node.(type) {
		case *m.FunctionDef:
			bound[n.Name] = true

			for _, param := range n.Params {
				bound[param.Name] = true
			}
		case *m.ClassDef:
			bound[n.Name] = true
		case *m.Name:
			if n.Ctx == m.CtxStore || n.Ctx == m.CtxDel {
				bound[n.ID] = true
			}
		case *m.ExceptHandler:
			if n.Name != "" {
				bound[n.Name] = true
			}
		case *m.Import:
			for _, alias := range n.Names {
				bound[aliasBinding(alias)] = true
			}
		case *m.ImportFrom:
			for _, alias := range n.Names {
				if alias.Name != "*" {
					bound[aliasBinding(alias)] = true
				}
			}
		case *m.Lambda:
			for _, param := range n.Params {
				bound[param] = true
			}
		}

		return true
	})

	return bound
}

func aliasBinding(alias m.Alias) string {
	if alias.AsName != "" {
		return alias.AsName
	}

	name := alias.Name
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}

	return name
}

// RewriteBuiltins replaces free builtin loads with module-level aliases and
// prepends one alias assignment per replaced builtin, each built with a
// strategy drawn from the builtin pool. newName supplies fresh identifiers.
func RewriteBuiltins(module *m.Module, ctx *Ctx, newName func() (string, error)) (int, error) {
	targets := CollectBuiltinLoads(module, ctx.Cfg.PreserveNames)
	if len(targets) == 0 {
		return 0, nil
	}

	aliases := make(map[string]string, len(targets))

	for _, name := range targets {
		alias, err := newName()
		if err != nil {
			return 0, err
		}

		aliases[name] = alias
	}

	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		name, ok := node.(*m.Name)
		if !ok || name.Ctx != m.CtxLoad {
			return node
		}

		alias, ok := aliases[name.ID]
		if !ok || !ctx.hit(ctx.Cfg.Rate(m.FeatureBuiltins)) {
			return node
		}

		changed++

		return loadName(alias)
	})

	pool := ctx.Cfg.Pool(m.FamilyBuiltin)

	for i := len(targets) - 1; i >= 0; i-- {
		name := targets[i]

		method := m.MethodBuiltinAlias
		if len(pool) > 0 {
			method = pick(ctx.Rng, pool)
		}

		InsertAfterDocstring(module, builtinAliasStmt(aliases[name], name, method))
	}

	return changed, nil
}

// builtinAliasStmt builds the module-level assignment backing one alias.
func builtinAliasStmt(alias, builtin string, method m.DynamicMethod) m.Stmt {
	var value m.Expr

	switch method {
	case m.MethodGetattrAlias:
		value = &m.Call{
			Func: loadName("getattr"),
			Args: []m.Expr{importModule("builtins"), &m.Str{Value: builtin}},
		}
	case m.MethodGlobalsLookup:
		value = &m.Call{
			Func: &m.Attribute{
				Value: &m.Call{Func: loadName("globals")},
				Attr:  "get",
				Ctx:   m.CtxLoad,
			},
			Args: []m.Expr{&m.Str{Value: builtin}, loadName(builtin)},
		}
	default:
		value = loadName(builtin)
	}

	return &m.Assign{
		Targets: []m.Expr{&m.Name{ID: alias, Ctx: m.CtxStore}},
		Value:   value,
	}
}
