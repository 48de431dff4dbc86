package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

// RewriteCalls reroutes plain calls through a trampoline: the shared helper,
// an inline lambda, or an eval-compiled lambda when explicitly allowed.
// Calls with starred arguments or **kwargs splats keep their shape, as do
// calls to the helpers themselves.
func RewriteCalls(module *m.Module, ctx *Ctx) int {
	changed := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		call, ok := node.(*m.Call)
		if !ok {
			return node
		}

		if !ctx.hit(ctx.Cfg.Rate(m.FeatureCalls)) {
			return node
		}

		if name, ok := call.Func.(*m.Name); ok && ctx.HelperNames[name.ID] {
			return node
		}

		for _, arg := range call.Args {
			if _, ok := arg.(*m.Starred); ok {
				return node
			}
		}

		for _, kw := range call.Keywords {
			if kw.Name == "" {
				return node
			}
		}

		changed++

		pool := ctx.Cfg.Pool(m.FamilyCall)

		method := m.MethodHelperWrap
		if len(pool) > 0 {
			method = pick(ctx.Rng, pool)
		}

		args := &m.Tuple{Elts: call.Args, Ctx: m.CtxLoad}
		kwargs := kwargsDict(call.Keywords)

		switch method {
		case m.MethodLambdaWrap:
			return trampolineCall(lambdaTrampoline(), call.Func, args, kwargs)
		case m.MethodEvalCall:
			return trampolineCall(evalTrampoline(), call.Func, args, kwargs)
		default:
			return trampolineCall(loadName(ctx.CallHelper()), call.Func, args, kwargs)
		}
	})

	return changed
}

func trampolineCall(fn m.Expr, target m.Expr, args, kwargs m.Expr) m.Expr {
	return &m.Call{Func: fn, Args: []m.Expr{target, args, kwargs}}
}

// kwargsDict packs keyword arguments into a literal dict.
func kwargsDict(keywords []m.Keyword) *m.Dict {
	out := &m.Dict{}

	for _, kw := range keywords {
		out.Keys = append(out.Keys, &m.Str{Value: kw.Name})
		out.Values = append(out.Values, kw.Value)
	}

	return out
}

// lambdaTrampoline builds lambda _f, _a, _k: _f(*_a, **_k).
func lambdaTrampoline() m.Expr {
	return &m.Lambda{
		Params: []string{"_f", "_a", "_k"},
		Body: &m.Call{
			Func:     loadName("_f"),
			Args:     []m.Expr{&m.Starred{Value: loadName("_a")}},
			Keywords: []m.Keyword{{Name: "", Value: loadName("_k")}},
		},
	}
}

// evalTrampoline builds eval("lambda f,a,k: f(*a, **k)" + ""). The string
// concatenation keeps the payload from reading as a plain literal.
func evalTrampoline() m.Expr {
	return &m.Call{
		Func: loadName("eval"),
		Args: []m.Expr{&m.BinOp{
			Left:  &m.Str{Value: "lambda f,a,k: f(*a, **k)"},
			Op:    m.OpAdd,
			Right: &m.Str{Value: ""},
		}},
	}
}
