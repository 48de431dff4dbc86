package domain

import (
	"fmt"
	"math/rand"

	m "veil.dev/pkg/veil/internal/model"
)

// Helper mode tags recorded in metadata hints.
const (
	hintModeString = "string"
	hintModeCall   = "call"
)

// helperRegistry owns the runtime helper functions injected into the output
// module. Pools are bounded: the same helper is shared by every site that
// picks it, and definitions are materialized once, up front, so the pipeline
// never mutates the module body mid-pass.
type helperRegistry struct {
	rng *rand.Rand

	stringNames []string
	callNames   []string

	defs  []*m.FunctionDef
	hints []m.HelperHint
}

func newHelperRegistry(rng *rand.Rand, cfg *m.EffectiveConfig, used map[string]bool) *helperRegistry {
	reg := &helperRegistry{rng: rng}

	for i := 0; i < cfg.StringHelpers; i++ {
		name := helperName("_obf_str", i, used)
		reg.stringNames = append(reg.stringNames, name)
		reg.defs = append(reg.defs, buildStringHelper(name))
		reg.hints = append(reg.hints, m.HelperHint{
			HelperName: name,
			Mode:       hintModeString,
			Salt:       cfg.ValueSalt,
			Params:     []string{"mode", "payload"},
		})
	}

	for i := 0; i < cfg.CallHelpers; i++ {
		name := helperName("_obf_call", i, used)
		reg.callNames = append(reg.callNames, name)
		reg.defs = append(reg.defs, buildCallHelper(name))
		reg.hints = append(reg.hints, m.HelperHint{
			HelperName: name,
			Mode:       hintModeCall,
			Salt:       cfg.ValueSalt,
			Params:     []string{"fn", "args", "kwargs"},
		})
	}

	return reg
}

// helperName derives the index-th helper identifier, stepping around any
// identifier the input module already uses.
func helperName(base string, index int, used map[string]bool) string {
	name := base
	if index > 0 {
		name = fmt.Sprintf("%s_%d", base, index+1)
	}

	for used[name] {
		name += "_x"
	}

	used[name] = true

	return name
}

// stringHelper picks a string helper for one site.
func (h *helperRegistry) stringHelper() string {
	return h.stringNames[h.rng.Intn(len(h.stringNames))]
}

// callHelper picks a call helper for one site.
func (h *helperRegistry) callHelper() string {
	return h.callNames[h.rng.Intn(len(h.callNames))]
}

// usedDefs returns the definitions of helpers actually referenced in the
// tree, in emission order, ready to prepend to the module body.
func (h *helperRegistry) usedDefs(module *m.Module) []m.Stmt {
	referenced := make(map[string]bool)

	m.Walk(module, func(node m.Node) bool {
		if name, ok := node.(*m.Name); ok {
			referenced[name.ID] = true
		}

		return true
	})

	var out []m.Stmt

	for _, def := range h.defs {
		if referenced[def.Name] {
			out = append(out, def)
		}
	}

	return out
}

// usedHints filters hints down to helpers present in the output.
func (h *helperRegistry) usedHints(module *m.Module) []m.HelperHint {
	referenced := make(map[string]bool)

	for _, def := range h.usedDefs(module) {
		if fn, ok := def.(*m.FunctionDef); ok {
			referenced[fn.Name] = true
		}
	}

	var out []m.HelperHint

	for _, hint := range h.hints {
		if referenced[hint.HelperName] {
			out = append(out, hint)
		}
	}

	return out
}

// helperNames returns every helper identifier, used or not, so other passes
// can leave them alone.
func (h *helperRegistry) helperNames() map[string]bool {
	out := make(map[string]bool, len(h.stringNames)+len(h.callNames))

	for _, name := range h.stringNames {
		out[name] = true
	}

	for _, name := range h.callNames {
		out[name] = true
	}

	return out
}

// buildStringHelper synthesizes the string decoder:
//
//	def NAME(mode, payload):
//	    if mode == 0:
//	        out = []
//	        for pair in payload:
//	            for c in pair[1]:
//	                out.append(chr(c ^ pair[0]))
//	        return "".join(out)
//	    if mode == 1:
//	        import base64
//	        return base64.b85decode(payload.encode("ascii")).decode("utf-8")
//	    if mode == 2:
//	        ... reversed(payload) accumulated into out ...
//	    return payload
func buildStringHelper(name string) *m.FunctionDef {
	mode := func(v int64) m.Expr {
		return &m.Compare{
			Left:        &m.Name{ID: "mode", Ctx: m.CtxLoad},
			Ops:         []m.CmpOpKind{m.OpEq},
			Comparators: []m.Expr{&m.Int{Value: v}},
		}
	}

	payload := func() m.Expr { return &m.Name{ID: "payload", Ctx: m.CtxLoad} }
	out := func(ctx m.NameCtx) m.Expr { return &m.Name{ID: "out", Ctx: ctx} }

	joinOut := &m.Return{Value: &m.Call{
		Func: &m.Attribute{Value: &m.Str{Value: ""}, Attr: "join", Ctx: m.CtxLoad},
		Args: []m.Expr{out(m.CtxLoad)},
	}}

	appendCall := func(value m.Expr) m.Stmt {
		return &m.ExprStmt{Value: &m.Call{
			Func: &m.Attribute{Value: out(m.CtxLoad), Attr: "append", Ctx: m.CtxLoad},
			Args: []m.Expr{value},
		}}
	}

	// mode 0: xor-chunk pairs of (key, byte list).
	xorBody := []m.Stmt{
		&m.Assign{Targets: []m.Expr{out(m.CtxStore)}, Value: &m.List{}},
		&m.For{
			Target: &m.Name{ID: "pair", Ctx: m.CtxStore},
			Iter:   payload(),
			Body: []m.Stmt{
				&m.For{
					Target: &m.Name{ID: "c", Ctx: m.CtxStore},
					Iter: &m.Subscript{
						Value: &m.Name{ID: "pair", Ctx: m.CtxLoad},
						Index: &m.Int{Value: 1},
						Ctx:   m.CtxLoad,
					},
					Body: []m.Stmt{
						appendCall(&m.Call{
							Func: &m.Name{ID: "chr", Ctx: m.CtxLoad},
							Args: []m.Expr{&m.BinOp{
								Left: &m.Name{ID: "c", Ctx: m.CtxLoad},
								Op:   m.OpBitXor,
								Right: &m.Subscript{
									Value: &m.Name{ID: "pair", Ctx: m.CtxLoad},
									Index: &m.Int{Value: 0},
									Ctx:   m.CtxLoad,
								},
							}},
						}),
					},
				},
			},
		},
		joinOut,
	}

	// mode 1: base85 payload.
	b85Body := []m.Stmt{
		&m.Import{Names: []m.Alias{{Name: "base64"}}},
		&m.Return{Value: &m.Call{
			Func: &m.Attribute{
				Value: &m.Call{
					Func: &m.Attribute{Value: &m.Name{ID: "base64", Ctx: m.CtxLoad}, Attr: "b85decode", Ctx: m.CtxLoad},
					Args: []m.Expr{&m.Call{
						Func: &m.Attribute{Value: payload(), Attr: "encode", Ctx: m.CtxLoad},
						Args: []m.Expr{&m.Str{Value: "ascii"}},
					}},
				},
				Attr: "decode",
				Ctx:  m.CtxLoad,
			},
			Args: []m.Expr{&m.Str{Value: "utf-8"}},
		}},
	}

	// mode 2: reversed text.
	reverseBody := []m.Stmt{
		&m.Assign{Targets: []m.Expr{out(m.CtxStore)}, Value: &m.List{}},
		&m.For{
			Target: &m.Name{ID: "ch", Ctx: m.CtxStore},
			Iter: &m.Call{
				Func: &m.Name{ID: "reversed", Ctx: m.CtxLoad},
				Args: []m.Expr{payload()},
			},
			Body: []m.Stmt{appendCall(&m.Name{ID: "ch", Ctx: m.CtxLoad})},
		},
		joinOut,
	}

	return &m.FunctionDef{
		Name:   name,
		Params: []m.Param{{Name: "mode"}, {Name: "payload"}},
		Body: []m.Stmt{
			&m.If{Test: mode(0), Body: xorBody},
			&m.If{Test: mode(1), Body: b85Body},
			&m.If{Test: mode(2), Body: reverseBody},
			&m.Return{Value: payload()},
		},
	}
}

// buildCallHelper synthesizes the call trampoline:
//
//	def NAME(fn, args, kwargs):
//	    return fn(*args, **kwargs)
func buildCallHelper(name string) *m.FunctionDef {
	return &m.FunctionDef{
		Name:   name,
		Params: []m.Param{{Name: "fn"}, {Name: "args"}, {Name: "kwargs"}},
		Body: []m.Stmt{
			&m.Return{Value: &m.Call{
				Func:     &m.Name{ID: "fn", Ctx: m.CtxLoad},
				Args:     []m.Expr{&m.Starred{Value: &m.Name{ID: "args", Ctx: m.CtxLoad}}},
				Keywords: []m.Keyword{{Name: "", Value: &m.Name{ID: "kwargs", Ctx: m.CtxLoad}}},
			}},
		},
	}
}
