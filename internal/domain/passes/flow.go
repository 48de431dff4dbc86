package passes

import (
	m "veil.dev/pkg/veil/internal/model"
)

// Condition wrapper strategies. Tuple indexing re-evaluates nothing but is
// only drawn for pure tests, mirroring the short-circuit rule below.
const (
	condDoubleNeg = iota
	condIfExp
	condBoolCall
	condLambdaCall
	condTupleIndex
)

// RewriteFlow runs the control-flow sub-passes in fixed relative order per
// construct: condition encoding, branch extension, loop encoding, then dead
// block injection into function bodies. Each sub-pass draws its own chance
// from the flow rate so one construct can pick up any combination.
//
// newName supplies fresh identifiers for iterator-style loop rewrites.
func RewriteFlow(module *m.Module, ctx *Ctx, newName func() (string, error)) (int, error) {
	f := &flowEncoder{ctx: ctx, newName: newName}

	body, err := f.rewriteBody(module.Body, false)
	if err != nil {
		return 0, err
	}

	module.Body = body

	return f.changed, nil
}

type flowEncoder struct {
	ctx     *Ctx
	newName func() (string, error)
	changed int
}

func (f *flowEncoder) hit() bool {
	return f.ctx.hit(f.ctx.Cfg.Rate(m.FeatureFlow))
}

// rewriteBody processes one statement list. inFunction enables dead block
// injection afterwards.
func (f *flowEncoder) rewriteBody(body []m.Stmt, inFunction bool) ([]m.Stmt, error) {
	var out []m.Stmt

	for _, stmt := range body {
		rewritten, err := f.rewriteStmt(stmt)
		if err != nil {
			return nil, err
		}

		out = append(out, rewritten...)
	}

	if inFunction && f.hit() {
		out = f.injectDead(out)
	}

	return out, nil
}

func (f *flowEncoder) rewriteStmt(stmt m.Stmt) ([]m.Stmt, error) {
	switch node := stmt.(type) {
	case *m.FunctionDef:
		body, err := f.rewriteBody(node.Body, true)
		if err != nil {
			return nil, err
		}

		node.Body = body

		return []m.Stmt{node}, nil
	case *m.ClassDef:
		body, err := f.rewriteBody(node.Body, false)
		if err != nil {
			return nil, err
		}

		node.Body = body

		return []m.Stmt{node}, nil
	case *m.If:
		return f.rewriteIf(node)
	case *m.While:
		return f.rewriteWhile(node)
	case *m.For:
		return f.rewriteFor(node)
	case *m.Try:
		body, err := f.rewriteBody(node.Body, false)
		if err != nil {
			return nil, err
		}

		node.Body = body

		for _, handler := range node.Handlers {
			hb, err := f.rewriteBody(handler.Body, false)
			if err != nil {
				return nil, err
			}

			handler.Body = hb
		}

		elseBody, err := f.rewriteBody(node.Else, false)
		if err != nil {
			return nil, err
		}

		node.Else = elseBody

		final, err := f.rewriteBody(node.Final, false)
		if err != nil {
			return nil, err
		}

		node.Final = final

		return []m.Stmt{node}, nil
	default:
		return []m.Stmt{stmt}, nil
	}
}

func (f *flowEncoder) rewriteIf(node *m.If) ([]m.Stmt, error) {
	body, err := f.rewriteBody(node.Body, false)
	if err != nil {
		return nil, err
	}

	node.Body = body

	elseBody, err := f.rewriteBody(node.Else, false)
	if err != nil {
		return nil, err
	}

	node.Else = elseBody

	if f.hit() {
		node.Test = f.encodeCondition(node.Test)
		f.changed++
	}

	if f.hit() {
		return []m.Stmt{f.extendBranch(node)}, nil
	}

	return []m.Stmt{node}, nil
}

func (f *flowEncoder) rewriteWhile(node *m.While) ([]m.Stmt, error) {
	body, err := f.rewriteBody(node.Body, false)
	if err != nil {
		return nil, err
	}

	node.Body = body

	if f.hit() {
		node.Test = f.encodeCondition(node.Test)
		f.changed++
	}

	if f.hit() {
		return []m.Stmt{f.guardLoop(node)}, nil
	}

	return []m.Stmt{node}, nil
}

func (f *flowEncoder) rewriteFor(node *m.For) ([]m.Stmt, error) {
	body, err := f.rewriteBody(node.Body, false)
	if err != nil {
		return nil, err
	}

	node.Body = body

	if !f.hit() {
		return []m.Stmt{node}, nil
	}

	return f.iteratorLoop(node)
}

// encodeCondition wraps a test in a truth-preserving disguise. The test is
// always evaluated exactly once, in place, so short-circuiting inside it
// survives every strategy.
func (f *flowEncoder) encodeCondition(test m.Expr) m.Expr {
	limit := condTupleIndex
	if pureExpr(test) {
		limit++
	}

	switch f.ctx.Rng.Intn(limit) {
	case condDoubleNeg:
		return &m.UnaryOp{Op: m.OpNot, Operand: &m.UnaryOp{Op: m.OpNot, Operand: test}}
	case condIfExp:
		return &m.IfExp{Test: test, Body: &m.Bool{Value: true}, OrElse: &m.Bool{Value: false}}
	case condBoolCall:
		return &m.Call{Func: loadName("bool"), Args: []m.Expr{test}}
	case condLambdaCall:
		return &m.Call{Func: &m.Lambda{Body: test}}
	default:
		// (False, True)[not not test]
		return &m.Subscript{
			Value: &m.Tuple{
				Elts: []m.Expr{&m.Bool{Value: false}, &m.Bool{Value: true}},
				Ctx:  m.CtxLoad,
			},
			Index: &m.UnaryOp{Op: m.OpNot, Operand: &m.UnaryOp{Op: m.OpNot, Operand: test}},
		}
	}
}

// pureExpr reports whether evaluating the expression can have no observable
// side effects. Calls and attribute access (descriptors) disqualify.
func pureExpr(e m.Expr) bool {
	pure := true

	m.Walk(e, func(node m.Node) bool {
		switch node.(type) {
		case *m.Call, *m.Attribute, *m.Subscript:
			pure = false
			return false
		}

		return pure
	})

	return pure
}

// extendBranch restructures an if into an equivalent guard or nested form.
// The guard form negates the test and swaps the arms; the nested form hides
// the body behind a tautological inner if.
func (f *flowEncoder) extendBranch(node *m.If) *m.If {
	f.changed++

	if f.ctx.Rng.Intn(2) == 0 {
		elseBody := node.Else
		if len(elseBody) == 0 {
			elseBody = []m.Stmt{&m.Pass{}}
		}

		return &m.If{
			Test: &m.UnaryOp{Op: m.OpNot, Operand: node.Test},
			Body: elseBody,
			Else: node.Body,
		}
	}

	node.Body = []m.Stmt{&m.If{Test: tautology(f.ctx), Body: node.Body}}

	return node
}

// guardLoop rewrites while T: body into while True: if not T: break; body.
// Continue re-enters at the guard, break still exits, so loop semantics hold.
func (f *flowEncoder) guardLoop(node *m.While) *m.While {
	f.changed++

	guard := &m.If{
		Test: &m.UnaryOp{Op: m.OpNot, Operand: node.Test},
		Body: []m.Stmt{&m.Break{}},
	}

	return &m.While{
		Test: &m.Bool{Value: true},
		Body: append([]m.Stmt{guard}, node.Body...),
	}
}

// iteratorLoop rewrites a for loop into an explicit iterator drive:
//
//	_oN = iter(IT)
//	while True:
//	    try:
//	        TARGET = next(_oN)
//	    except StopIteration:
//	        break
//	    body
//
// Iteration order, break/continue, and the target's visibility after the
// loop all carry over.
func (f *flowEncoder) iteratorLoop(node *m.For) ([]m.Stmt, error) {
	iterName, err := f.newName()
	if err != nil {
		return nil, err
	}

	f.changed++

	setup := &m.Assign{
		Targets: []m.Expr{&m.Name{ID: iterName, Ctx: m.CtxStore}},
		Value:   &m.Call{Func: loadName("iter"), Args: []m.Expr{node.Iter}},
	}

	step := &m.Try{
		Body: []m.Stmt{&m.Assign{
			Targets: []m.Expr{node.Target},
			Value:   &m.Call{Func: loadName("next"), Args: []m.Expr{loadName(iterName)}},
		}},
		Handlers: []*m.ExceptHandler{{
			Type: loadName("StopIteration"),
			Body: []m.Stmt{&m.Break{}},
		}},
	}

	drive := &m.While{
		Test: &m.Bool{Value: true},
		Body: append([]m.Stmt{step}, node.Body...),
	}

	return []m.Stmt{setup, drive}, nil
}

// injectDead prepends dead conditional blocks to a function body. The guard
// compares two distinct seeded constants, so the block never executes.
func (f *flowEncoder) injectDead(body []m.Stmt) []m.Stmt {
	at := 0
	if f.ctx.Cfg.KeepDocstrings {
		at = docstringIndex(body)
	}

	amount := intBetween(f.ctx.Rng, 1, f.ctx.Cfg.FlowCount)

	for i := 0; i < amount; i++ {
		dead := deadIf(f.ctx)
		body = append(body[:at], append([]m.Stmt{dead}, body[at:]...)...)
		f.changed++
	}

	return body
}

func deadIf(ctx *Ctx) *m.If {
	a := int64(intBetween(ctx.Rng, 100, 999))
	b := a + int64(intBetween(ctx.Rng, 1, 50))

	return &m.If{
		Test: &m.Compare{
			Left:        &m.Int{Value: a},
			Ops:         []m.CmpOpKind{m.OpEq},
			Comparators: []m.Expr{&m.Int{Value: b}},
		},
		Body: []m.Stmt{&m.Pass{}},
	}
}

// tautology builds a seeded always-true comparison.
func tautology(ctx *Ctx) m.Expr {
	a := int64(intBetween(ctx.Rng, 100, 999))

	return &m.Compare{
		Left:        &m.Int{Value: a},
		Ops:         []m.CmpOpKind{m.OpEq},
		Comparators: []m.Expr{&m.Int{Value: a}},
	}
}
