package passes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func flowCtx(seed int64, rate float64) *Ctx {
	cfg := testCfg()
	cfg.Rates[m.FeatureFlow] = rate

	return testCtx(seed, cfg)
}

func serialNames() func() (string, error) {
	next := 0

	return func() (string, error) {
		next++
		return fmt.Sprintf("_it%d", next), nil
	}
}

// containsName reports whether any Name node in the tree carries the id.
func containsName(root m.Node, id string) bool {
	found := false

	m.Walk(root, func(node m.Node) bool {
		if name, ok := node.(*m.Name); ok && name.ID == id {
			found = true
		}

		return !found
	})

	return found
}

func TestRewriteFlowForLoop(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.For{
			Target: &m.Name{ID: "item", Ctx: m.CtxStore},
			Iter:   loadName("items"),
			Body:   []m.Stmt{&m.ExprStmt{Value: &m.Call{Func: loadName("handle"), Args: []m.Expr{loadName("item")}}}},
		},
	}}

	changed, err := RewriteFlow(module, flowCtx(5, 1.0), serialNames())
	require.NoError(t, err)
	assert.Positive(t, changed)

	// for item in items: ... becomes _it1 = iter(items); while True: try
	// next / except StopIteration: break; body.
	require.Len(t, module.Body, 2)

	setup, ok := module.Body[0].(*m.Assign)
	require.True(t, ok)
	assert.Equal(t, "_it1", setup.Targets[0].(*m.Name).ID)
	assert.Equal(t, "iter", setup.Value.(*m.Call).Func.(*m.Name).ID)

	loop, ok := module.Body[1].(*m.While)
	require.True(t, ok)

	step, ok := loop.Body[0].(*m.Try)
	require.True(t, ok)

	draw, ok := step.Body[0].(*m.Assign)
	require.True(t, ok)
	assert.Equal(t, "item", draw.Targets[0].(*m.Name).ID)
	assert.Equal(t, "next", draw.Value.(*m.Call).Func.(*m.Name).ID)

	require.Len(t, step.Handlers, 1)
	assert.Equal(t, "StopIteration", step.Handlers[0].Type.(*m.Name).ID)
	assert.IsType(t, &m.Break{}, step.Handlers[0].Body[0])

	// The original body survives inside the drive loop.
	assert.True(t, containsName(loop, "handle"))
}

func TestRewriteFlowWhileLoop(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.While{
			Test: loadName("running"),
			Body: []m.Stmt{&m.ExprStmt{Value: &m.Call{Func: loadName("tick")}}},
		},
	}}

	changed, err := RewriteFlow(module, flowCtx(5, 1.0), serialNames())
	require.NoError(t, err)
	assert.Positive(t, changed)

	loop, ok := module.Body[0].(*m.While)
	require.True(t, ok)

	// The guarded form drives an unconditional loop and breaks when the
	// disguised original test turns false.
	test, ok := loop.Test.(*m.Bool)
	require.True(t, ok)
	assert.True(t, test.Value)

	guard, ok := loop.Body[0].(*m.If)
	require.True(t, ok)

	not, ok := guard.Test.(*m.UnaryOp)
	require.True(t, ok)
	assert.Equal(t, m.OpNot, not.Op)
	assert.True(t, containsName(not.Operand, "running"))
	assert.IsType(t, &m.Break{}, guard.Body[0])

	assert.True(t, containsName(loop, "tick"))
}

func TestRewriteFlowBranches(t *testing.T) {
	build := func() *m.Module {
		return &m.Module{Body: []m.Stmt{
			&m.If{
				Test: loadName("flag"),
				Body: []m.Stmt{&m.ExprStmt{Value: &m.Call{Func: loadName("yes")}}},
				Else: []m.Stmt{&m.ExprStmt{Value: &m.Call{Func: loadName("no")}}},
			},
		}}
	}

	for seed := int64(1); seed <= 10; seed++ {
		module := build()

		changed, err := RewriteFlow(module, flowCtx(seed, 1.0), serialNames())
		require.NoError(t, err)
		assert.Positive(t, changed)

		// Whatever disguise was drawn, both arms and the original test are
		// still reachable in the tree.
		require.Len(t, module.Body, 1)
		assert.True(t, containsName(module.Body[0], "flag"), "seed %d", seed)
		assert.True(t, containsName(module.Body[0], "yes"), "seed %d", seed)
		assert.True(t, containsName(module.Body[0], "no"), "seed %d", seed)
	}
}

func TestRewriteFlowDeadBlocks(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.FunctionDef{
			Name: "work",
			Body: []m.Stmt{&m.Return{Value: &m.Int{Value: 1}}},
		},
	}}

	ctx := flowCtx(9, 1.0)
	ctx.Cfg.FlowCount = 1

	changed, err := RewriteFlow(module, ctx, serialNames())
	require.NoError(t, err)
	assert.Positive(t, changed)

	def := module.Body[0].(*m.FunctionDef)
	require.Len(t, def.Body, 2)

	dead, ok := def.Body[0].(*m.If)
	require.True(t, ok)

	// The guard compares two distinct constants, so the block is dead.
	cmp, ok := dead.Test.(*m.Compare)
	require.True(t, ok)
	require.Equal(t, []m.CmpOpKind{m.OpEq}, cmp.Ops)
	assert.NotEqual(t, cmp.Left.(*m.Int).Value, cmp.Comparators[0].(*m.Int).Value)
	assert.IsType(t, &m.Pass{}, dead.Body[0])

	assert.IsType(t, &m.Return{}, def.Body[1])
}

func TestRewriteFlowRateZero(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.For{
			Target: &m.Name{ID: "i", Ctx: m.CtxStore},
			Iter:   loadName("xs"),
			Body:   []m.Stmt{&m.Pass{}},
		},
		&m.FunctionDef{Name: "f", Body: []m.Stmt{&m.Pass{}}},
	}}

	changed, err := RewriteFlow(module, flowCtx(5, 0.0), serialNames())
	require.NoError(t, err)

	assert.Zero(t, changed)
	assert.IsType(t, &m.For{}, module.Body[0])
	require.Len(t, module.Body[1].(*m.FunctionDef).Body, 1)
}

func TestEncodeConditionPurity(t *testing.T) {
	impure := &m.Call{Func: loadName("check")}

	for seed := int64(0); seed < 50; seed++ {
		f := &flowEncoder{ctx: testCtx(seed, testCfg())}

		encoded := f.encodeCondition(impure)

		// Tuple indexing evaluates both branches of nothing but would still
		// index eagerly, so impure tests never draw it.
		_, isSubscript := encoded.(*m.Subscript)
		assert.False(t, isSubscript, "seed %d drew tuple indexing for an impure test", seed)
	}
}

func TestPureExpr(t *testing.T) {
	assert.True(t, pureExpr(&m.BinOp{Left: loadName("a"), Op: m.OpAdd, Right: &m.Int{Value: 1}}))
	assert.False(t, pureExpr(&m.Call{Func: loadName("f")}))
	assert.False(t, pureExpr(&m.Attribute{Value: loadName("obj"), Attr: "x", Ctx: m.CtxLoad}))
	assert.False(t, pureExpr(&m.BinOp{
		Left:  loadName("a"),
		Op:    m.OpAdd,
		Right: &m.Subscript{Value: loadName("xs"), Index: &m.Int{Value: 0}, Ctx: m.CtxLoad},
	}))
}
