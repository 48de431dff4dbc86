package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func name(id string) *m.Name {
	return &m.Name{ID: id, Ctx: m.CtxLoad}
}

func unparse(t *testing.T, module *m.Module) string {
	t.Helper()

	text, err := NewSourceUnparser().Unparse(module)
	require.NoError(t, err)

	return text
}

func TestUnparseProgram(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.ExprStmt{Value: &m.Str{Value: "greeting tool"}},
		&m.Import{Names: []m.Alias{{Name: "os"}, {Name: "json", AsName: "_j"}}},
		&m.ImportFrom{Module: "sys", Names: []m.Alias{{Name: "argv"}}},
		&m.FunctionDef{
			Name:   "greet",
			Params: []m.Param{{Name: "who"}, {Name: "loud", Default: &m.Bool{Value: false}}},
			Body: []m.Stmt{
				&m.If{
					Test: name("loud"),
					Body: []m.Stmt{&m.Return{Value: &m.Call{
						Func: &m.Attribute{Value: name("who"), Attr: "upper", Ctx: m.CtxLoad},
					}}},
					Else: []m.Stmt{&m.Return{Value: name("who")}},
				},
			},
		},
		&m.ExprStmt{Value: &m.Call{
			Func:     name("print"),
			Args:     []m.Expr{&m.Call{Func: name("greet"), Args: []m.Expr{&m.Subscript{Value: name("argv"), Index: &m.Int{Value: 1}, Ctx: m.CtxLoad}}}},
			Keywords: []m.Keyword{{Name: "flush", Value: &m.Bool{Value: true}}},
		}},
	}}

	expected := `"greeting tool"
import os, json as _j
from sys import argv
def greet(who, loud=False):
    if loud:
        return who.upper()
    else:
        return who
print(greet(argv[1]), flush=True)
`

	assert.Equal(t, expected, unparse(t, module))
}

func TestUnparseControlFlow(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.While{
			Test: &m.Bool{Value: true},
			Body: []m.Stmt{
				&m.If{
					Test: &m.UnaryOp{Op: m.OpNot, Operand: name("ready")},
					Body: []m.Stmt{&m.Break{}},
				},
				&m.Try{
					Body: []m.Stmt{&m.ExprStmt{Value: &m.Call{Func: name("step")}}},
					Handlers: []*m.ExceptHandler{{
						Type: name("ValueError"),
						Name: "err",
						Body: []m.Stmt{&m.Continue{}},
					}},
					Final: []m.Stmt{&m.ExprStmt{Value: &m.Call{Func: name("cleanup")}}},
				},
			},
		},
		&m.For{
			Target: &m.Name{ID: "i", Ctx: m.CtxStore},
			Iter:   &m.Call{Func: name("range"), Args: []m.Expr{&m.Int{Value: 3}}},
			Body:   nil,
		},
	}}

	expected := `while True:
    if not ready:
        break
    try:
        step()
    except ValueError as err:
        continue
    finally:
        cleanup()
for i in range(3):
    pass
`

	assert.Equal(t, expected, unparse(t, module))
}

func TestUnparseElifChain(t *testing.T) {
	module := &m.Module{Body: []m.Stmt{
		&m.If{
			Test: &m.Compare{Left: name("n"), Ops: []m.CmpOpKind{m.OpLt}, Comparators: []m.Expr{&m.Int{Value: 0}}},
			Body: []m.Stmt{&m.Return{Value: &m.Int{Value: -1}}},
			Else: []m.Stmt{&m.If{
				Test: &m.Compare{Left: name("n"), Ops: []m.CmpOpKind{m.OpEq}, Comparators: []m.Expr{&m.Int{Value: 0}}},
				Body: []m.Stmt{&m.Return{Value: &m.Int{Value: 0}}},
				Else: []m.Stmt{&m.Return{Value: &m.Int{Value: 1}}},
			}},
		},
	}}

	expected := `if n < 0:
    return -1
elif n == 0:
    return 0
else:
    return 1
`

	assert.Equal(t, expected, unparse(t, module))
}

func TestUnparseExpressions(t *testing.T) {
	cases := []struct {
		name string
		expr m.Expr
		want string
	}{
		{
			"precedence forces parentheses",
			&m.BinOp{
				Left:  &m.BinOp{Left: name("a"), Op: m.OpAdd, Right: name("b")},
				Op:    m.OpMult,
				Right: name("c"),
			},
			"(a + b) * c",
		},
		{
			"xor chain",
			&m.BinOp{
				Left:  &m.BinOp{Left: name("v"), Op: m.OpBitXor, Right: &m.Int{Value: 7}},
				Op:    m.OpBitXor,
				Right: &m.Int{Value: 7},
			},
			"v ^ 7 ^ 7",
		},
		{
			"single element tuple",
			&m.Tuple{Elts: []m.Expr{&m.Int{Value: 1}}, Ctx: m.CtxLoad},
			"(1,)",
		},
		{
			"lambda called in place",
			&m.Call{Func: &m.Lambda{Body: name("x")}},
			"(lambda: x)()",
		},
		{
			"conditional expression",
			&m.IfExp{Test: name("ok"), Body: &m.Bool{Value: true}, OrElse: &m.Bool{Value: false}},
			"True if ok else False",
		},
		{
			"dict and list displays",
			&m.Dict{
				Keys:   []m.Expr{&m.Str{Value: "xs"}},
				Values: []m.Expr{&m.List{Elts: []m.Expr{&m.Int{Value: 1}, &m.Int{Value: 2}}}},
			},
			`{"xs": [1, 2]}`,
		},
		{
			"float keeps a decimal point",
			&m.Float{Value: 3},
			"3.0",
		},
		{
			"negative literal",
			&m.UnaryOp{Op: m.OpUSub, Operand: &m.Int{Value: 1}},
			"-1",
		},
		{
			"int attribute receiver gets parentheses",
			&m.Call{Func: &m.Attribute{Value: &m.Int{Value: 5}, Attr: "bit_length", Ctx: m.CtxLoad}},
			"(5).bit_length()",
		},
		{
			"float attribute receiver gets parentheses",
			&m.Attribute{Value: &m.Float{Value: 2.5}, Attr: "hex", Ctx: m.CtxLoad},
			"(2.5).hex",
		},
		{
			"string escapes",
			&m.Str{Value: "a\"b\\c\n\x01"},
			`"a\"b\\c\n\x01"`,
		},
		{
			"tuple index disguise",
			&m.Subscript{
				Value: &m.Tuple{Elts: []m.Expr{&m.Bool{Value: false}, &m.Bool{Value: true}}, Ctx: m.CtxLoad},
				Index: &m.UnaryOp{Op: m.OpNot, Operand: &m.UnaryOp{Op: m.OpNot, Operand: name("t")}},
				Ctx:   m.CtxLoad,
			},
			"(False, True)[not not t]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			module := &m.Module{Body: []m.Stmt{&m.ExprStmt{Value: tc.expr}}}
			assert.Equal(t, tc.want+"\n", unparse(t, module))
		})
	}
}

func TestUnparseDeterminism(t *testing.T) {
	build := func() *m.Module {
		return &m.Module{Body: []m.Stmt{
			&m.Assign{
				Targets: []m.Expr{&m.Name{ID: "table", Ctx: m.CtxStore}},
				Value: &m.Dict{
					Keys:   []m.Expr{&m.Str{Value: "a"}, &m.Str{Value: "b"}},
					Values: []m.Expr{name("a"), name("b")},
				},
			},
		}}
	}

	assert.Equal(t, unparse(t, build()), unparse(t, build()))
}
