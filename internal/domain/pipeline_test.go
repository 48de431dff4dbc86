package domain

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veil.dev/pkg/veil/internal/adapter"
	m "veil.dev/pkg/veil/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleModule builds a module with enough surface for every pass family.
func sampleModule() *m.Module {
	return &m.Module{Body: []m.Stmt{
		&m.ExprStmt{Value: &m.Str{Value: "module docstring"}},
		&m.Import{Names: []m.Alias{{Name: "os"}}},
		&m.Assign{
			Targets: []m.Expr{&m.Name{ID: "greeting", Ctx: m.CtxStore}},
			Value:   &m.Str{Value: "hello there"},
		},
		&m.FunctionDef{
			Name:   "shout",
			Params: []m.Param{{Name: "text"}},
			Body: []m.Stmt{
				&m.If{
					Test: &m.Compare{
						Left:        &m.Call{Func: &m.Name{ID: "len", Ctx: m.CtxLoad}, Args: []m.Expr{&m.Name{ID: "text", Ctx: m.CtxLoad}}},
						Ops:         []m.CmpOpKind{m.OpGt},
						Comparators: []m.Expr{&m.Int{Value: 0}},
					},
					Body: []m.Stmt{&m.Return{Value: &m.Call{
						Func: &m.Attribute{Value: &m.Name{ID: "text", Ctx: m.CtxLoad}, Attr: "upper", Ctx: m.CtxLoad},
					}}},
				},
				&m.Return{Value: &m.Str{Value: ""}},
			},
		},
		&m.ExprStmt{Value: &m.Call{
			Func: &m.Name{ID: "print", Ctx: m.CtxLoad},
			Args: []m.Expr{&m.Call{
				Func: &m.Name{ID: "shout", Ctx: m.CtxLoad},
				Args: []m.Expr{&m.Name{ID: "greeting", Ctx: m.CtxLoad}},
			}},
		}},
	}}
}

func encodeTree(t *testing.T, module *m.Module) []byte {
	t.Helper()

	data, err := adapter.NewJSONTreeCodec().Encode(module)
	require.NoError(t, err)

	return data
}

func TestObfuscatorDeterminism(t *testing.T) {
	t.Run("same seed produces byte-identical trees", func(t *testing.T) {
		opts := baseOptions(4)
		opts.Junk = 2

		cfg, err := Resolve(opts)
		require.NoError(t, err)

		first := sampleModule()
		firstResult, err := NewObfuscator(cfg, discardLogger()).Run(context.Background(), first)
		require.NoError(t, err)

		second := sampleModule()
		secondResult, err := NewObfuscator(cfg, discardLogger()).Run(context.Background(), second)
		require.NoError(t, err)

		assert.Equal(t, encodeTree(t, first), encodeTree(t, second))
		assert.Equal(t, firstResult.Renames, secondResult.Renames)
		assert.Equal(t, firstResult.Stats, secondResult.Stats)
	})

	t.Run("worker count does not change the output", func(t *testing.T) {
		run := func(workers int) []byte {
			opts := baseOptions(4)
			opts.MTWorkers = workers

			cfg, err := Resolve(opts)
			require.NoError(t, err)

			module := sampleModule()
			_, err = NewObfuscator(cfg, discardLogger()).Run(context.Background(), module)
			require.NoError(t, err)

			return encodeTree(t, module)
		}

		single := run(1)
		assert.Equal(t, single, run(4))
		assert.Equal(t, single, run(8))
	})

	t.Run("different value salts diverge", func(t *testing.T) {
		run := func(salt uint64) []byte {
			opts := baseOptions(2)
			opts.ValueSalt = &salt

			cfg, err := Resolve(opts)
			require.NoError(t, err)

			module := sampleModule()
			_, err = NewObfuscator(cfg, discardLogger()).Run(context.Background(), module)
			require.NoError(t, err)

			return encodeTree(t, module)
		}

		assert.NotEqual(t, run(1), run(2))
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		run := func(seed int64) []byte {
			opts := baseOptions(4)
			opts.Seed = seed

			cfg, err := Resolve(opts)
			require.NoError(t, err)

			module := sampleModule()
			_, err = NewObfuscator(cfg, discardLogger()).Run(context.Background(), module)
			require.NoError(t, err)

			return encodeTree(t, module)
		}

		assert.NotEqual(t, run(1), run(2))
	})
}

func TestObfuscatorArtifacts(t *testing.T) {
	opts := baseOptions(3)

	cfg, err := Resolve(opts)
	require.NoError(t, err)

	module := sampleModule()

	result, err := NewObfuscator(cfg, discardLogger()).Run(context.Background(), module)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Renames)
	assert.Len(t, result.SiteKey, 32)
	assert.Greater(t, result.Stats.Strings, 0)
	assert.Greater(t, result.Stats.Renamed, 0)

	// The string helper landed in the module and is hinted.
	require.NotEmpty(t, result.Hints)

	found := false

	for _, stmt := range module.Body {
		if def, ok := stmt.(*m.FunctionDef); ok && def.Name == result.Hints[0].HelperName {
			found = true
		}
	}

	assert.True(t, found, "helper definition missing from module body")
}

func TestObfuscatorRiskyWarning(t *testing.T) {
	opts := baseOptions(2)
	opts.DynamicAllow = "call:builtins_eval_call"

	cfg, err := Resolve(opts)
	require.NoError(t, err)

	module := sampleModule()

	result, err := NewObfuscator(cfg, discardLogger()).Run(context.Background(), module)
	require.NoError(t, err)

	require.NotEmpty(t, result.Stats.Warnings)
	assert.Contains(t, result.Stats.Warnings[0], "risky method enabled")
}

func TestObfuscatorKeepsDocstrings(t *testing.T) {
	opts := baseOptions(2)
	opts.KeepDocstrings = true

	cfg, err := Resolve(opts)
	require.NoError(t, err)

	module := sampleModule()

	_, err = NewObfuscator(cfg, discardLogger()).Run(context.Background(), module)
	require.NoError(t, err)

	// The leading docstring is still the first statement and still a string.
	expr, ok := module.Body[0].(*m.ExprStmt)
	require.True(t, ok)

	str, ok := expr.Value.(*m.Str)
	require.True(t, ok)
	assert.Equal(t, "module docstring", str.Value)
}
