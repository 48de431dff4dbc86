package passes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func junkModule() *m.Module {
	return &m.Module{Body: []m.Stmt{
		&m.ExprStmt{Value: &m.Str{Value: "docstring"}},
		&m.FunctionDef{Name: "real", Body: []m.Stmt{&m.Pass{}}},
	}}
}

func junkNames(module *m.Module) []string {
	var names []string

	for _, stmt := range module.Body {
		if def, ok := stmt.(*m.FunctionDef); ok && strings.HasPrefix(def.Name, "_junk_") {
			names = append(names, def.Name)
		}
	}

	return names
}

func TestInjectJunk(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		module := junkModule()

		assert.Zero(t, InjectJunk(module, testCtx(1, testCfg())))
		assert.Len(t, module.Body, 2)
	})

	t.Run("top position lands below the docstring", func(t *testing.T) {
		cfg := testCfg()
		cfg.Junk = 2

		module := junkModule()

		inserted := InjectJunk(module, testCtx(1, cfg))
		assert.Equal(t, 2, inserted)
		require.Len(t, module.Body, 4)

		doc, ok := module.Body[0].(*m.ExprStmt)
		require.True(t, ok)
		assert.Equal(t, "docstring", doc.Value.(*m.Str).Value)

		assert.ElementsMatch(t, []string{"_junk_0", "_junk_1"}, junkNames(module))
		assert.IsType(t, &m.FunctionDef{}, module.Body[1])
		assert.IsType(t, &m.FunctionDef{}, module.Body[2])
	})

	t.Run("bottom position appends", func(t *testing.T) {
		cfg := testCfg()
		cfg.Junk = 1
		cfg.JunkPosition = "bottom"

		module := junkModule()

		require.Equal(t, 1, InjectJunk(module, testCtx(1, cfg)))

		last, ok := module.Body[len(module.Body)-1].(*m.FunctionDef)
		require.True(t, ok)
		assert.Equal(t, "_junk_0", last.Name)
	})

	t.Run("name collisions step a suffix", func(t *testing.T) {
		cfg := testCfg()
		cfg.Junk = 1

		module := junkModule()
		module.Body = append(module.Body, &m.FunctionDef{Name: "_junk_0", Body: []m.Stmt{&m.Pass{}}})

		require.Equal(t, 1, InjectJunk(module, testCtx(1, cfg)))
		assert.ElementsMatch(t, []string{"_junk_0", "_junk_0_1"}, junkNames(module))
	})

	t.Run("decoy shape", func(t *testing.T) {
		cfg := testCfg()
		cfg.Junk = 1

		module := &m.Module{}

		require.Equal(t, 1, InjectJunk(module, testCtx(7, cfg)))

		def := module.Body[0].(*m.FunctionDef)
		require.Len(t, def.Params, 1)
		assert.Equal(t, "x", def.Params[0].Name)

		seed := def.Params[0].Default.(*m.Int).Value
		assert.GreaterOrEqual(t, seed, int64(100))
		assert.LessOrEqual(t, seed, int64(9999))

		// Assignment, guard, return.
		require.Len(t, def.Body, 3)
		assert.IsType(t, &m.Assign{}, def.Body[0])
		assert.IsType(t, &m.If{}, def.Body[1])
		assert.IsType(t, &m.Return{}, def.Body[2])
	})
}
