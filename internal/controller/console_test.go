package controller

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func consoleFixture() (*ConsoleUI, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "test"}

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	return NewConsoleUI(cmd), &buf
}

func TestDisplayObfuscation(t *testing.T) {
	ui, buf := consoleFixture()

	report := ObfuscationReport{
		Input:    "in.ast.json",
		Output:   "out.ast.json",
		MetaPath: "out.obfumeta.json",
		Level:    3,
		Profile:  "balanced",
		Seed:     42,
		Passes:   1,
		Counts: []m.StatCount{
			{Label: "renamed", Count: 5},
			{Label: "strings", Count: 2},
		},
		Warnings: []string{"risky method enabled: call:builtins_eval_call"},
	}

	require.NoError(t, ui.DisplayObfuscation(context.Background(), report))

	out := buf.String()
	assert.Contains(t, out, "obfuscated in.ast.json -> out.ast.json")
	assert.Contains(t, out, "level 3, profile balanced, seed 42, passes 1")
	assert.Contains(t, out, "renamed")
	assert.Contains(t, out, "strings")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "wrote out.obfumeta.json")
	assert.Contains(t, out, "warning: risky method enabled")
	assert.NotContains(t, out, "wrote \n")
}

func TestDisplayDeobfuscation(t *testing.T) {
	t.Run("embedded source path", func(t *testing.T) {
		ui, buf := consoleFixture()

		report := DeobfuscationReport{
			Output:       "restored.py",
			Mode:         "strict",
			FromEmbedded: true,
		}

		require.NoError(t, ui.DisplayDeobfuscation(context.Background(), report))
		assert.Contains(t, buf.String(), "restored restored.py verbatim from embedded source")
		assert.NotContains(t, buf.String(), "---")
	})

	t.Run("best-effort with diff", func(t *testing.T) {
		ui, buf := consoleFixture()

		report := DeobfuscationReport{
			Output:           "restored.py",
			Mode:             "best-effort",
			RenamesReverted:  4,
			LiteralsFolded:   2,
			CallsUnwrapped:   1,
			ObfuscatedSource: "_o0 = 1\n",
			RestoredSource:   "count = 1\n",
			Warnings:         []string{"rename map reversal had 1 ambiguous entries; some identifiers may be misattributed"},
		}

		require.NoError(t, ui.DisplayDeobfuscation(context.Background(), report))

		out := buf.String()
		assert.Contains(t, out, "4 renames reverted, 2 literals folded, 1 calls unwrapped")
		assert.Contains(t, out, "warning: rename map reversal")
		assert.Contains(t, out, "-_o0 = 1")
		assert.Contains(t, out, "+count = 1")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ui, buf := consoleFixture()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, ui.DisplayDeobfuscation(ctx, DeobfuscationReport{}))
		assert.Empty(t, buf.String())
	})
}
