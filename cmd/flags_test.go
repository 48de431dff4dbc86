package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func parsedOptionFlags(t *testing.T, args ...string) (*optionFlags, *cobra.Command) {
	t.Helper()

	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}

	flags := &optionFlags{}
	flags.register(cmd)

	require.NoError(t, cmd.ParseFlags(args))

	return flags, cmd
}

func TestOptionsTriState(t *testing.T) {
	t.Run("untouched flags stay unset", func(t *testing.T) {
		flags, cmd := parsedOptionFlags(t)

		opts := flags.options(cmd)
		assert.Empty(t, opts.Features)
		assert.Empty(t, opts.Rates)
		assert.Empty(t, opts.Modes)
		assert.False(t, opts.SeedSet)
		assert.Nil(t, opts.ValueSalt)
		assert.Nil(t, opts.RedirectRate)
		assert.Nil(t, opts.RedirectMax)
		assert.Nil(t, opts.FlowCount)
	})

	t.Run("explicit flags carry through", func(t *testing.T) {
		flags, cmd := parsedOptionFlags(t,
			"--bytes=false", "--attr-rate", "0.9", "--string-mode", "b85",
			"--redirect-rate", "0.25", "--redirect-max", "4", "--flow-count", "2",
			"--seed", "1234", "--value-salt", "99")

		opts := flags.options(cmd)

		require.Contains(t, opts.Features, m.FeatureBytes)
		assert.False(t, *opts.Features[m.FeatureBytes])

		require.Contains(t, opts.Rates, m.FeatureAttrs)
		assert.Equal(t, 0.9, *opts.Rates[m.FeatureAttrs])

		assert.Equal(t, "b85", opts.Modes[m.FeatureStrings])

		require.NotNil(t, opts.RedirectRate)
		assert.Equal(t, 0.25, *opts.RedirectRate)

		require.NotNil(t, opts.RedirectMax)
		assert.Equal(t, 4, *opts.RedirectMax)

		require.NotNil(t, opts.FlowCount)
		assert.Equal(t, 2, *opts.FlowCount)

		assert.True(t, opts.SeedSet)
		assert.Equal(t, int64(1234), opts.Seed)

		require.NotNil(t, opts.ValueSalt)
		assert.Equal(t, uint64(99), *opts.ValueSalt)
	})
}

func TestOptionsMetaPolicy(t *testing.T) {
	t.Run("include source", func(t *testing.T) {
		flags, cmd := parsedOptionFlags(t, "--meta-include-source")

		opts := flags.options(cmd)
		assert.True(t, opts.MetaIncludeSource)
		assert.False(t, opts.OmitRenameMap)
		assert.False(t, opts.OmitHelperHints)
	})

	t.Run("meta-minimal strips everything", func(t *testing.T) {
		flags, cmd := parsedOptionFlags(t, "--meta-include-source", "--meta-minimal")

		opts := flags.options(cmd)
		assert.False(t, opts.MetaIncludeSource)
		assert.True(t, opts.OmitRenameMap)
		assert.True(t, opts.OmitHelperHints)
	})
}

func TestOptionsScalarPassthrough(t *testing.T) {
	flags, cmd := parsedOptionFlags(t,
		"--level", "4", "--profile", "stealth", "--dynamic-level", "heavy",
		"--passes", "3", "--junk", "2", "--mt-workers", "8",
		"--order", "ints,flow", "--dynamic-allow", "call:builtins_eval_call",
		"--redirect-kinds", "function", "--redirect-all",
		"--preserve", "main,handler", "--keep-docstrings",
		"--junk-position", "bottom", "--string-chunk-min", "2", "--string-chunk-max", "4")

	opts := flags.options(cmd)
	assert.Equal(t, 4, opts.Level)
	assert.Equal(t, "stealth", opts.Profile)
	assert.Equal(t, "heavy", opts.DynamicLevel)
	assert.Equal(t, 3, opts.Passes)
	assert.Equal(t, 2, opts.Junk)
	assert.Equal(t, 8, opts.MTWorkers)
	assert.Equal(t, "ints,flow", opts.Order)
	assert.Equal(t, "call:builtins_eval_call", opts.DynamicAllow)
	assert.Equal(t, "function", opts.RedirectKinds)
	assert.True(t, opts.RedirectAll)
	assert.Equal(t, "main,handler", opts.Preserve)
	assert.True(t, opts.KeepDocstrings)
	assert.Equal(t, "bottom", opts.JunkPosition)
	assert.Equal(t, 2, opts.StringChunkMin)
	assert.Equal(t, 4, opts.StringChunkMax)
}

func TestRegisterCoversEveryTransformFlag(t *testing.T) {
	_, cmd := parsedOptionFlags(t)

	for name := range featureFlagNames {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing toggle --%s", name)
	}

	for name := range rateFlagNames {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing rate --%s", name)
	}

	for name := range modeFlagNames {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing mode --%s", name)
	}
}
