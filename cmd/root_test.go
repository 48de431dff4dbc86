package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "veil", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootSubcommands(t *testing.T) {
	expected := map[string]bool{
		"obfuscate":   false,
		"deobfuscate": false,
		"explain":     false,
		"version":     false,
	}

	for _, sub := range rootCmd.Commands() {
		if _, ok := expected[sub.Name()]; ok {
			expected[sub.Name()] = true
		}
	}

	for name, found := range expected {
		assert.True(t, found, "subcommand %q not registered", name)
	}
}

func TestRootPersistentFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("log-file"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))

	verbose := rootCmd.PersistentFlags().Lookup("verbose")
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestObfuscateCommandFlags(t *testing.T) {
	sub, _, err := rootCmd.Find([]string{"obfuscate"})
	require.NoError(t, err)

	for _, name := range []string{"output", "emit-source", "emit-meta", "emit-map", "level", "seed"} {
		assert.NotNil(t, sub.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestDeobfuscateCommandFlags(t *testing.T) {
	sub, _, err := rootCmd.Find([]string{"deobfuscate"})
	require.NoError(t, err)

	for _, name := range []string{"output", "meta", "mode", "force"} {
		assert.NotNil(t, sub.Flags().Lookup(name), "missing --%s", name)
	}

	mode := sub.Flags().Lookup("mode")
	assert.Equal(t, "best-effort", mode.DefValue)
}
