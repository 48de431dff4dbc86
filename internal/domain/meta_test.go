package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func metaFixtures(t *testing.T, opts Options) (*m.EffectiveConfig, *Result) {
	t.Helper()

	cfg, err := Resolve(opts)
	require.NoError(t, err)

	result := &Result{
		Renames: m.RenameMap{"greet": "_o0", "greet.who": "_o1"},
		Hints: []m.HelperHint{
			{HelperName: "_obf_str", Mode: "string", Params: []string{"mode", "payload"}},
		},
		Stats:   &m.Stats{Renamed: 2, Strings: 3},
		SiteKey: deriveSiteKey(cfg.Seed, cfg.ValueSalt),
	}

	return cfg, result
}

func TestBuildMeta(t *testing.T) {
	t.Run("full metadata", func(t *testing.T) {
		opts := baseOptions(3)
		opts.MetaIncludeSource = true

		cfg, result := metaFixtures(t, opts)

		meta, err := BuildMeta(cfg, result, "x = 1\n", "_o0 = 1\n")
		require.NoError(t, err)

		assert.Equal(t, m.MetaVersionV2, meta.Version)

		created, err := time.Parse(time.RFC3339, meta.CreatedUTC)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), created, time.Minute)

		require.NotNil(t, meta.Config)
		assert.Equal(t, 3, meta.Config.Level)
		assert.Equal(t, opts.Seed, meta.Config.Seed)
		assert.Contains(t, meta.Config.Order, string(m.FeatureStrings))

		assert.Equal(t, cfg.ValueSalt, meta.ValueSalt)
		assert.Equal(t, encodeSiteKey(result.SiteKey), meta.SiteSaltKey)
		assert.Len(t, meta.SiteSaltKey, 64)

		assert.Equal(t, sha256Text("x = 1\n"), meta.InputSHA256)
		assert.Equal(t, sha256Text("_o0 = 1\n"), meta.OutputSHA256)
		assert.NotEqual(t, meta.InputSHA256, meta.OutputSHA256)

		assert.Equal(t, result.Renames, meta.RenameMap)
		assert.Equal(t, result.Hints, meta.HelperHints)

		require.NotEmpty(t, meta.Source)

		source, err := decodeSourcePayload(meta.Source)
		require.NoError(t, err)
		assert.Equal(t, "x = 1\n", source)
	})

	t.Run("stats section mirrors the counters", func(t *testing.T) {
		cfg, result := metaFixtures(t, baseOptions(2))

		meta, err := BuildMeta(cfg, result, "", "")
		require.NoError(t, err)

		assert.Len(t, meta.Stats, 15)
		assert.Equal(t, 2, meta.Stats["renamed"])
		assert.Equal(t, 3, meta.Stats["strings"])
		assert.Equal(t, 0, meta.Stats["junk_functions"])
	})

	t.Run("policy omissions", func(t *testing.T) {
		opts := baseOptions(2)
		opts.OmitRenameMap = true
		opts.OmitHelperHints = true

		cfg, result := metaFixtures(t, opts)

		meta, err := BuildMeta(cfg, result, "x = 1\n", "y = 1\n")
		require.NoError(t, err)

		assert.Nil(t, meta.RenameMap)
		assert.Nil(t, meta.HelperHints)
		assert.Empty(t, meta.Source)
	})
}

func TestSourcePayloadRoundTrip(t *testing.T) {
	original := "def main() -> None:\n    print(\"hi\")\n"

	payload, err := encodeSourcePayload(original)
	require.NoError(t, err)

	decoded, err := decodeSourcePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	t.Run("rejects malformed payloads", func(t *testing.T) {
		_, err := decodeSourcePayload("not base64!!")
		assert.ErrorContains(t, err, "decode source payload")

		_, err = decodeSourcePayload("aGVsbG8=")
		assert.ErrorContains(t, err, "decompress source payload")
	})
}
