package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

// baseOptions returns a minimal valid Options value for one level.
func baseOptions(level int) Options {
	return Options{
		Level:          level,
		Seed:           42,
		SeedSet:        true,
		Junk:           -1,
		StringChunkMin: 1,
		StringChunkMax: 6,
		MTWorkers:      1,
	}
}

func TestResolveLayering(t *testing.T) {
	t.Run("level defaults apply", func(t *testing.T) {
		cfg, err := Resolve(baseOptions(3))
		require.NoError(t, err)

		assert.True(t, cfg.Enabled(m.FeatureRename))
		assert.True(t, cfg.Enabled(m.FeatureStrings))
		assert.False(t, cfg.Enabled(m.FeatureRedirect))
		assert.Equal(t, 0.5, cfg.Rate(m.FeatureAttrs))
		assert.Equal(t, 1, cfg.Passes)
	})

	t.Run("profile overlays the level", func(t *testing.T) {
		opts := baseOptions(3)
		opts.Profile = "stealth"

		cfg, err := Resolve(opts)
		require.NoError(t, err)

		assert.Equal(t, 0.3, cfg.Rate(m.FeatureAttrs))
		assert.False(t, cfg.Enabled(m.FeatureBytes))
		assert.Equal(t, m.TierSafe, cfg.DynamicLevel)
	})

	t.Run("explicit flag beats level and profile", func(t *testing.T) {
		rate := 0.9
		opts := baseOptions(3)
		opts.Profile = "stealth"
		opts.Rates = map[m.Feature]*float64{m.FeatureAttrs: &rate}

		cfg, err := Resolve(opts)
		require.NoError(t, err)

		assert.Equal(t, 0.9, cfg.Rate(m.FeatureAttrs))
	})

	t.Run("explicit toggle beats the profile", func(t *testing.T) {
		off := false
		opts := baseOptions(5)
		opts.Profile = "max"
		opts.Features = map[m.Feature]*bool{m.FeatureStrings: &off}

		cfg, err := Resolve(opts)
		require.NoError(t, err)

		assert.False(t, cfg.Enabled(m.FeatureStrings))
	})

	t.Run("max profile turns redirect-all on", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Profile = "max"

		cfg, err := Resolve(opts)
		require.NoError(t, err)

		assert.True(t, cfg.Enabled(m.FeatureRedirect))
		assert.True(t, cfg.Redirect.All)
		assert.Equal(t, m.TierHeavy, cfg.DynamicLevel)
	})
}

func TestResolveRejectsBadInput(t *testing.T) {
	t.Run("unknown level", func(t *testing.T) {
		_, err := Resolve(baseOptions(9))
		require.Error(t, err)
		assert.ErrorContains(t, err, "unknown level")
	})

	t.Run("unknown profile", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Profile = "extreme"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, `unknown profile "extreme"`)
	})

	t.Run("unknown dynamic level", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicLevel = "ultra"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "unknown dynamic level")
	})

	t.Run("rate outside range", func(t *testing.T) {
		rate := 1.5
		opts := baseOptions(2)
		opts.Rates = map[m.Feature]*float64{m.FeatureCalls: &rate}

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "outside [0.0, 1.0]")
	})

	t.Run("chunk bounds", func(t *testing.T) {
		opts := baseOptions(2)
		opts.StringChunkMin = 4
		opts.StringChunkMax = 2

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "exceeds max")
	})

	t.Run("junk position", func(t *testing.T) {
		opts := baseOptions(2)
		opts.JunkPosition = "middle"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "unknown junk position")
	})
}

func TestResolveOrder(t *testing.T) {
	t.Run("empty order uses the default", func(t *testing.T) {
		cfg, err := Resolve(baseOptions(2))
		require.NoError(t, err)
		assert.Equal(t, m.PassOrderable, cfg.Order)
	})

	t.Run("custom order is honored", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Order = "ints, attrs,flow"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.Equal(t, []m.Feature{m.FeatureInts, m.FeatureAttrs, m.FeatureFlow}, cfg.Order)
	})

	t.Run("unknown transform rejected", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Order = "ints,warp"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, `unknown transform "warp"`)
	})

	t.Run("duplicate transform rejected", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Order = "ints,ints"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "duplicate transform")
	})
}

func TestResolveDynamicPools(t *testing.T) {
	hasMethod := func(pool []m.DynamicMethod, method m.DynamicMethod) bool {
		for _, candidate := range pool {
			if candidate == method {
				return true
			}
		}

		return false
	}

	t.Run("risky methods need an explicit allow", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicLevel = "heavy"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.False(t, hasMethod(cfg.Pool(m.FamilyCall), m.MethodEvalCall))
	})

	t.Run("explicit allow admits a risky method", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicAllow = "call:builtins_eval_call"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.True(t, hasMethod(cfg.Pool(m.FamilyCall), m.MethodEvalCall))
	})

	t.Run("deny vetoes an allow of the same method", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicAllow = "call:builtins_eval_call"
		opts.DynamicDeny = "call:builtins_eval_call"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.False(t, hasMethod(cfg.Pool(m.FamilyCall), m.MethodEvalCall))
	})

	t.Run("unqualified token resolves through its family", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicDeny = "lambda_wrap"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.False(t, hasMethod(cfg.Pool(m.FamilyCall), m.MethodLambdaWrap))
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicAllow = "call:teleport"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "unknown dynamic method")
	})

	t.Run("a family pool never ends up empty", func(t *testing.T) {
		opts := baseOptions(2)
		opts.DynamicDeny = "helper_wrap,lambda_wrap,builtins_eval_call"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.Pool(m.FamilyCall))
	})

	t.Run("mode flag narrows the pool", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Modes = map[m.Feature]string{m.FeatureAttrs: "attrgetter"}

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.Equal(t, []m.DynamicMethod{m.MethodOperatorAttrGet}, cfg.Pool(m.FamilyAttr))
	})
}

func TestResolveSeed(t *testing.T) {
	t.Run("explicit seed carries through", func(t *testing.T) {
		cfg, err := Resolve(baseOptions(2))
		require.NoError(t, err)
		assert.Equal(t, int64(42), cfg.Seed)
	})

	t.Run("value salt derives from the seed", func(t *testing.T) {
		first, err := Resolve(baseOptions(2))
		require.NoError(t, err)

		second, err := Resolve(baseOptions(2))
		require.NoError(t, err)

		assert.Equal(t, first.ValueSalt, second.ValueSalt)

		other := baseOptions(2)
		other.Seed = 43

		third, err := Resolve(other)
		require.NoError(t, err)
		assert.NotEqual(t, first.ValueSalt, third.ValueSalt)
	})

	t.Run("unset seed gets a fresh one", func(t *testing.T) {
		opts := baseOptions(2)
		opts.Seed = 0
		opts.SeedSet = false

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.NotZero(t, cfg.Seed)
	})
}

func TestResolveRedirectPolicy(t *testing.T) {
	t.Run("defaults cover every kind", func(t *testing.T) {
		cfg, err := Resolve(baseOptions(2))
		require.NoError(t, err)

		for _, kind := range m.RedirectKinds {
			assert.True(t, cfg.Redirect.Kinds[kind])
		}

		assert.Equal(t, 32, cfg.Redirect.Max)
	})

	t.Run("kind list narrows", func(t *testing.T) {
		opts := baseOptions(2)
		opts.RedirectKinds = "function"

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.True(t, cfg.Redirect.Kinds[m.RedirectFunction])
		assert.False(t, cfg.Redirect.Kinds[m.RedirectClass])
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		opts := baseOptions(2)
		opts.RedirectKinds = "module"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "unknown redirect kind")
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		opts := baseOptions(2)
		opts.RedirectMode = "teleport"

		_, err := Resolve(opts)
		assert.ErrorContains(t, err, "unknown redirect mode")
	})

	t.Run("explicit rate and cap", func(t *testing.T) {
		rate := 0.25
		max := 4
		opts := baseOptions(2)
		opts.RedirectRate = &rate
		opts.RedirectMax = &max

		cfg, err := Resolve(opts)
		require.NoError(t, err)
		assert.Equal(t, 0.25, cfg.Redirect.Rate)
		assert.Equal(t, 4, cfg.Redirect.Max)
	})
}

func TestResolvePreserveSets(t *testing.T) {
	opts := baseOptions(2)
	opts.Preserve = "main, handler"
	opts.PreserveAttrs = "dispatch"

	cfg, err := Resolve(opts)
	require.NoError(t, err)

	assert.True(t, cfg.PreserveNames["main"])
	assert.True(t, cfg.PreserveNames["handler"])
	// Forced entries are always present.
	assert.True(t, cfg.PreserveNames["__name__"])
	assert.True(t, cfg.PreserveAttrs["dispatch"])
	assert.True(t, cfg.PreserveAttrs["append"])
}
