package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObfName(t *testing.T) {
	assert.Equal(t, "_o0", obfName(0))
	assert.Equal(t, "_o1", obfName(1))
	assert.Equal(t, "_of", obfName(15))
	assert.Equal(t, "_o10", obfName(16))
	assert.Equal(t, "_off", obfName(255))
}

func TestNameGen(t *testing.T) {
	t.Run("names are distinct within a scope", func(t *testing.T) {
		gen := newNameGen(rand.New(rand.NewSource(1)))

		seen := make(map[string]bool)

		for i := 0; i < 64; i++ {
			name, err := gen.next("f")
			require.NoError(t, err)
			assert.False(t, seen[name], "duplicate %q", name)
			seen[name] = true
		}
	})

	t.Run("reserved names are skipped", func(t *testing.T) {
		gen := newNameGen(rand.New(rand.NewSource(1)))
		gen.reserve("", "_o0")
		gen.reserve("", "_o1")

		name, err := gen.next("")
		require.NoError(t, err)
		assert.Equal(t, "_o2", name)
	})

	t.Run("scopes are independent", func(t *testing.T) {
		gen := newNameGen(rand.New(rand.NewSource(1)))

		a, err := gen.next("f")
		require.NoError(t, err)

		b, err := gen.next("g")
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})
}

func TestDeriveValueSalt(t *testing.T) {
	assert.Equal(t, deriveValueSalt(7), deriveValueSalt(7))
	assert.NotEqual(t, deriveValueSalt(7), deriveValueSalt(8))
	assert.NotZero(t, deriveValueSalt(0))
}

func TestSiteSalts(t *testing.T) {
	key := deriveSiteKey(99, 1)
	require.Len(t, key, 32)

	// Per-site salts are stable for a key and distinct across sites.
	assert.Equal(t, siteSalt(key, "str:0"), siteSalt(key, "str:0"))
	assert.NotEqual(t, siteSalt(key, "str:0"), siteSalt(key, "str:1"))

	other := deriveSiteKey(100, 1)
	assert.NotEqual(t, siteSalt(key, "str:0"), siteSalt(other, "str:0"))

	// The value salt shifts every site salt too.
	salted := deriveSiteKey(99, 2)
	assert.NotEqual(t, siteSalt(key, "str:0"), siteSalt(salted, "str:0"))
}

func TestSiteKeyCodec(t *testing.T) {
	key := deriveSiteKey(5, 1)

	decoded, ok := decodeSiteKey(encodeSiteKey(key))
	require.True(t, ok)
	assert.Equal(t, key, decoded)

	_, ok = decodeSiteKey("zz")
	assert.False(t, ok)

	_, ok = decodeSiteKey("abcd")
	assert.False(t, ok)
}
