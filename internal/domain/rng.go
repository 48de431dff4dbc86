package domain

import (
	"encoding/binary"
	"encoding/hex"
	"math/rand"

	"github.com/minio/highwayhash"

	m "veil.dev/pkg/veil/internal/model"
)

// splitmix64 expands a seed into a stream of well-mixed words. Used only to
// derive keys and salts, never for per-site decisions.
func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb

	return z ^ (z >> 31)
}

// deriveValueSalt produces the run-wide literal salt from the seed.
func deriveValueSalt(seed int64) uint64 {
	state := uint64(seed) ^ 0xa076_1d64_78bd_642f
	splitmix64(&state)

	return splitmix64(&state)
}

// deriveSiteKey produces the 32-byte hash key used to derive per-site salts,
// mixing the run's value salt into the seed. Workers hash their site key with
// this key instead of consuming the shared random stream, which keeps the
// string stage order-independent.
func deriveSiteKey(seed int64, valueSalt uint64) []byte {
	key := make([]byte, highwayhash.Size)
	state := uint64(seed) ^ valueSalt ^ 0x2545_f491_4f6c_dd1d

	for i := 0; i < len(key); i += 8 {
		binary.LittleEndian.PutUint64(key[i:], splitmix64(&state))
	}

	return key
}

// siteSalt hashes a stable site key into the per-site salt.
func siteSalt(key []byte, siteKey string) uint64 {
	return highwayhash.Sum64([]byte(siteKey), key)
}

// encodeSiteKey renders the hash key for the metadata artifact.
func encodeSiteKey(key []byte) string {
	return hex.EncodeToString(key)
}

// decodeSiteKey parses a hash key back from metadata.
func decodeSiteKey(encoded string) ([]byte, bool) {
	key, err := hex.DecodeString(encoded)
	if err != nil || len(key) != highwayhash.Size {
		return nil, false
	}

	return key, true
}

// nameGen hands out obfuscated identifiers. Scopes are independent: two
// scopes may receive the same name, but within one scope every name is
// distinct from both earlier grants and the identifiers already present.
type nameGen struct {
	rng     *rand.Rand
	scopes  map[string]map[string]bool
	counter map[string]int
}

func newNameGen(rng *rand.Rand) *nameGen {
	return &nameGen{
		rng:     rng,
		scopes:  make(map[string]map[string]bool),
		counter: make(map[string]int),
	}
}

// reserve marks an identifier as taken within scope.
func (g *nameGen) reserve(scope, name string) {
	if g.scopes[scope] == nil {
		g.scopes[scope] = make(map[string]bool)
	}

	g.scopes[scope][name] = true
}

const nameGenAttempts = 1 << 20

// next returns a fresh identifier for scope.
func (g *nameGen) next(scope string) (string, error) {
	if g.scopes[scope] == nil {
		g.scopes[scope] = make(map[string]bool)
	}

	used := g.scopes[scope]

	for attempt := 0; attempt < nameGenAttempts; attempt++ {
		name := obfName(g.counter[scope])
		g.counter[scope]++

		if !used[name] && !m.PythonKeywords[name] {
			used[name] = true

			return name, nil
		}
	}

	return "", &m.RenameCollisionError{Scope: scope, Name: obfName(g.counter[scope])}
}

// obfName renders the n-th generated identifier.
func obfName(n int) string {
	const digits = "0123456789abcdef"

	if n == 0 {
		return "_o0"
	}

	var buf [16]byte

	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n&0xf]
		n >>= 4
	}

	return "_o" + string(buf[i:])
}
