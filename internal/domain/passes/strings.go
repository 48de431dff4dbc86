package passes

import (
	"math/rand"

	m "veil.dev/pkg/veil/internal/model"
)

// String encoding strategies. "mixed" draws per site.
var stringModes = []string{"xor", "b85", "reverse", "split"}

// stringLeafModes excludes split, which recurses into the leaves.
var stringLeafModes = []string{"xor", "b85", "reverse"}

// Helper mode selectors baked into emitted code.
const (
	StringModeXOR     int64 = 0
	StringModeB85     int64 = 1
	StringModeReverse int64 = 2
)

// CollectStrings lists every eligible string literal value in rewrite order.
// The order is the one ApplyStrings consumes results in, so collect, encode
// and apply agree site-by-site no matter how encoding is scheduled.
func CollectStrings(module *m.Module, keepDocstrings bool) []string {
	skip := skipSet(module, keepDocstrings)

	var values []string

	m.Rewrite(module, func(node m.Node) m.Node {
		if str, ok := node.(*m.Str); ok && str.Value != "" && !skip[str] {
			values = append(values, str.Value)
		}

		return node
	})

	return values
}

// ApplyStrings substitutes encoded expressions back in collection order and
// returns how many sites changed.
func ApplyStrings(module *m.Module, keepDocstrings bool, results []m.Expr) int {
	skip := skipSet(module, keepDocstrings)
	next := 0

	m.Rewrite(module, func(node m.Node) m.Node {
		str, ok := node.(*m.Str)
		if !ok || str.Value == "" || skip[str] || next >= len(results) {
			return node
		}

		expr := results[next]
		next++

		return expr
	})

	return next
}

func skipSet(module *m.Module, keepDocstrings bool) map[*m.Str]bool {
	if !keepDocstrings {
		return map[*m.Str]bool{}
	}

	return Docstrings(module)
}

// EncodeString builds the replacement expression for one string literal.
// Every random decision comes from the site's own salt, so workers never
// contend for a shared stream.
func EncodeString(helper string, cfg *m.EffectiveConfig, salt uint64, value string) m.Expr {
	rng := rand.New(rand.NewSource(int64(salt)))

	mode := cfg.Mode(m.FeatureStrings)
	if mode == "mixed" {
		mode = pick(rng, stringModes)
	}

	enc := stringEncoder{
		helper:   helper,
		rng:      rng,
		chunkMin: cfg.StringChunkMin,
		chunkMax: cfg.StringChunkMax,
	}

	if mode == "split" {
		return enc.split(value)
	}

	return enc.leaf(value, mode)
}

type stringEncoder struct {
	helper   string
	rng      *rand.Rand
	chunkMin int
	chunkMax int
}

func (e *stringEncoder) helperCall(mode int64, payload m.Expr) m.Expr {
	return &m.Call{
		Func: loadName(e.helper),
		Args: []m.Expr{&m.Int{Value: mode}, payload},
	}
}

func (e *stringEncoder) leaf(value, mode string) m.Expr {
	switch mode {
	case "b85":
		return e.helperCall(StringModeB85, &m.Str{Value: B85Encode([]byte(value))})
	case "reverse":
		return e.helperCall(StringModeReverse, &m.Str{Value: reverseString(value)})
	default:
		return e.xor(value)
	}
}

// xor splits the text into random-width chunks, each xored with its own key.
func (e *stringEncoder) xor(value string) m.Expr {
	runes := []rune(value)

	var chunks []m.Expr

	idx := 0
	for idx < len(runes) {
		hi := e.chunkMax
		if rest := len(runes) - idx; rest < hi {
			hi = rest
		}

		lo := e.chunkMin
		if lo > hi {
			lo = hi
		}

		step := intBetween(e.rng, lo, hi)
		key := int64(intBetween(e.rng, 1, 255))

		encoded := make([]int64, step)
		for i, r := range runes[idx : idx+step] {
			encoded[i] = int64(r) ^ key
		}

		chunks = append(chunks, &m.Tuple{
			Elts: []m.Expr{&m.Int{Value: key}, intTuple(encoded)},
			Ctx:  m.CtxLoad,
		})

		idx += step
	}

	return e.helperCall(StringModeXOR, &m.Tuple{Elts: chunks, Ctx: m.CtxLoad})
}

// split cuts the text into parts and concatenates independently-encoded
// leaves with +.
func (e *stringEncoder) split(value string) m.Expr {
	runes := []rune(value)
	if len(runes) <= 1 {
		return e.leaf(value, "xor")
	}

	var parts []string

	idx := 0
	for idx < len(runes) {
		hi := e.chunkMax
		if rest := len(runes) - idx; rest < hi {
			hi = rest
		}

		lo := e.chunkMin
		if lo > hi {
			lo = hi
		}

		step := intBetween(e.rng, lo, hi)
		parts = append(parts, string(runes[idx:idx+step]))
		idx += step
	}

	if len(parts) == 1 {
		return e.leaf(parts[0], "xor")
	}

	exprs := make([]m.Expr, len(parts))
	for i, part := range parts {
		exprs[i] = e.leaf(part, pick(e.rng, stringLeafModes))
	}

	return addChain(exprs)
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}

	return string(runes)
}
