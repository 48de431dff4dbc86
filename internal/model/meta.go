package model

// RenameMap maps scope-qualified original identifiers to their obfuscated
// replacements. Keys are produced by QualifyName; the module scope qualifier
// is empty.
type RenameMap map[string]string

// QualifyName builds the scope-qualified key for a binding.
func QualifyName(scope, name string) string {
	if scope == "" {
		return name
	}

	return scope + "." + name
}

// Reversed returns the obfuscated-to-original mapping, dropping scope
// qualifiers. The second result counts obfuscated names claimed by more than
// one original; those entries are ambiguous and keep the first claim in
// map iteration-independent (lexicographically smallest key) order.
func (m RenameMap) Reversed() (map[string]string, int) {
	reversed := make(map[string]string, len(m))
	claimed := make(map[string]string, len(m))
	ambiguous := 0

	for key, obf := range m {
		original := key
		if idx := lastDot(key); idx >= 0 {
			original = key[idx+1:]
		}

		prior, ok := claimed[obf]
		switch {
		case !ok:
			claimed[obf] = key
			reversed[obf] = original
		case key < prior:
			ambiguous++
			claimed[obf] = key
			reversed[obf] = original
		default:
			ambiguous++
		}
	}

	return reversed, ambiguous
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}

	return -1
}

// HelperHint records everything the deobfuscation engine needs to recognize
// and invert one synthesized helper.
type HelperHint struct {
	HelperName string   `json:"helper_name"`
	Mode       string   `json:"mode"`
	Salt       uint64   `json:"salt"`
	Params     []string `json:"params,omitempty"`
}

// Metadata artifact versions. The reader accepts every listed version; the
// writer always emits the latest.
const (
	MetaVersionV1 = "obfumeta-v1"
	MetaVersionV2 = "obfumeta-v2"
)

// MetaConfig echoes the resolved configuration into the metadata artifact.
type MetaConfig struct {
	Level        int                `json:"level"`
	Profile      string             `json:"profile"`
	DynamicLevel string             `json:"dynamic_level"`
	Passes       int                `json:"passes"`
	Order        []string           `json:"order"`
	Rates        map[string]float64 `json:"rates"`
	Modes        map[string]string  `json:"modes"`
	Seed         int64              `json:"seed"`
}

// ObfuMeta is the versioned metadata artifact bundling everything needed for
// reversal. Optional sections may be omitted by MetaPolicy; readers degrade
// rather than fail when they are absent.
type ObfuMeta struct {
	Version      string         `json:"version"`
	CreatedUTC   string         `json:"created_utc,omitempty"`
	Config       *MetaConfig    `json:"config,omitempty"`
	Stats        map[string]int `json:"stats,omitempty"`
	RenameMap    RenameMap      `json:"rename_map,omitempty"`
	HelperHints  []HelperHint   `json:"helper_hints,omitempty"`
	ValueSalt    uint64         `json:"value_salt"`
	SiteSaltKey  string         `json:"site_salt_key,omitempty"`
	InputSHA256  string         `json:"input_sha256,omitempty"`
	OutputSHA256 string         `json:"output_sha256,omitempty"`
	Source       string         `json:"source_zlib_b64,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// KnownVersion reports whether the artifact's version is one this reader
// understands.
func (m *ObfuMeta) KnownVersion() bool {
	return m.Version == MetaVersionV1 || m.Version == MetaVersionV2
}
