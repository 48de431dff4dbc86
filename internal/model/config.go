package model

// Feature identifies one independently-configurable transform family.
type Feature string

// Available Feature values.
const (
	FeatureRename   Feature = "rename"
	FeatureStrings  Feature = "strings"
	FeatureInts     Feature = "ints"
	FeatureFloats   Feature = "floats"
	FeatureBytes    Feature = "bytes"
	FeatureNone     Feature = "none"
	FeatureBools    Feature = "bools"
	FeatureFlow     Feature = "flow"
	FeatureAttrs    Feature = "attrs"
	FeatureSetAttrs Feature = "setattrs"
	FeatureCalls    Feature = "calls"
	FeatureBuiltins Feature = "builtins"
	FeatureImports  Feature = "imports"
	FeatureRedirect Feature = "redirect"
)

// PassOrderable lists the transforms accepted by --order, in the default
// order. Renaming, the parallel string stage, builtin aliasing and the
// frontline redirect run at fixed points of the pipeline and are not
// reorderable.
var PassOrderable = []Feature{
	FeatureAttrs,
	FeatureSetAttrs,
	FeatureCalls,
	FeatureImports,
	FeatureBools,
	FeatureInts,
	FeatureFloats,
	FeatureBytes,
	FeatureNone,
	FeatureFlow,
}

// RedirectKind selects which top-level definitions the frontline redirect
// targets.
type RedirectKind string

// Available RedirectKind values.
const (
	RedirectClass    RedirectKind = "class"
	RedirectFunction RedirectKind = "function"
	RedirectVariable RedirectKind = "variable"
)

// RedirectKinds lists every kind in canonical order.
var RedirectKinds = []RedirectKind{RedirectClass, RedirectFunction, RedirectVariable}

// RedirectMode selects how a redirected symbol is resolved at runtime.
type RedirectMode string

// Available RedirectMode values.
const (
	RedirectModeMixed      RedirectMode = "mixed"
	RedirectModeLambda     RedirectMode = "lambda"
	RedirectModeGlobalsGet RedirectMode = "globals_get"
	RedirectModeDictGet    RedirectMode = "dict_get"
	RedirectModeItemGetter RedirectMode = "itemgetter"
)

// RedirectPolicy configures the frontline redirector. All bypasses Rate and
// Max entirely: every eligible symbol is redirected.
type RedirectPolicy struct {
	Kinds map[RedirectKind]bool
	Modes map[RedirectKind]RedirectMode
	All   bool
	Rate  float64
	Max   int
}

// MetaPolicy controls which optional sections the metadata engine writes.
type MetaPolicy struct {
	IncludeSource   bool
	OmitRenameMap   bool
	OmitHelperHints bool
}

// EffectiveConfig is the single fully-resolved configuration for a run.
// It is built once by the resolver and treated as read-only afterwards.
type EffectiveConfig struct {
	Level        int
	Profile      string
	DynamicLevel DynamicTier
	Seed         int64
	ValueSalt    uint64
	Passes       int

	Features map[Feature]bool
	Rates    map[Feature]float64
	Modes    map[Feature]string

	Order []Feature

	DynamicMethods map[MethodFamily][]DynamicMethod

	Redirect RedirectPolicy
	Meta     MetaPolicy

	StringChunkMin int
	StringChunkMax int
	StringHelpers  int
	CallHelpers    int

	Junk         int
	JunkPosition string

	FlowCount int
	MTWorkers int

	KeepDocstrings bool
	PreserveNames  map[string]bool
	PreserveAttrs  map[string]bool
}

// Enabled reports whether a feature is switched on.
func (c *EffectiveConfig) Enabled(f Feature) bool {
	return c.Features[f]
}

// Rate returns the per-site transform probability for a feature,
// defaulting to 1.0 when unset.
func (c *EffectiveConfig) Rate(f Feature) float64 {
	rate, ok := c.Rates[f]
	if !ok {
		return 1.0
	}

	return rate
}

// Mode returns the strategy mode for a feature, defaulting to "mixed".
func (c *EffectiveConfig) Mode(f Feature) string {
	mode, ok := c.Modes[f]
	if !ok || mode == "" {
		return "mixed"
	}

	return mode
}

// Pool returns the resolved dynamic method pool for a family.
func (c *EffectiveConfig) Pool(family MethodFamily) []DynamicMethod {
	return c.DynamicMethods[family]
}
