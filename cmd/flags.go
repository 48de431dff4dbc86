package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"veil.dev/pkg/veil/internal/domain"
	m "veil.dev/pkg/veil/internal/model"
)

// featureFlagNames maps transform toggle flags to features. Toggles are
// tri-state: untouched flags inherit from the level and profile layers, so
// only explicitly-set values reach the resolver.
var featureFlagNames = map[string]m.Feature{
	"rename":   m.FeatureRename,
	"strings":  m.FeatureStrings,
	"ints":     m.FeatureInts,
	"floats":   m.FeatureFloats,
	"bytes":    m.FeatureBytes,
	"none":     m.FeatureNone,
	"bools":    m.FeatureBools,
	"flow":     m.FeatureFlow,
	"attrs":    m.FeatureAttrs,
	"setattrs": m.FeatureSetAttrs,
	"calls":    m.FeatureCalls,
	"builtins": m.FeatureBuiltins,
	"imports":  m.FeatureImports,
	"redirect": m.FeatureRedirect,
}

var rateFlagNames = map[string]m.Feature{
	"string-rate":  m.FeatureStrings,
	"int-rate":     m.FeatureInts,
	"float-rate":   m.FeatureFloats,
	"bytes-rate":   m.FeatureBytes,
	"bool-rate":    m.FeatureBools,
	"none-rate":    m.FeatureNone,
	"flow-rate":    m.FeatureFlow,
	"attr-rate":    m.FeatureAttrs,
	"setattr-rate": m.FeatureSetAttrs,
	"call-rate":    m.FeatureCalls,
	"builtin-rate": m.FeatureBuiltins,
	"import-rate":  m.FeatureImports,
}

var modeFlagNames = map[string]m.Feature{
	"string-mode":  m.FeatureStrings,
	"int-mode":     m.FeatureInts,
	"float-mode":   m.FeatureFloats,
	"bytes-mode":   m.FeatureBytes,
	"bool-mode":    m.FeatureBools,
	"none-mode":    m.FeatureNone,
	"attr-mode":    m.FeatureAttrs,
	"setattr-mode": m.FeatureSetAttrs,
	"call-mode":    m.FeatureCalls,
	"builtin-mode": m.FeatureBuiltins,
	"import-mode":  m.FeatureImports,
}

// optionFlags is the full obfuscation flag set, shared by the obfuscate and
// explain commands.
type optionFlags struct {
	level        int
	profile      string
	dynamicLevel string
	passes       int
	junk         int
	workers      int
	seed         int64
	valueSalt    uint64

	features map[string]*bool
	rates    map[string]*float64
	modes    map[string]*string

	order        string
	dynamicAllow string
	dynamicDeny  string

	redirectKinds string
	redirectMode  string
	redirectAll   bool
	redirectRate  float64
	redirectMax   int

	preserve      string
	preserveAttrs string

	keepDocstrings bool
	junkPosition   string

	chunkMin      int
	chunkMax      int
	stringHelpers int
	callHelpers   int
	flowCount     int

	metaIncludeSource bool
	omitRenameMap     bool
	omitHelperHints   bool
	metaMinimal       bool
}

func (o *optionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.IntVar(&o.level, levelFlagName, viper.GetInt(levelConfigKey), "obfuscation level (1-5)")
	bindFlagToConfig(flags.Lookup(levelFlagName), levelConfigKey)

	flags.StringVar(&o.profile, profileFlagName, viper.GetString(profileConfigKey), "preset profile (balanced, stealth, max)")
	bindFlagToConfig(flags.Lookup(profileFlagName), profileConfigKey)

	flags.StringVar(&o.dynamicLevel, dynamicLevelFlagName, viper.GetString(dynamicLevelConfigKey), "dynamic method pool tier (safe, medium, heavy)")
	bindFlagToConfig(flags.Lookup(dynamicLevelFlagName), dynamicLevelConfigKey)

	flags.IntVar(&o.passes, passesFlagName, viper.GetInt(passesConfigKey), "transform passes (0 inherits from level)")
	bindFlagToConfig(flags.Lookup(passesFlagName), passesConfigKey)

	flags.IntVar(&o.junk, junkFlagName, viper.GetInt(junkConfigKey), "inject N junk functions (negative inherits from level)")
	bindFlagToConfig(flags.Lookup(junkFlagName), junkConfigKey)

	flags.IntVar(&o.workers, workersFlagName, viper.GetInt(workersConfigKey), "worker count for the string literal stage")
	bindFlagToConfig(flags.Lookup(workersFlagName), workersConfigKey)

	flags.Int64Var(&o.seed, seedFlagName, 0, "deterministic random seed")
	flags.Uint64Var(&o.valueSalt, "value-salt", 0, "literal encoding salt (unset derives from the seed)")

	o.features = make(map[string]*bool, len(featureFlagNames))
	for name := range featureFlagNames {
		o.features[name] = flags.Bool(name, true, "toggle the "+name+" transform (--"+name+"=false disables)")
	}

	o.rates = make(map[string]*float64, len(rateFlagNames))
	for name := range rateFlagNames {
		o.rates[name] = flags.Float64(name, 1.0, "0.0-1.0 per-site chance for "+name[:len(name)-5]+" rewrites")
	}

	o.modes = make(map[string]*string, len(modeFlagNames))
	for name := range modeFlagNames {
		o.modes[name] = flags.String(name, "mixed", "strategy for "+name[:len(name)-5]+" rewrites")
	}

	flags.StringVar(&o.order, "order", "", "comma-separated per-pass transform order")
	flags.StringVar(&o.dynamicAllow, "dynamic-allow", "", "comma-separated family:strategy allow overrides")
	flags.StringVar(&o.dynamicDeny, "dynamic-deny", "", "comma-separated family:strategy deny overrides")

	flags.StringVar(&o.redirectKinds, "redirect-kinds", "", "comma-separated redirect kinds (class, function, variable)")
	flags.StringVar(&o.redirectMode, "redirect-mode", "mixed", "redirect lookup style (mixed, lambda, globals_get, dict_get, itemgetter)")
	flags.BoolVar(&o.redirectAll, "redirect-all", false, "redirect every eligible top-level symbol")
	flags.Float64Var(&o.redirectRate, "redirect-rate", 1.0, "0.0-1.0 chance to redirect each eligible symbol")
	flags.IntVar(&o.redirectMax, "redirect-max", 0, "cap on redirected symbols (0 inherits)")

	flags.StringVar(&o.preserve, "preserve", "", "comma-separated names to never rename")
	flags.StringVar(&o.preserveAttrs, "preserve-attrs", "", "comma-separated attribute names to avoid getattr-rewrite")

	flags.BoolVar(&o.keepDocstrings, "keep-docstrings", false, "keep docstrings intact")
	flags.StringVar(&o.junkPosition, "junk-position", "top", "where to place junk functions (top, bottom, random)")

	flags.IntVar(&o.chunkMin, "string-chunk-min", 1, "minimum string chunk size")
	flags.IntVar(&o.chunkMax, "string-chunk-max", 6, "maximum string chunk size")
	flags.IntVar(&o.stringHelpers, "string-helpers", 1, "bound on synthesized string decode helpers")
	flags.IntVar(&o.callHelpers, "call-helpers", 1, "bound on synthesized call wrapper helpers")
	flags.IntVar(&o.flowCount, "flow-count", 0, "max dead blocks per function per pass (0 inherits)")

	flags.BoolVar(&o.metaIncludeSource, "meta-include-source", false, "embed compressed original source in metadata")
	flags.BoolVar(&o.omitRenameMap, "meta-omit-rename-map", false, "omit the rename map from metadata")
	flags.BoolVar(&o.omitHelperHints, "meta-omit-helper-hints", false, "omit helper hints from metadata")
	flags.BoolVar(&o.metaMinimal, "meta-minimal", false, "omit source, rename map and helper hints together")
}

// options builds the resolver input from the parsed flags. Tri-state flags
// only carry through when explicitly changed on the command line.
func (o *optionFlags) options(cmd *cobra.Command) domain.Options {
	flags := cmd.Flags()

	opts := domain.Options{
		Level:        o.level,
		Profile:      o.profile,
		DynamicLevel: o.dynamicLevel,
		Passes:       o.passes,
		Junk:         o.junk,
		MTWorkers:    o.workers,

		Seed:    o.seed,
		SeedSet: flags.Changed(seedFlagName),

		Features: make(map[m.Feature]*bool),
		Rates:    make(map[m.Feature]*float64),
		Modes:    make(map[m.Feature]string),

		Order:        o.order,
		DynamicAllow: o.dynamicAllow,
		DynamicDeny:  o.dynamicDeny,

		RedirectKinds: o.redirectKinds,
		RedirectMode:  o.redirectMode,
		RedirectAll:   o.redirectAll,

		Preserve:      o.preserve,
		PreserveAttrs: o.preserveAttrs,

		KeepDocstrings: o.keepDocstrings,
		JunkPosition:   o.junkPosition,

		StringChunkMin: o.chunkMin,
		StringChunkMax: o.chunkMax,
		StringHelpers:  o.stringHelpers,
		CallHelpers:    o.callHelpers,

		MetaIncludeSource: o.metaIncludeSource && !o.metaMinimal,
		OmitRenameMap:     o.omitRenameMap || o.metaMinimal,
		OmitHelperHints:   o.omitHelperHints || o.metaMinimal,
	}

	for name, feature := range featureFlagNames {
		if flags.Changed(name) {
			value := *o.features[name]
			opts.Features[feature] = &value
		}
	}

	for name, feature := range rateFlagNames {
		if flags.Changed(name) {
			value := *o.rates[name]
			opts.Rates[feature] = &value
		}
	}

	for name, feature := range modeFlagNames {
		if flags.Changed(name) {
			opts.Modes[feature] = *o.modes[name]
		}
	}

	if flags.Changed("value-salt") {
		value := o.valueSalt
		opts.ValueSalt = &value
	}

	if flags.Changed("redirect-rate") {
		value := o.redirectRate
		opts.RedirectRate = &value
	}

	if flags.Changed("redirect-max") {
		value := o.redirectMax
		opts.RedirectMax = &value
	}

	if flags.Changed("flow-count") {
		value := o.flowCount
		opts.FlowCount = &value
	}

	return opts
}
