// Package domain implements the obfuscation pipeline: configuration
// resolution, the transform passes, helper synthesis, metadata emission and
// metadata-driven reconstruction.
package domain

import (
	"strings"
	"time"

	m "veil.dev/pkg/veil/internal/model"
)

// Options carries the raw run parameters before resolution. Pointer fields
// distinguish "flag left at its default" from "flag explicitly set"; nil
// inherits from the level and profile layers.
type Options struct {
	Level        int
	Profile      string
	DynamicLevel string

	Passes int // <= 0 inherits
	Junk   int // < 0 inherits

	Seed    int64
	SeedSet bool

	// ValueSalt overrides the literal salt; nil derives it from the seed.
	ValueSalt *uint64

	Features map[m.Feature]*bool
	Rates    map[m.Feature]*float64
	Modes    map[m.Feature]string

	Order        string
	DynamicAllow string
	DynamicDeny  string

	RedirectKinds string
	RedirectMode  string
	RedirectAll   bool
	RedirectRate  *float64
	RedirectMax   *int

	Preserve      string
	PreserveAttrs string

	KeepDocstrings bool
	JunkPosition   string

	StringChunkMin int
	StringChunkMax int
	StringHelpers  int
	CallHelpers    int

	FlowCount *int

	MTWorkers int

	MetaIncludeSource bool
	OmitRenameMap     bool
	OmitHelperHints   bool
}

// levelPreset is one row of the level ladder.
type levelPreset struct {
	features  map[m.Feature]bool
	rates     map[m.Feature]float64
	passes    int
	junk      int
	flowCount int
}

// profilePreset overlays a level preset. Zero-valued fields still apply;
// profiles are complete rows, not sparse patches, except redirect which only
// the max profile turns on.
type profilePreset struct {
	features     map[m.Feature]bool
	rates        map[m.Feature]float64
	passes       int
	junk         int
	flowCount    int
	dynamicLevel m.DynamicTier
	redirectAll  bool
}

func levelPresets() map[int]levelPreset {
	on := func(features ...m.Feature) map[m.Feature]bool {
		out := make(map[m.Feature]bool, len(features))
		for _, f := range features {
			out[f] = true
		}

		return out
	}

	return map[int]levelPreset{
		1: {
			features:  on(m.FeatureRename),
			rates:     uniformRates(1.0),
			passes:    1,
			junk:      0,
			flowCount: 1,
		},
		2: {
			features:  on(m.FeatureRename, m.FeatureStrings, m.FeatureBuiltins),
			rates:     uniformRates(1.0),
			passes:    1,
			junk:      0,
			flowCount: 1,
		},
		3: {
			features: on(
				m.FeatureRename, m.FeatureStrings, m.FeatureInts, m.FeatureFloats,
				m.FeatureNone, m.FeatureFlow, m.FeatureSetAttrs, m.FeatureBuiltins,
			),
			rates: map[m.Feature]float64{
				m.FeatureAttrs:    0.5,
				m.FeatureSetAttrs: 0.8,
				m.FeatureCalls:    0.6,
				m.FeatureBuiltins: 0.9,
				m.FeatureImports:  0.5,
				m.FeatureFlow:     0.75,
				m.FeatureRedirect: 0.5,
			},
			passes:    1,
			junk:      0,
			flowCount: 1,
		},
		4: {
			features: on(
				m.FeatureRename, m.FeatureStrings, m.FeatureInts, m.FeatureFloats,
				m.FeatureBytes, m.FeatureNone, m.FeatureBools, m.FeatureFlow,
				m.FeatureAttrs, m.FeatureSetAttrs, m.FeatureCalls, m.FeatureBuiltins,
				m.FeatureImports,
			),
			rates: map[m.Feature]float64{
				m.FeatureAttrs:    0.75,
				m.FeatureSetAttrs: 0.85,
				m.FeatureCalls:    0.7,
				m.FeatureBuiltins: 0.95,
				m.FeatureImports:  0.7,
				m.FeatureFlow:     0.85,
				m.FeatureRedirect: 0.5,
			},
			passes:    2,
			junk:      1,
			flowCount: 1,
		},
		5: {
			features: on(
				m.FeatureRename, m.FeatureStrings, m.FeatureInts, m.FeatureFloats,
				m.FeatureBytes, m.FeatureNone, m.FeatureBools, m.FeatureFlow,
				m.FeatureAttrs, m.FeatureSetAttrs, m.FeatureCalls, m.FeatureBuiltins,
				m.FeatureImports, m.FeatureRedirect,
			),
			rates:     uniformRates(1.0),
			passes:    2,
			junk:      3,
			flowCount: 2,
		},
	}
}

func profilePresets() map[string]profilePreset {
	allOn := func(except ...m.Feature) map[m.Feature]bool {
		out := map[m.Feature]bool{
			m.FeatureRename: true, m.FeatureStrings: true, m.FeatureInts: true,
			m.FeatureFloats: true, m.FeatureBytes: true, m.FeatureNone: true,
			m.FeatureBools: true, m.FeatureFlow: true, m.FeatureAttrs: true,
			m.FeatureSetAttrs: true, m.FeatureCalls: true, m.FeatureBuiltins: true,
			m.FeatureImports: true,
		}
		for _, f := range except {
			out[f] = false
		}

		return out
	}

	return map[string]profilePreset{
		"balanced": {
			features: allOn(),
			rates: map[m.Feature]float64{
				m.FeatureAttrs:    0.75,
				m.FeatureSetAttrs: 0.8,
				m.FeatureCalls:    0.65,
				m.FeatureBuiltins: 0.9,
				m.FeatureImports:  0.6,
				m.FeatureFlow:     0.75,
				m.FeatureRedirect: 0.5,
			},
			passes:       2,
			junk:         1,
			flowCount:    1,
			dynamicLevel: m.TierMedium,
		},
		"stealth": {
			features: allOn(m.FeatureBytes),
			rates: map[m.Feature]float64{
				m.FeatureAttrs:    0.3,
				m.FeatureSetAttrs: 0.45,
				m.FeatureCalls:    0.4,
				m.FeatureBuiltins: 0.6,
				m.FeatureImports:  0.25,
				m.FeatureFlow:     0.35,
				m.FeatureRedirect: 0.25,
			},
			passes:       1,
			junk:         0,
			flowCount:    1,
			dynamicLevel: m.TierSafe,
		},
		"max": {
			features:     allOn(),
			rates:        uniformRates(1.0),
			passes:       3,
			junk:         4,
			flowCount:    2,
			dynamicLevel: m.TierHeavy,
			redirectAll:  true,
		},
	}
}

func uniformRates(value float64) map[m.Feature]float64 {
	return map[m.Feature]float64{
		m.FeatureAttrs:    value,
		m.FeatureSetAttrs: value,
		m.FeatureCalls:    value,
		m.FeatureBuiltins: value,
		m.FeatureImports:  value,
		m.FeatureFlow:     value,
		m.FeatureRedirect: value,
	}
}

// rated lists the features whose rates are configurable. Literal passes are
// all-or-nothing and carry an implicit rate of 1.0.
var rated = []m.Feature{
	m.FeatureAttrs, m.FeatureSetAttrs, m.FeatureCalls, m.FeatureBuiltins,
	m.FeatureImports, m.FeatureFlow, m.FeatureRedirect,
}

// Resolve builds the EffectiveConfig for a run. Precedence, lowest to
// highest: level defaults, profile preset, dynamic-level tier defaults,
// allow/deny overrides, explicit per-feature flags. Each layer overrides
// field-by-field; a field left unset inherits from the layer below.
func Resolve(opts Options) (*m.EffectiveConfig, error) {
	base, ok := levelPresets()[opts.Level]
	if !ok {
		return nil, m.Configf("unknown level %d (expected 1-5)", opts.Level)
	}

	features := make(map[m.Feature]bool, len(base.features))
	for f, v := range base.features {
		features[f] = v
	}

	rates := make(map[m.Feature]float64, len(base.rates))
	for f, v := range base.rates {
		rates[f] = v
	}

	passes := base.passes
	junk := base.junk
	flowCount := base.flowCount
	tier := m.TierSafe
	redirectAll := false

	if opts.Profile != "" {
		prof, ok := profilePresets()[opts.Profile]
		if !ok {
			return nil, m.Configf("unknown profile %q", opts.Profile)
		}

		for f, v := range prof.features {
			features[f] = v
		}

		for f, v := range prof.rates {
			rates[f] = v
		}

		passes = prof.passes
		junk = prof.junk
		flowCount = prof.flowCount
		tier = prof.dynamicLevel
		redirectAll = prof.redirectAll

		if redirectAll {
			features[m.FeatureRedirect] = true
		}
	}

	if opts.DynamicLevel != "" {
		switch m.DynamicTier(opts.DynamicLevel) {
		case m.TierSafe, m.TierMedium, m.TierHeavy:
			tier = m.DynamicTier(opts.DynamicLevel)
		default:
			return nil, m.Configf("unknown dynamic level %q", opts.DynamicLevel)
		}
	}

	pools, err := resolvePools(tier, opts)
	if err != nil {
		return nil, err
	}

	// Explicit flags are the top layer.
	for f, v := range opts.Features {
		if v != nil {
			features[f] = *v
		}
	}

	for f, v := range opts.Rates {
		if v != nil {
			rates[f] = *v
		}
	}

	modes := make(map[m.Feature]string, len(opts.Modes))
	for f, v := range opts.Modes {
		if v != "" {
			modes[f] = v
		}
	}

	if opts.Passes > 0 {
		passes = opts.Passes
	}

	if opts.Junk >= 0 {
		junk = opts.Junk
	}

	if opts.FlowCount != nil {
		flowCount = *opts.FlowCount
	}

	for _, f := range rated {
		if rate := rates[f]; rate < 0.0 || rate > 1.0 {
			return nil, m.Configf("%s rate %.3f outside [0.0, 1.0]", f, rate)
		}
	}

	if flowCount < 1 {
		return nil, m.Configf("flow count must be >= 1, got %d", flowCount)
	}

	order, err := parseOrder(opts.Order)
	if err != nil {
		return nil, err
	}

	redirect, err := resolveRedirect(opts, rates, redirectAll)
	if err != nil {
		return nil, err
	}

	chunkMin, chunkMax := opts.StringChunkMin, opts.StringChunkMax
	if chunkMin <= 0 || chunkMax <= 0 {
		return nil, m.Configf("string chunk sizes must be >= 1")
	}

	if chunkMin > chunkMax {
		return nil, m.Configf("string chunk min %d exceeds max %d", chunkMin, chunkMax)
	}

	workers := opts.MTWorkers
	if workers < 1 {
		workers = 1
	}

	junkPosition := opts.JunkPosition
	switch junkPosition {
	case "", "top":
		junkPosition = "top"
	case "bottom", "random":
	default:
		return nil, m.Configf("unknown junk position %q", junkPosition)
	}

	stringHelpers := opts.StringHelpers
	if stringHelpers < 1 {
		stringHelpers = 1
	}

	callHelpers := opts.CallHelpers
	if callHelpers < 1 {
		callHelpers = 1
	}

	// Without an explicit seed every run gets a fresh one. Determinism is
	// guaranteed per seed, not across seeds.
	seed := opts.Seed
	if !opts.SeedSet {
		seed = time.Now().UnixNano()
	}

	valueSalt := deriveValueSalt(seed)
	if opts.ValueSalt != nil {
		valueSalt = *opts.ValueSalt
	}

	cfg := &m.EffectiveConfig{
		Level:          opts.Level,
		Profile:        opts.Profile,
		DynamicLevel:   tier,
		Seed:           seed,
		ValueSalt:      valueSalt,
		Passes:         maxInt(1, passes),
		Features:       features,
		Rates:          rates,
		Modes:          modes,
		Order:          order,
		DynamicMethods: pools,
		Redirect:       redirect,
		Meta: m.MetaPolicy{
			IncludeSource:   opts.MetaIncludeSource,
			OmitRenameMap:   opts.OmitRenameMap,
			OmitHelperHints: opts.OmitHelperHints,
		},
		StringChunkMin: chunkMin,
		StringChunkMax: chunkMax,
		StringHelpers:  stringHelpers,
		CallHelpers:    callHelpers,
		Junk:           maxInt(0, junk),
		JunkPosition:   junkPosition,
		FlowCount:      flowCount,
		MTWorkers:      workers,
		KeepDocstrings: opts.KeepDocstrings,
		PreserveNames:  preserveSet(opts.Preserve, forcedPreserveNames),
		PreserveAttrs:  preserveSet(opts.PreserveAttrs, forcedPreserveAttrs),
	}

	return cfg, nil
}

// forcedPreserveNames are always off-limits to the renamer: touching them
// changes module identity semantics.
var forcedPreserveNames = []string{"__name__", "__file__", "__package__", "__spec__"}

// forcedPreserveAttrs are common protocol methods whose getattr-rewrite buys
// nothing and costs readability of the diff when debugging.
var forcedPreserveAttrs = []string{
	"format", "append", "extend", "items", "keys", "values", "read", "write", "close",
}

func preserveSet(raw string, forced []string) map[string]bool {
	out := make(map[string]bool, len(forced))

	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out[name] = true
		}
	}

	for _, name := range forced {
		out[name] = true
	}

	return out
}

func parseOrder(raw string) ([]m.Feature, error) {
	if strings.TrimSpace(raw) == "" {
		out := make([]m.Feature, len(m.PassOrderable))
		copy(out, m.PassOrderable)

		return out, nil
	}

	allowed := make(map[m.Feature]bool, len(m.PassOrderable))
	for _, f := range m.PassOrderable {
		allowed[f] = true
	}

	seen := make(map[m.Feature]bool)

	var out []m.Feature

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		f := m.Feature(part)
		if !allowed[f] {
			return nil, m.Configf("unknown transform %q in order", part)
		}

		if seen[f] {
			return nil, m.Configf("duplicate transform %q in order", part)
		}

		seen[f] = true

		out = append(out, f)
	}

	if len(out) == 0 {
		out = append(out, m.PassOrderable...)
	}

	return out, nil
}

// methodToken is one parsed allow/deny entry, optionally family-qualified.
type methodToken struct {
	family m.MethodFamily
	method m.DynamicMethod
}

func parseMethodTokens(raw string) ([]methodToken, error) {
	var out []methodToken

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if family, method, found := strings.Cut(part, ":"); found {
			out = append(out, methodToken{
				family: m.MethodFamily(strings.TrimSpace(family)),
				method: m.DynamicMethod(strings.TrimSpace(method)),
			})

			continue
		}

		out = append(out, methodToken{method: m.DynamicMethod(part)})
	}

	return out, nil
}

// resolveTargets expands a token into the families it addresses. Qualified
// tokens must name a real family/method pair; unqualified tokens must match
// at least one family's pool.
func resolveTargets(token methodToken) ([]m.MethodFamily, error) {
	if token.family != "" {
		if _, ok := m.AvailableMethods[token.family]; !ok {
			return nil, m.Configf("unknown dynamic method family %q", token.family)
		}

		if !m.MethodInFamily(token.family, token.method) {
			return nil, m.Configf("unknown dynamic method %s:%s", token.family, token.method)
		}

		return []m.MethodFamily{token.family}, nil
	}

	targets := m.FamiliesOf(token.method)
	if len(targets) == 0 {
		return nil, m.Configf("unknown dynamic method %q", token.method)
	}

	return targets, nil
}

func resolvePools(tier m.DynamicTier, opts Options) (map[m.MethodFamily][]m.DynamicMethod, error) {
	pools := make(map[m.MethodFamily]map[m.DynamicMethod]bool, len(m.MethodFamilies))
	for _, family := range m.MethodFamilies {
		pools[family] = make(map[m.DynamicMethod]bool)
		for _, method := range m.TierDefaults[tier][family] {
			pools[family][method] = true
		}
	}

	allowTokens, err := parseMethodTokens(opts.DynamicAllow)
	if err != nil {
		return nil, err
	}

	denyTokens, err := parseMethodTokens(opts.DynamicDeny)
	if err != nil {
		return nil, err
	}

	explicitAllow := make(map[m.MethodFamily]map[m.DynamicMethod]bool)

	for _, token := range allowTokens {
		targets, err := resolveTargets(token)
		if err != nil {
			return nil, err
		}

		for _, family := range targets {
			pools[family][token.method] = true

			if explicitAllow[family] == nil {
				explicitAllow[family] = make(map[m.DynamicMethod]bool)
			}

			explicitAllow[family][token.method] = true
		}
	}

	// Deny wins over allow for the same token.
	for _, token := range denyTokens {
		targets, err := resolveTargets(token)
		if err != nil {
			return nil, err
		}

		for _, family := range targets {
			delete(pools[family], token.method)
		}
	}

	// Risky strategies are opt-in only through an explicit allow token.
	for family, risky := range m.RiskyMethods {
		for method := range risky {
			if pools[family][method] && !explicitAllow[family][method] {
				delete(pools[family], method)
			}
		}
	}

	applyModePools(pools, opts.Modes)

	out := make(map[m.MethodFamily][]m.DynamicMethod, len(pools))

	for _, family := range m.MethodFamilies {
		var names []m.DynamicMethod

		for _, method := range m.AvailableMethods[family] {
			if pools[family][method] {
				names = append(names, method)
			}
		}

		// A family must never end up with an empty pool.
		if len(names) == 0 {
			names = []m.DynamicMethod{m.AvailableMethods[family][0]}
		}

		out[family] = names
	}

	return out, nil
}

// applyModePools narrows a family's pool when its mode flag names one
// concrete strategy instead of "mixed".
func applyModePools(pools map[m.MethodFamily]map[m.DynamicMethod]bool, modes map[m.Feature]string) {
	narrow := func(family m.MethodFamily, methods ...m.DynamicMethod) {
		pools[family] = make(map[m.DynamicMethod]bool, len(methods))
		for _, method := range methods {
			pools[family][method] = true
		}
	}

	switch modes[m.FeatureAttrs] {
	case "getattr":
		narrow(m.FamilyAttr, m.MethodGetattr)
	case "builtins":
		narrow(m.FamilyAttr, m.MethodBuiltinsGetattr)
	case "attrgetter":
		narrow(m.FamilyAttr, m.MethodOperatorAttrGet)
	case "lambda":
		narrow(m.FamilyAttr, m.MethodLambdaGetattr)
	}

	switch modes[m.FeatureSetAttrs] {
	case "setattr":
		narrow(m.FamilySetAttr, m.MethodSetattr, m.MethodDelattr)
	case "builtins":
		narrow(m.FamilySetAttr, m.MethodBuiltinsSetattr, m.MethodBuiltinsDelattr)
	case "lambda":
		narrow(m.FamilySetAttr, m.MethodLambdaSetattr, m.MethodLambdaDelattr)
	}

	switch modes[m.FeatureCalls] {
	case "wrap":
		narrow(m.FamilyCall, m.MethodHelperWrap)
	case "lambda":
		narrow(m.FamilyCall, m.MethodLambdaWrap)
	case "eval":
		narrow(m.FamilyCall, m.MethodEvalCall)
	}

	switch modes[m.FeatureBuiltins] {
	case "alias":
		narrow(m.FamilyBuiltin, m.MethodBuiltinAlias)
	case "getattr":
		narrow(m.FamilyBuiltin, m.MethodGetattrAlias)
	case "globals":
		narrow(m.FamilyBuiltin, m.MethodGlobalsLookup)
	}

	switch modes[m.FeatureImports] {
	case "dunder":
		narrow(m.FamilyImport, m.MethodDunderImport)
	case "importlib":
		narrow(m.FamilyImport, m.MethodImportlibImport)
	case "namespace":
		narrow(m.FamilyImport, m.MethodNamespaceImport)
	}
}

func resolveRedirect(opts Options, rates map[m.Feature]float64, profileAll bool) (m.RedirectPolicy, error) {
	kinds := make(map[m.RedirectKind]bool)

	if strings.TrimSpace(opts.RedirectKinds) == "" {
		for _, kind := range m.RedirectKinds {
			kinds[kind] = true
		}
	} else {
		for _, part := range strings.Split(opts.RedirectKinds, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			kind := m.RedirectKind(part)
			switch kind {
			case m.RedirectClass, m.RedirectFunction, m.RedirectVariable:
				kinds[kind] = true
			default:
				return m.RedirectPolicy{}, m.Configf("unknown redirect kind %q", part)
			}
		}
	}

	mode := m.RedirectMode(opts.RedirectMode)
	switch mode {
	case "":
		mode = m.RedirectModeMixed
	case m.RedirectModeMixed, m.RedirectModeLambda, m.RedirectModeGlobalsGet,
		m.RedirectModeDictGet, m.RedirectModeItemGetter:
	default:
		return m.RedirectPolicy{}, m.Configf("unknown redirect mode %q", opts.RedirectMode)
	}

	modes := make(map[m.RedirectKind]m.RedirectMode, len(kinds))
	for kind := range kinds {
		modes[kind] = mode
	}

	rate := rates[m.FeatureRedirect]
	if opts.RedirectRate != nil {
		rate = *opts.RedirectRate
	}

	if rate < 0.0 || rate > 1.0 {
		return m.RedirectPolicy{}, m.Configf("redirect rate %.3f outside [0.0, 1.0]", rate)
	}

	max := 32
	if opts.RedirectMax != nil {
		max = *opts.RedirectMax
	}

	if max < 1 {
		return m.RedirectPolicy{}, m.Configf("redirect max must be >= 1, got %d", max)
	}

	return m.RedirectPolicy{
		Kinds: kinds,
		Modes: modes,
		All:   opts.RedirectAll || profileAll,
		Rate:  rate,
		Max:   max,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
