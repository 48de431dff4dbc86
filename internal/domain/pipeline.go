package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"veil.dev/pkg/veil/internal/domain/passes"
	m "veil.dev/pkg/veil/internal/model"
)

// Obfuscator runs the transform pipeline over a parsed module.
type Obfuscator interface {
	Run(ctx context.Context, module *m.Module) (*Result, error)
}

// Result bundles everything one obfuscation run produced besides the
// mutated tree itself.
type Result struct {
	Renames m.RenameMap
	Hints   []m.HelperHint
	Stats   *m.Stats

	// SiteKey is the per-site salt derivation key, recorded in metadata so
	// reconstruction can re-derive literal salts.
	SiteKey []byte
}

type obfuscator struct {
	cfg *m.EffectiveConfig
	log *slog.Logger
}

// NewObfuscator builds an Obfuscator for one resolved configuration.
func NewObfuscator(cfg *m.EffectiveConfig, log *slog.Logger) Obfuscator {
	return &obfuscator{cfg: cfg, log: log}
}

// Run mutates module in place and returns the run artifacts. On error the
// tree may hold partial rewrites and should be discarded.
func (o *obfuscator) Run(ctx context.Context, module *m.Module) (*Result, error) {
	cfg := o.cfg
	rng := rand.New(rand.NewSource(cfg.Seed))
	gen := newNameGen(rng)
	stats := &m.Stats{}

	for _, method := range cfg.Pool(m.FamilyCall) {
		if m.RiskyMethods[m.FamilyCall][method] {
			stats.Warn(fmt.Sprintf("risky method enabled: %s:%s", m.FamilyCall, method))
			o.log.Warn("risky dynamic method enabled", "family", m.FamilyCall, "method", method)
		}
	}

	used := collectIdentifiers(module)
	for name := range cfg.PreserveNames {
		used[name] = true
	}

	reg := newHelperRegistry(rng, cfg, used)

	pctx := &passes.Ctx{
		Cfg:          cfg,
		Rng:          rng,
		StringHelper: reg.stringHelper,
		CallHelper:   reg.callHelper,
		HelperNames:  reg.helperNames(),
	}

	stats.Junk = passes.InjectJunk(module, pctx)

	renames := m.RenameMap{}

	if cfg.Enabled(m.FeatureRename) {
		for name := range used {
			gen.reserve("", name)
		}

		rn := newRenamer(cfg, gen)

		renamed, err := rn.run(module)
		if err != nil {
			return nil, err
		}

		stats.Renamed = renamed
		renames = rn.renames
	}

	siteKey := deriveSiteKey(cfg.Seed, cfg.ValueSalt)

	if cfg.Enabled(m.FeatureStrings) {
		count, err := o.encodeStrings(ctx, module, pctx, siteKey)
		if err != nil {
			return nil, err
		}

		stats.Strings = count
	}

	for pass := 0; pass < cfg.Passes; pass++ {
		if err := o.runPassCycle(module, pctx, gen, stats); err != nil {
			return nil, err
		}
	}

	if cfg.Enabled(m.FeatureBuiltins) {
		fresh := func() (string, error) { return gen.next("") }

		count, err := passes.RewriteBuiltins(module, pctx, fresh)
		if err != nil {
			return nil, err
		}

		stats.Builtins = count
	}

	if cfg.Enabled(m.FeatureRedirect) {
		fresh := func() (string, error) { return gen.next("") }

		count, err := passes.RewriteRedirect(module, pctx, fresh)
		if err != nil {
			return nil, err
		}

		stats.Redirects = count
	}

	// Helpers go in last so no pass disturbs their bodies and the redirect
	// tables never capture them.
	defs := reg.usedDefs(module)
	for i := len(defs) - 1; i >= 0; i-- {
		passes.InsertAfterDocstring(module, defs[i])
	}

	o.log.Info("obfuscation complete",
		"renamed", stats.Renamed,
		"strings", stats.Strings,
		"attrs", stats.Attrs,
		"calls", stats.Calls,
		"redirects", stats.Redirects,
	)

	return &Result{
		Renames: renames,
		Hints:   reg.usedHints(module),
		Stats:   stats,
		SiteKey: siteKey,
	}, nil
}

// runPassCycle applies one round of the ordered transforms.
func (o *obfuscator) runPassCycle(module *m.Module, pctx *passes.Ctx, gen *nameGen, stats *m.Stats) error {
	cfg := o.cfg
	fresh := func() (string, error) { return gen.next("") }

	for _, feature := range cfg.Order {
		if !cfg.Enabled(feature) {
			continue
		}

		switch feature {
		case m.FeatureAttrs:
			stats.Attrs += passes.RewriteAttrs(module, pctx)
		case m.FeatureSetAttrs:
			stats.SetAttrs += passes.RewriteSetAttrs(module, pctx)
		case m.FeatureCalls:
			stats.Calls += passes.RewriteCalls(module, pctx)
		case m.FeatureImports:
			stats.Imports += passes.RewriteImports(module, pctx)
		case m.FeatureBools:
			stats.Bools += passes.RewriteBools(module, pctx)
		case m.FeatureInts:
			stats.Ints += passes.RewriteInts(module, pctx)
		case m.FeatureFloats:
			stats.Floats += passes.RewriteFloats(module, pctx)
		case m.FeatureBytes:
			stats.Bytes += passes.RewriteBytes(module, pctx)
		case m.FeatureNone:
			stats.NoneValues += passes.RewriteNone(module, pctx)
		case m.FeatureFlow:
			count, err := passes.RewriteFlow(module, pctx, fresh)
			if err != nil {
				return err
			}

			stats.FlowBlocks += count
		}
	}

	return nil
}

// encodeStrings runs the bounded-parallel string literal stage. A collector
// fixes the site list and per-site helper choice up front, workers encode
// independently keyed by site salt, and the applier writes results back in
// site order. Output is byte-identical for any worker count.
func (o *obfuscator) encodeStrings(ctx context.Context, module *m.Module, pctx *passes.Ctx, siteKey []byte) (int, error) {
	cfg := o.cfg

	values := passes.CollectStrings(module, cfg.KeepDocstrings)
	if len(values) == 0 {
		return 0, nil
	}

	helpers := make([]string, len(values))
	for i := range values {
		helpers[i] = pctx.StringHelper()
	}

	results := make([]m.Expr, len(values))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.MTWorkers)

	for i := range values {
		site := i

		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &m.LiteralEncodeWorkerError{Site: site, Err: err}
			}

			salt := siteSalt(siteKey, fmt.Sprintf("str:%d", site))
			results[site] = passes.EncodeString(helpers[site], cfg, salt, values[site])

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return 0, err
	}

	return passes.ApplyStrings(module, cfg.KeepDocstrings, results), nil
}

// collectIdentifiers gathers every identifier appearing in the module.
func collectIdentifiers(module *m.Module) map[string]bool {
	out := make(map[string]bool)

	m.Walk(module, func(node m.Node) bool {
		switch n := node.(type) {
		case *m.Name:
			out[n.ID] = true
		case *m.FunctionDef:
			out[n.Name] = true

			for _, param := range n.Params {
				out[param.Name] = true
			}
		case *m.ClassDef:
			out[n.Name] = true
		}

		return true
	})

	return out
}
