package domain

import (
	"context"
	"fmt"
	"log/slog"

	"veil.dev/pkg/veil/internal/adapter"
	"veil.dev/pkg/veil/internal/controller"
	m "veil.dev/pkg/veil/internal/model"
)

// ObfuscateArgs contains the arguments for one obfuscation run.
type ObfuscateArgs struct {
	Input  string
	Output string

	// SourceOut, MetaPath and MapPath enable the optional artifacts when
	// non-empty.
	SourceOut string
	MetaPath  string
	MapPath   string

	Options Options
}

// DeobfuscateArgs contains the arguments for one reconstruction run.
type DeobfuscateArgs struct {
	Input    string
	MetaPath string
	Output   string
	Mode     string
	Force    bool
}

// Workflow wires the tree codec, unparser, artifact store, pipeline and UI
// into the two end-to-end operations plus the config dump.
type Workflow interface {
	Obfuscate(ctx context.Context, args ObfuscateArgs) error
	Deobfuscate(ctx context.Context, args DeobfuscateArgs) error
	Explain(opts Options) (*m.EffectiveConfig, error)
}

type workflow struct {
	adapter.TreeCodec
	adapter.Unparser
	adapter.ArtifactStore

	ui  controller.UI
	log *slog.Logger
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	codec adapter.TreeCodec,
	unparser adapter.Unparser,
	store adapter.ArtifactStore,
	ui controller.UI,
	log *slog.Logger,
) Workflow {
	return &workflow{
		TreeCodec:     codec,
		Unparser:      unparser,
		ArtifactStore: store,
		ui:            ui,
		log:           log,
	}
}

func (w *workflow) Obfuscate(ctx context.Context, args ObfuscateArgs) error {
	cfg, err := Resolve(args.Options)
	if err != nil {
		return err
	}

	module, err := w.readModule(args.Input)
	if err != nil {
		return err
	}

	inputSource, err := w.Unparse(module)
	if err != nil {
		return fmt.Errorf("render input tree: %w", err)
	}

	result, err := NewObfuscator(cfg, w.log).Run(ctx, module)
	if err != nil {
		return err
	}

	data, err := w.Encode(module)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}

	if err := w.WriteTree(args.Output, data); err != nil {
		return fmt.Errorf("write tree: %w", err)
	}

	outputSource, err := w.Unparse(module)
	if err != nil {
		return fmt.Errorf("render output tree: %w", err)
	}

	if args.SourceOut != "" {
		if err := w.WriteSource(args.SourceOut, outputSource); err != nil {
			return fmt.Errorf("write source: %w", err)
		}
	}

	if args.MetaPath != "" {
		meta, err := BuildMeta(cfg, result, inputSource, outputSource)
		if err != nil {
			return fmt.Errorf("build metadata: %w", err)
		}

		if err := w.SaveMeta(args.MetaPath, meta); err != nil {
			return fmt.Errorf("save metadata: %w", err)
		}
	}

	if args.MapPath != "" {
		if err := w.SaveRenameMap(args.MapPath, result.Renames); err != nil {
			return fmt.Errorf("save rename map: %w", err)
		}
	}

	return w.ui.DisplayObfuscation(ctx, controller.ObfuscationReport{
		Input:    args.Input,
		Output:   args.Output,
		MetaPath: args.MetaPath,
		MapPath:  args.MapPath,
		Level:    cfg.Level,
		Profile:  cfg.Profile,
		Seed:     cfg.Seed,
		Passes:   cfg.Passes,
		Counts:   result.Stats.Counts(),
		Warnings: result.Stats.Warnings,
	})
}

func (w *workflow) Deobfuscate(ctx context.Context, args DeobfuscateArgs) error {
	mode, err := ParseDeobfMode(args.Mode)
	if err != nil {
		return err
	}

	meta, err := w.LoadMeta(args.MetaPath)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	module, err := w.readModule(args.Input)
	if err != nil {
		return err
	}

	obfuscatedSource, err := w.Unparse(module)
	if err != nil {
		return fmt.Errorf("render obfuscated tree: %w", err)
	}

	result, err := NewDeobfuscator(w.log).Run(ctx, &DeobfRequest{
		Meta:             meta,
		Module:           module,
		ObfuscatedSource: obfuscatedSource,
		Mode:             mode,
		Force:            args.Force,
	})
	if err != nil {
		return err
	}

	restored := result.Source
	if !result.FromEmbedded {
		restored, err = w.Unparse(result.Module)
		if err != nil {
			return fmt.Errorf("render reconstructed tree: %w", err)
		}
	}

	if err := w.WriteSource(args.Output, restored); err != nil {
		return fmt.Errorf("write source: %w", err)
	}

	return w.ui.DisplayDeobfuscation(ctx, controller.DeobfuscationReport{
		Output:           args.Output,
		Mode:             string(mode),
		FromEmbedded:     result.FromEmbedded,
		RenamesReverted:  result.RenamesReverted,
		LiteralsFolded:   result.LiteralsFolded,
		CallsUnwrapped:   result.CallsUnwrapped,
		ObfuscatedSource: obfuscatedSource,
		RestoredSource:   restored,
		Warnings:         result.Warnings,
	})
}

// Explain resolves the options without running anything, for the explain
// command's config dump.
func (w *workflow) Explain(opts Options) (*m.EffectiveConfig, error) {
	return Resolve(opts)
}

func (w *workflow) readModule(path string) (*m.Module, error) {
	data, err := w.ReadTree(path)
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}

	module, err := w.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}

	return module, nil
}
