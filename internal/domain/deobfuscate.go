package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"veil.dev/pkg/veil/internal/domain/passes"
	m "veil.dev/pkg/veil/internal/model"
)

// DeobfMode selects how hard the reconstruction engine tries and how it
// reacts to missing metadata sections.
type DeobfMode string

// Available DeobfMode values. Strict demands an embedded source payload and
// fails without one; best-effort reconstructs what the surviving metadata
// sections allow and reports the gaps as warnings.
const (
	DeobfStrict     DeobfMode = "strict"
	DeobfBestEffort DeobfMode = "best-effort"
)

// ParseDeobfMode validates a mode flag value.
func ParseDeobfMode(value string) (DeobfMode, error) {
	switch DeobfMode(value) {
	case DeobfStrict, DeobfBestEffort:
		return DeobfMode(value), nil
	default:
		return "", m.Configf("unknown deobfuscation mode %q (want strict or best-effort)", value)
	}
}

// DeobfRequest bundles one reconstruction job.
type DeobfRequest struct {
	Meta             *m.ObfuMeta
	Module           *m.Module
	ObfuscatedSource string
	Mode             DeobfMode
	Force            bool
}

// DeobfResult is the outcome of one reconstruction. Exactly one of Source
// and Module is set: Source when the metadata carried the original text,
// Module when the tree was rewritten in place.
type DeobfResult struct {
	Source          string
	Module          *m.Module
	FromEmbedded    bool
	RenamesReverted int
	LiteralsFolded  int
	CallsUnwrapped  int
	Warnings        []string
}

func (r *DeobfResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Deobfuscator reconstructs source from an obfuscated tree plus metadata.
type Deobfuscator interface {
	Run(ctx context.Context, req *DeobfRequest) (*DeobfResult, error)
}

type deobfuscator struct {
	log *slog.Logger
}

// NewDeobfuscator builds the metadata-driven reconstruction engine.
func NewDeobfuscator(log *slog.Logger) Deobfuscator {
	return &deobfuscator{log: log}
}

func (d *deobfuscator) Run(ctx context.Context, req *DeobfRequest) (*DeobfResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := req.Meta
	if meta == nil {
		return nil, m.Configf("deobfuscation requires a metadata artifact")
	}

	if !meta.KnownVersion() {
		return nil, &m.DeobfSchemaError{Version: meta.Version}
	}

	result := &DeobfResult{}

	if meta.OutputSHA256 != "" && req.ObfuscatedSource != "" &&
		sha256Text(req.ObfuscatedSource) != meta.OutputSHA256 {
		if !req.Force {
			return nil, fmt.Errorf("obfuscated input does not match the metadata's output hash; pass --force to proceed anyway")
		}

		result.warnf("output hash mismatch overridden by --force; metadata may describe a different run")
		d.log.Warn("output hash mismatch overridden", "expected", meta.OutputSHA256)
	}

	if meta.Source != "" {
		source, err := decodeSourcePayload(meta.Source)
		if err != nil {
			return nil, err
		}

		if meta.InputSHA256 != "" && sha256Text(source) != meta.InputSHA256 {
			result.warnf("embedded source does not match the metadata's input hash")
		}

		result.Source = source
		result.FromEmbedded = true

		d.log.Info("source restored from embedded payload", "bytes", len(source))

		return result, nil
	}

	if req.Mode == DeobfStrict {
		return nil, &m.DeobfSourceMissingError{}
	}

	if req.Module == nil {
		return nil, m.Configf("best-effort deobfuscation requires the obfuscated tree")
	}

	result.Module = req.Module

	// Renames first: junk functions carry obfuscated names until the map is
	// reverted, and helper names were minted after renaming so the map never
	// touches them.
	d.revertRenames(req.Module, meta, result)
	d.foldHelpers(req.Module, meta, result)

	d.log.Info("best-effort reconstruction finished",
		"renames_reverted", result.RenamesReverted,
		"literals_folded", result.LiteralsFolded,
		"calls_unwrapped", result.CallsUnwrapped,
		"warnings", len(result.Warnings))

	return result, nil
}

// foldHelpers inverts helper call sites the hints describe, then drops the
// now-unreferenced helper definitions and any surviving junk functions.
func (d *deobfuscator) foldHelpers(module *m.Module, meta *m.ObfuMeta, result *DeobfResult) {
	if len(meta.HelperHints) == 0 {
		result.warnf("helper_hints absent; encoded literals left as-is")
		return
	}

	hints := make(map[string]m.HelperHint, len(meta.HelperHints))
	for _, hint := range meta.HelperHints {
		hints[hint.HelperName] = hint
	}

	m.Rewrite(module, func(node m.Node) m.Node {
		// Split-mode sites concatenate independently encoded leaves. The walk
		// is bottom-up, so by the time the BinOp is visited its leaves have
		// already folded back into literals.
		if folded, ok := foldConcat(node); ok {
			return folded
		}

		call, ok := node.(*m.Call)
		if !ok {
			return node
		}

		name, ok := call.Func.(*m.Name)
		if !ok {
			return node
		}

		hint, ok := hints[name.ID]
		if !ok {
			return node
		}

		switch hint.Mode {
		case hintModeString:
			if folded, ok := foldStringCall(call); ok {
				result.LiteralsFolded++
				return folded
			}
		case hintModeCall:
			if folded, ok := foldCallWrap(call); ok {
				result.CallsUnwrapped++
				return folded
			}
		}

		return node
	})

	dropDefs(module, func(name string) bool {
		if strings.HasPrefix(name, "_junk_") {
			return true
		}

		_, ok := hints[name]
		return ok
	})
}

// foldConcat merges "a" + "b" into a single literal.
func foldConcat(node m.Node) (m.Expr, bool) {
	bin, ok := node.(*m.BinOp)
	if !ok || bin.Op != m.OpAdd {
		return nil, false
	}

	left, ok := bin.Left.(*m.Str)
	if !ok {
		return nil, false
	}

	right, ok := bin.Right.(*m.Str)
	if !ok {
		return nil, false
	}

	return &m.Str{Value: left.Value + right.Value}, true
}

// foldStringCall turns helper(selector, payload) back into the literal it
// encodes. Unrecognized shapes are left untouched.
func foldStringCall(call *m.Call) (m.Expr, bool) {
	if len(call.Args) != 2 || len(call.Keywords) != 0 {
		return nil, false
	}

	selector, ok := constInt(call.Args[0])
	if !ok {
		return nil, false
	}

	switch selector {
	case passes.StringModeB85:
		payload, ok := call.Args[1].(*m.Str)
		if !ok {
			return nil, false
		}

		raw, err := passes.B85Decode(payload.Value)
		if err != nil {
			return nil, false
		}

		return &m.Str{Value: string(raw)}, true
	case passes.StringModeReverse:
		payload, ok := call.Args[1].(*m.Str)
		if !ok {
			return nil, false
		}

		return &m.Str{Value: reverseRunes(payload.Value)}, true
	case passes.StringModeXOR:
		return foldXORChunks(call.Args[1])
	default:
		return nil, false
	}
}

// constInt reduces an integer literal, or the arithmetic the integer pass
// disguises one as, to its value. Helper payloads go through the same pass
// cycles as user code, so the selector and xor tuples arrive as nested
// add/sub/xor trees rather than bare literals.
func constInt(expr m.Expr) (int64, bool) {
	switch e := expr.(type) {
	case *m.Int:
		return e.Value, true
	case *m.UnaryOp:
		if e.Op != m.OpUSub {
			return 0, false
		}

		v, ok := constInt(e.Operand)
		return -v, ok
	case *m.BinOp:
		left, ok := constInt(e.Left)
		if !ok {
			return 0, false
		}

		right, ok := constInt(e.Right)
		if !ok {
			return 0, false
		}

		switch e.Op {
		case m.OpAdd:
			return left + right, true
		case m.OpSub:
			return left - right, true
		case m.OpMult:
			return left * right, true
		case m.OpBitXor:
			return left ^ right, true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}

// foldXORChunks decodes ((key, (ints...)), ...) back into a string literal.
func foldXORChunks(payload m.Expr) (m.Expr, bool) {
	chunks, ok := payload.(*m.Tuple)
	if !ok {
		return nil, false
	}

	var out []rune

	for _, elt := range chunks.Elts {
		pair, ok := elt.(*m.Tuple)
		if !ok || len(pair.Elts) != 2 {
			return nil, false
		}

		key, ok := constInt(pair.Elts[0])
		if !ok {
			return nil, false
		}

		codes, ok := pair.Elts[1].(*m.Tuple)
		if !ok {
			return nil, false
		}

		for _, code := range codes.Elts {
			n, ok := constInt(code)
			if !ok {
				return nil, false
			}

			out = append(out, rune(n^key))
		}
	}

	return &m.Str{Value: string(out)}, true
}

// foldCallWrap turns helper(fn, (args...), {kwargs}) back into fn(args...).
func foldCallWrap(call *m.Call) (m.Expr, bool) {
	if len(call.Args) != 3 || len(call.Keywords) != 0 {
		return nil, false
	}

	args, ok := call.Args[1].(*m.Tuple)
	if !ok {
		return nil, false
	}

	kwargs, ok := call.Args[2].(*m.Dict)
	if !ok {
		return nil, false
	}

	keywords := make([]m.Keyword, 0, len(kwargs.Keys))
	for i, key := range kwargs.Keys {
		name, ok := key.(*m.Str)
		if !ok {
			return nil, false
		}

		keywords = append(keywords, m.Keyword{Name: name.Value, Value: kwargs.Values[i]})
	}

	return &m.Call{Func: call.Args[0], Args: args.Elts, Keywords: keywords}, true
}

// dropDefs removes top-level function definitions whose names the predicate
// claims.
func dropDefs(module *m.Module, drop func(name string) bool) {
	kept := module.Body[:0]

	for _, stmt := range module.Body {
		if def, ok := stmt.(*m.FunctionDef); ok && drop(def.Name) {
			continue
		}

		kept = append(kept, stmt)
	}

	module.Body = kept
}

// revertRenames maps obfuscated identifiers back to their originals using
// the flattened reverse of the rename map.
func (d *deobfuscator) revertRenames(module *m.Module, meta *m.ObfuMeta, result *DeobfResult) {
	if len(meta.RenameMap) == 0 {
		result.warnf("rename_map absent; identifiers left obfuscated")
		return
	}

	reversed, ambiguous := meta.RenameMap.Reversed()
	if ambiguous > 0 {
		result.warnf("rename map reversal had %d ambiguous entries; some identifiers may be misattributed", ambiguous)
	}

	revert := func(name string) string {
		original, ok := reversed[name]
		if !ok {
			return name
		}

		result.RenamesReverted++

		return original
	}

	m.Rewrite(module, func(node m.Node) m.Node {
		switch n := node.(type) {
		case *m.Name:
			n.ID = revert(n.ID)
		case *m.FunctionDef:
			n.Name = revert(n.Name)
			for i := range n.Params {
				n.Params[i].Name = revert(n.Params[i].Name)
			}
		case *m.ClassDef:
			n.Name = revert(n.Name)
		case *m.Lambda:
			for i, param := range n.Params {
				n.Params[i] = revert(param)
			}
		case *m.Import:
			revertAliases(n.Names, revert)
		case *m.ImportFrom:
			revertAliases(n.Names, revert)
		case *m.Global:
			for i, name := range n.Names {
				n.Names[i] = revert(name)
			}
		case *m.ExceptHandler:
			if n.Name != "" {
				n.Name = revert(n.Name)
			}
		}

		return node
	})
}

func revertAliases(aliases []m.Alias, revert func(string) string) {
	for i := range aliases {
		if aliases[i].AsName != "" {
			aliases[i].AsName = revert(aliases[i].AsName)
		}
	}
}

func reverseRunes(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}

	return string(runes)
}
