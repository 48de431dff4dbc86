package model

import "fmt"

// ConfigError reports an invalid configuration. It is fatal and raised
// before any tree mutation happens.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Msg
}

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// RenameCollisionError reports that the name generator could not produce a
// distinct obfuscated identifier within a scope. It is a fatal pipeline
// invariant violation.
type RenameCollisionError struct {
	Scope string
	Name  string
}

func (e *RenameCollisionError) Error() string {
	return fmt.Sprintf("rename collision in scope %q for %q", e.Scope, e.Name)
}

// UnsupportedSiteShapeError reports a site whose syntactic shape no eligible
// strategy can rewrite. It is non-fatal: the site is left unmodified and the
// pipeline continues.
type UnsupportedSiteShapeError struct {
	Family MethodFamily
	Reason string
}

func (e *UnsupportedSiteShapeError) Error() string {
	return fmt.Sprintf("unsupported %s site: %s", e.Family, e.Reason)
}

// DeobfSourceMissingError reports a strict deobfuscation request against
// metadata that carries no embedded source payload.
type DeobfSourceMissingError struct{}

func (e *DeobfSourceMissingError) Error() string {
	return "strict deobfuscation requires an embedded source payload in the metadata"
}

// DeobfSchemaError reports an unknown or future metadata version. The reader
// fails closed rather than guessing.
type DeobfSchemaError struct {
	Version string
}

func (e *DeobfSchemaError) Error() string {
	return fmt.Sprintf("unsupported metadata version %q", e.Version)
}

// LiteralEncodeWorkerError reports a failure inside the parallel literal
// stage. The whole run aborts: partially-applied results would break the
// determinism guarantee.
type LiteralEncodeWorkerError struct {
	Site int
	Err  error
}

func (e *LiteralEncodeWorkerError) Error() string {
	return fmt.Sprintf("literal encode worker failed at site %d: %v", e.Site, e.Err)
}

func (e *LiteralEncodeWorkerError) Unwrap() error {
	return e.Err
}
