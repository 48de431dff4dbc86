// Package controller provides output adapters for rendering run reports.
package controller

import (
	"context"

	m "veil.dev/pkg/veil/internal/model"
)

// ObfuscationReport carries everything the UI shows after an obfuscation run.
type ObfuscationReport struct {
	Input    string
	Output   string
	MetaPath string
	MapPath  string

	Level   int
	Profile string
	Seed    int64
	Passes  int

	Counts   []m.StatCount
	Warnings []string
}

// DeobfuscationReport carries everything the UI shows after reconstruction.
type DeobfuscationReport struct {
	Output       string
	Mode         string
	FromEmbedded bool

	RenamesReverted int
	LiteralsFolded  int
	CallsUnwrapped  int

	// ObfuscatedSource and RestoredSource feed the best-effort diff view.
	ObfuscatedSource string
	RestoredSource   string

	Warnings []string
}

// UI defines the interface for displaying run reports. Implementations can
// use different output methods.
type UI interface {
	DisplayObfuscation(ctx context.Context, report ObfuscationReport) error
	DisplayDeobfuscation(ctx context.Context, report DeobfuscationReport) error
}
