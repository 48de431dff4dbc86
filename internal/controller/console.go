package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	m "veil.dev/pkg/veil/internal/model"
)

var (
	summaryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pathStyle    = lipgloss.NewStyle().Faint(true)
)

// ConsoleUI implements UI using cobra Command's output stream.
type ConsoleUI struct {
	cmd *cobra.Command
}

// NewConsoleUI creates a new ConsoleUI.
func NewConsoleUI(cmd *cobra.Command) *ConsoleUI {
	return &ConsoleUI{cmd: cmd}
}

// DisplayObfuscation prints the post-run summary line, the per-family stats
// table, and any warnings.
func (c *ConsoleUI) DisplayObfuscation(ctx context.Context, report ObfuscationReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	summary := fmt.Sprintf("obfuscated %s -> %s (level %d, profile %s, seed %d, passes %d)",
		report.Input, report.Output, report.Level, report.Profile, report.Seed, report.Passes)
	c.printf("%s\n", summaryStyle.Render(summary))

	c.printf("\n%s", renderStatsTable(report.Counts))

	for _, path := range []string{report.MetaPath, report.MapPath} {
		if path != "" {
			c.printf("%s\n", pathStyle.Render("wrote "+path))
		}
	}

	c.printWarnings(report.Warnings)

	return nil
}

// DisplayDeobfuscation prints the reconstruction summary, warnings, and a
// unified diff of what the best-effort path changed.
func (c *ConsoleUI) DisplayDeobfuscation(ctx context.Context, report DeobfuscationReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if report.FromEmbedded {
		c.printf("%s\n", summaryStyle.Render(
			fmt.Sprintf("restored %s verbatim from embedded source", report.Output)))
	} else {
		c.printf("%s\n", summaryStyle.Render(fmt.Sprintf(
			"reconstructed %s (%s: %d renames reverted, %d literals folded, %d calls unwrapped)",
			report.Output, report.Mode,
			report.RenamesReverted, report.LiteralsFolded, report.CallsUnwrapped)))
	}

	c.printWarnings(report.Warnings)

	if !report.FromEmbedded && report.ObfuscatedSource != "" && report.RestoredSource != "" {
		diff, err := renderDiff(report.ObfuscatedSource, report.RestoredSource)
		if err != nil {
			return err
		}

		if diff != "" {
			c.printf("\n%s", diff)
		}
	}

	return nil
}

func (c *ConsoleUI) printWarnings(warnings []string) {
	for _, warning := range warnings {
		c.printf("%s\n", warnStyle.Render("warning: "+warning))
	}
}

func (c *ConsoleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(c.cmd.OutOrStdout(), format, args...)
}

func renderStatsTable(counts []m.StatCount) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Transform", "Sites"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	total := 0

	for _, count := range counts {
		table.Append([]string{count.Label, fmt.Sprintf("%d", count.Count)})

		total += count.Count
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total)})
	table.Render()

	return buf.String()
}

func renderDiff(before, after string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "obfuscated",
		ToFile:   "restored",
		Context:  3,
	}

	return difflib.GetUnifiedDiffString(diff)
}
