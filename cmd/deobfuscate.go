package cmd

import (
	"github.com/spf13/cobra"

	"veil.dev/pkg/veil/internal/domain"
)

const deobfuscateLongDescription = `Reconstruct source from an obfuscated tree and its metadata artifact.

Strict mode requires the metadata to carry an embedded source payload and
restores it verbatim. Best-effort mode reverses what the surviving metadata
sections describe and reports the gaps as warnings.`

var deobfuscateOutputFlag string
var deobfuscateMetaFlag string
var deobfuscateModeFlag string
var deobfuscateForceFlag bool

// deobfuscateCmd represents the deobfuscate command.
var deobfuscateCmd = newDeobfuscateCmd()

func newDeobfuscateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deobfuscate INPUT",
		Short: "Reconstruct source from metadata",
		Long:  deobfuscateLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Deobfuscate(cmd.Context(), domain.DeobfuscateArgs{
				Input:    args[0],
				MetaPath: deobfuscateMetaFlag,
				Output:   deobfuscateOutputFlag,
				Mode:     deobfuscateModeFlag,
				Force:    deobfuscateForceFlag,
			})
		},
	}

	configureDeobfuscateFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(deobfuscateCmd)
}

func configureDeobfuscateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&deobfuscateOutputFlag, "output", "o", "", "output source path")
	cobra.CheckErr(cmd.MarkFlagRequired("output"))

	cmd.Flags().StringVar(&deobfuscateMetaFlag, "meta", "", "path to obfumeta JSON metadata")
	cobra.CheckErr(cmd.MarkFlagRequired("meta"))

	cmd.Flags().StringVar(&deobfuscateModeFlag, "mode", "best-effort", "reconstruction mode (strict, best-effort)")
	cmd.Flags().BoolVar(&deobfuscateForceFlag, "force", false, "ignore hash mismatches during deobfuscation")
}
