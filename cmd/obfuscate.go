package cmd

import (
	"github.com/spf13/cobra"

	"veil.dev/pkg/veil/internal/domain"
)

const obfuscateLongDescription = `Obfuscate a parsed syntax tree.

INPUT is a *.ast.json tree produced by the external parser. The rewritten
tree is written to the --output path; --emit-source additionally renders it
as source text, and --emit-meta/--emit-map write the reconstruction
artifacts.`

var obfuscateOpts optionFlags
var obfuscateOutputFlag string
var obfuscateSourceFlag string
var obfuscateMetaFlag string
var obfuscateMapFlag string

// obfuscateCmd represents the obfuscate command.
var obfuscateCmd = newObfuscateCmd()

func newObfuscateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obfuscate INPUT",
		Short: "Obfuscate a syntax tree",
		Long:  obfuscateLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Obfuscate(cmd.Context(), domain.ObfuscateArgs{
				Input:     args[0],
				Output:    obfuscateOutputFlag,
				SourceOut: obfuscateSourceFlag,
				MetaPath:  obfuscateMetaFlag,
				MapPath:   obfuscateMapFlag,
				Options:   obfuscateOpts.options(cmd),
			})
		},
	}

	configureObfuscateFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(obfuscateCmd)
}

func configureObfuscateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&obfuscateOutputFlag, "output", "o", "", "output tree path")
	cobra.CheckErr(cmd.MarkFlagRequired("output"))

	cmd.Flags().StringVar(&obfuscateSourceFlag, "emit-source", "", "render the obfuscated tree as source text")
	cmd.Flags().StringVar(&obfuscateMetaFlag, "emit-meta", "", "write obfumeta JSON metadata")
	cmd.Flags().StringVar(&obfuscateMapFlag, "emit-map", "", "write rename map as JSON")

	obfuscateOpts.register(cmd)
}
