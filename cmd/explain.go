package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var explainOpts optionFlags

// explainCmd represents the explain command.
var explainCmd = newExplainCmd()

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the resolved configuration",
		Long:  "Resolves the layered configuration exactly as obfuscate would and prints the effective result as YAML, without touching any tree.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := workflow.Explain(explainOpts.options(cmd))
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}

			cmd.Print(string(out))

			return nil
		},
	}

	explainOpts.register(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
