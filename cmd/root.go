// Package cmd provides the root command and CLI setup for veil.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"veil.dev/pkg/veil/internal/adapter"
	"veil.dev/pkg/veil/internal/controller"
	"veil.dev/pkg/veil/internal/domain"
)

var treeCodec adapter.TreeCodec
var unparser adapter.Unparser
var artifactStore adapter.ArtifactStore
var ui controller.UI
var workflow domain.Workflow

// logFileFlag overrides the rotating log file path.
var logFileFlag string

// verboseFlag switches file logging to debug level.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewConsoleUI(rootCmd)
	treeCodec = adapter.NewJSONTreeCodec()
	unparser = adapter.NewSourceUnparser()
	artifactStore = adapter.NewLocalArtifactStore()
}

const rootLongDescription = `Veil is a deterministic syntax tree obfuscator. It rewrites a parsed
program (a *.ast.json tree) into a behavior-preserving but harder-to-read
equivalent, and can reconstruct an approximation of the original from the
metadata artifact written alongside.

Given one seed, output is byte-identical across runs and worker counts.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "veil",
		Short: "Deterministic syntax tree obfuscator",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag || viper.GetBool(logVerboseKey))
			workflow = domain.NewWorkflow(treeCodec, unparser, artifactStore, ui, globalLogger)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&logFileFlag, "log-file", viper.GetString(logFilenameKey), "log file path")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("log-file"), logFilenameKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", viper.GetBool(logVerboseKey), "debug-level logging")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("verbose"), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
