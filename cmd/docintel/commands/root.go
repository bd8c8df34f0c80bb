// Package commands defines the Cobra CLI commands for the docintel binary.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

// NewRootCmd constructs the root Cobra command that every subcommand
// attaches to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docintel",
		Short: "docintel answers questions over an uploaded document corpus",
		Long: `docintel ingests documents (text, PDF, images, audio, office formats),
chunks and embeds them, and answers natural-language questions over a
user's corpus with citations bound to the retrieved source chunks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.AddCommand(NewServeCmd())
	return root
}
