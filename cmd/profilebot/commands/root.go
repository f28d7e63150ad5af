// Package commands defines all Cobra CLI commands for the profilebot binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/tebatto/profilebot/internal/audit"
	"github.com/tebatto/profilebot/internal/config"
	"github.com/tebatto/profilebot/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "profilebot",
		Short: "profilebot — grounded Q&A over a professional profile",
		Long: `profilebot answers questions about one person's professional profile.

It indexes a corpus of profile documents into a vector store, retrieves the
most relevant excerpts for each question, and synthesizes an answer grounded
strictly in those excerpts — with the supporting sources attached.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.profilebot/config.yaml).
See 'profilebot --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.profilebot/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewIndexCmd(),
		NewDiagnoseCmd(),
		NewVersionCmd(),
	)

	return root
}
