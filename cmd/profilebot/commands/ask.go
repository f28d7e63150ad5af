package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tebatto/profilebot/internal/config"
	"github.com/tebatto/profilebot/internal/logging"
	"github.com/tebatto/profilebot/internal/service"
)

// NewAskCmd constructs the `profilebot ask` command: a one-shot question
// answered on stdout with its supporting sources.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about the profile",
		Long: `Ask a natural language question about the profile and print the answer.

The pipeline is built on demand: if the vector index does not exist yet it is
created from the configured corpus before the question is answered.

Examples:
  profilebot ask "where did they study?"
  profilebot ask "what experience do they have with Go?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			cfg, err := config.PipelineFromEnv()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			pipe, err := service.Build(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer pipe.Close()

			ans, err := pipe.Ask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, src := range ans.Sources {
					fmt.Printf("  [%d] %s\n", i+1, src.Source)
				}
			}
			return nil
		},
	}

	return cmd
}
