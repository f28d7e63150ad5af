package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/tebatto/profilebot/internal/config"
	"github.com/tebatto/profilebot/internal/logging"
	"github.com/tebatto/profilebot/internal/server"
	"github.com/tebatto/profilebot/internal/service"
	"github.com/tebatto/profilebot/internal/tracing"
)

// NewServeCmd constructs the `profilebot serve` command, which starts the
// HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the profilebot HTTP API",
		Long: `Start the profilebot HTTP server on localhost.

The server exposes POST /api/chat for grounded question answering, liveness
and readiness probes, and Prometheus metrics on /metrics. Set
PROFILEBOT_API_KEY to require bearer-token authentication on /api/chat.

Examples:
  profilebot serve
  profilebot serve --port 9090
  MODEL_PROVIDER=ollama profilebot serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			cfg, err := config.PipelineFromEnv()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			lazy := service.NewLazy(func(ctx context.Context) (*service.Pipeline, error) {
				return service.Build(ctx, cfg, log)
			})
			defer lazy.Close()

			// Warm the pipeline up front so a broken configuration fails the
			// process instead of the first request, and so readiness probes
			// have live components to ping.
			pipe, err := lazy.Get(ctx)
			if err != nil {
				return fmt.Errorf("serve: building pipeline: %w", err)
			}

			pingers := []server.Pinger{
				server.NewStorePinger(pipe.Store(), cfg.IndexBackend),
				server.NewEmbedderPinger(pipe.Embedder()),
				server.NewLLMPinger(pipe.ChatModel(), getEnvOrDefault("MODEL_PROVIDER", "mistral")),
			}

			srv, err := server.New(lazy, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("PROFILEBOT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
