package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tebatto/profilebot/internal/config"
	"github.com/tebatto/profilebot/internal/logging"
	"github.com/tebatto/profilebot/internal/service"
	"github.com/tebatto/profilebot/internal/store"
	"github.com/tebatto/profilebot/internal/tui"
)

// NewChatCmd constructs the `profilebot chat` command, which starts the
// interactive TUI chat session.
func NewChatCmd() *cobra.Command {
	var conversation string
	var list bool
	var deleteName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive terminal chat about the profile.

Conversations are persisted to a local SQLite database so they can be
resumed later. PROFILEBOT_HISTORY_DB overrides the default database path
(~/.profilebot/history.db); set it to "disabled" to keep no history.

The answering pipeline is built lazily on the first question, so startup is
instant even when the vector index still needs to be created.

Examples:
  profilebot chat
  profilebot chat --conversation "go experience"
  profilebot chat --list
  profilebot chat --delete "go experience"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			// --list and --delete manage stored conversations without
			// starting a session.
			if list || deleteName != "" {
				history := openHistory(log)
				if history == nil {
					return fmt.Errorf("chat: no conversation history store is available")
				}
				defer history.Close()
				if deleteName != "" {
					return deleteConversation(cmd.Context(), history, deleteName, cmd.OutOrStdout())
				}
				return listConversations(cmd.Context(), history, cmd.OutOrStdout())
			}

			cfg, err := config.PipelineFromEnv()
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			lazy := service.NewLazy(func(ctx context.Context) (*service.Pipeline, error) {
				return service.Build(ctx, cfg, log)
			})
			defer lazy.Close()

			history := openHistory(log)
			if history != nil {
				defer history.Close()
			}

			m := tui.New(lazy, history, conversation)
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation name to resume (default: new conversation titled from the first question)")
	cmd.Flags().BoolVar(&list, "list", false, "List stored conversations and exit")
	cmd.Flags().StringVar(&deleteName, "delete", "", "Delete the named conversation and exit")

	return cmd
}

// listConversations writes one line per stored conversation, most recently
// updated first.
func listConversations(ctx context.Context, cs store.ConversationStore, w io.Writer) error {
	convs, err := cs.List(ctx)
	if err != nil {
		return fmt.Errorf("chat: listing conversations: %w", err)
	}
	if len(convs) == 0 {
		fmt.Fprintln(w, "no conversations yet")
		return nil
	}
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%d messages\tupdated %s\n",
			c.Name, c.Messages, c.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// deleteConversation removes the named conversation and its messages.
func deleteConversation(ctx context.Context, cs store.ConversationStore, name string, w io.Writer) error {
	if err := cs.Delete(ctx, name); err != nil {
		return fmt.Errorf("chat: deleting conversation %q: %w", name, err)
	}
	fmt.Fprintf(w, "deleted conversation %q\n", name)
	return nil
}

// openHistory opens the conversation store, honouring PROFILEBOT_HISTORY_DB.
// Returns nil when history is disabled or unavailable; chat still works,
// it just forgets.
func openHistory(log *slog.Logger) store.ConversationStore {
	dbPath := os.Getenv("PROFILEBOT_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via PROFILEBOT_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs
}
