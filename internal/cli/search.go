package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/convoflow-ai/convoflow/internal/config"
	"github.com/convoflow-ai/convoflow/internal/openai"
	"github.com/convoflow-ai/convoflow/internal/repository"
	"github.com/convoflow-ai/convoflow/internal/service"
)

// SearchCmd returns the search command for querying a bot's documents from
// an operator shell.
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a bot's documents",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().Int64("bot", 0, "Bot ID to search (required)")
	cmd.Flags().Int("limit", service.DefaultSearchLimit, "Maximum results")
	_ = cmd.MarkFlagRequired("bot")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	botID, _ := cmd.Flags().GetInt64("bot")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	var embeddingClient service.EmbeddingClient
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClient(cfg.OpenAIAPIKey)
	}

	retriever := service.NewRetrieverService(
		embeddingClient,
		repository.NewVectorRepository(pool),
		repository.NewDocumentRepository(pool),
	)

	out, err := retriever.Search(ctx, service.SearchInput{
		BotID: botID,
		Query: args[0],
		Limit: limit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
