package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/convoflow-ai/convoflow/internal/config"
	"github.com/convoflow-ai/convoflow/internal/openai"
	"github.com/convoflow-ai/convoflow/internal/repository"
	"github.com/convoflow-ai/convoflow/internal/service"
)

// IndexCmd returns the index command, a one-shot indexing run for a single
// document. Useful for re-indexing from an operator shell without queueing a
// job through the API.
func IndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <document-id>",
		Short: "Index one document synchronously",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	documentID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

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

	store, err := buildFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	var embeddingClient service.EmbeddingClient
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClient(cfg.OpenAIAPIKey)
	}

	chunkCfg := service.DefaultChunkConfig()
	if cfg.ChunkMaxChars > 0 {
		chunkCfg.MaxChars = cfg.ChunkMaxChars
	}
	if cfg.ChunkOverlap > 0 {
		chunkCfg.Overlap = cfg.ChunkOverlap
	}

	indexer := service.NewIndexerService(
		repository.NewDocumentRepository(pool),
		store,
		embeddingClient,
		repository.NewVectorRepository(pool),
		repository.NewIndexLocker(pool),
	).WithChunkConfig(chunkCfg)

	result, err := indexer.IndexDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("document %d indexed: %d chunks, vectors stored=%t\n", documentID, result.ChunkCount, result.Stored)
	return nil
}
