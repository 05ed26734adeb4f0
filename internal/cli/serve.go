package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	openailib "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/convoflow-ai/convoflow/internal/api/handlers"
	"github.com/convoflow-ai/convoflow/internal/config"
	"github.com/convoflow-ai/convoflow/internal/jobs"
	"github.com/convoflow-ai/convoflow/internal/openai"
	"github.com/convoflow-ai/convoflow/internal/repository"
	"github.com/convoflow-ai/convoflow/internal/server"
	"github.com/convoflow-ai/convoflow/internal/service"
	"github.com/convoflow-ai/convoflow/internal/storage"
	"github.com/convoflow-ai/convoflow/internal/telemetry"
)

// fileStore is what the handlers and the indexer need from document storage.
type fileStore interface {
	Fetch(ctx context.Context, fileRef string) ([]byte, error)
	Store(ctx context.Context, fileRef string, data []byte) (string, error)
	Delete(ctx context.Context, fileRef string) error
}

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the convoflow API server and the document index worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store, err := buildFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	botRepo := repository.NewBotRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIndexJobRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	locker := repository.NewIndexLocker(pool)

	var embeddingClient service.EmbeddingClient
	var completer service.ChatCompleter
	if cfg.HasOpenAI() {
		client := openai.NewClient(cfg.OpenAIAPIKey)
		embeddingClient = client
		completer = client
	} else {
		log.Println("OPENAI_API_KEY not set: retrieval degrades to lexical search, chat is disabled")
		completer = &noOpCompleter{}
	}

	chunkCfg := service.DefaultChunkConfig()
	if cfg.ChunkMaxChars > 0 {
		chunkCfg.MaxChars = cfg.ChunkMaxChars
	}
	if cfg.ChunkOverlap > 0 {
		chunkCfg.Overlap = cfg.ChunkOverlap
	}

	indexerSvc := service.NewIndexerService(documentRepo, store, embeddingClient, vectorRepo, locker).
		WithChunkConfig(chunkCfg)
	indexProcessor := jobs.NewIndexWorker(jobRepo, indexerSvc)
	indexWorker := jobs.NewWorker(indexProcessor, time.Duration(cfg.IndexPollSeconds)*time.Second)
	go indexWorker.Start(ctx)
	log.Println("index worker started")

	retrieverSvc := service.NewRetrieverService(embeddingClient, vectorRepo, documentRepo)
	builder := service.NewContextBuilder(cfg.ContextBudget)
	botSvc := service.NewBotService(botRepo)
	documentSvc := service.NewDocumentService(documentRepo, jobRepo, vectorRepo)
	chatSvc := service.NewChatService(botRepo, retrieverSvc, builder, completer, vectorRepo, embeddingClient)

	router := server.NewRouter(server.RouterConfig{
		BotHandler:      handlers.NewBotHandler(botSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc, store),
		SearchHandler:   handlers.NewSearchHandler(retrieverSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	indexWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func buildFileStore(ctx context.Context, cfg *config.Config) (fileStore, error) {
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		return s3Client, nil
	}

	local, err := storage.NewLocalStore(cfg.FileRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file store: %w", err)
	}
	return local, nil
}

type noOpCompleter struct{}

func (c *noOpCompleter) Complete(ctx context.Context, model string, messages []openailib.ChatCompletionMessage, temperature float32) (string, error) {
	return "", fmt.Errorf("chat not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
