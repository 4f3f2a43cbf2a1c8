package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/auth/statictoken"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/pdf-rag-assistant/internal/samples"
)

// Observers receive per-run outcomes; any field may be nil.
type Observers struct {
	Process  usecase.ProcessObserver
	Ask      usecase.AskObserver
	QueueLag func(time.Duration)
}

type App struct {
	Config config.Config

	// Queue is nil when NATS_URL is empty.
	Queue ports.MessageQueue
	Auth  ports.Authenticator

	Uploader  ports.DocumentUploader
	Processor ports.DocumentProcessor
	Documents ports.DocumentManager
	Answerer  ports.QuestionAnswerer
	History   ports.SearchHistoryService
	Samples   ports.SampleSeeder

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, observers Observers) (*App, error) {
	auth, err := statictoken.Parse(cfg.AuthTokens)
	if err != nil {
		return nil, fmt.Errorf("parse auth tokens: %w", err)
	}
	if auth.Len() == 0 {
		slog.Warn("auth_no_tokens_configured", "hint", "set AUTH_TOKENS=token=user:role")
	}

	sampleDocs, err := samples.Builtin()
	if err != nil {
		return nil, fmt.Errorf("load sample documents: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	docRepo := postgres.NewDocumentRepository(db)
	historyRepo := postgres.NewSearchHistoryRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	embedExec := resilience.NewExecutor(resilience.DefaultConfig().WithAttemptTimeout(cfg.EmbedTimeout))
	generateExec := resilience.NewExecutor(resilience.DefaultConfig().WithAttemptTimeout(cfg.GenerationTimeout))

	embedder, err := newEmbedder(cfg, embedExec)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	completer, err := newCompleter(cfg, generateExec)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	index, err := newVectorIndex(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var (
		queue     ports.MessageQueue
		natsQueue *nats.Queue
	)
	if strings.TrimSpace(cfg.NATSURL) != "" {
		natsQueue, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
			HandlerTimeout:     5 * time.Minute,
			LagObserver:        observers.QueueLag,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue = natsQueue
	}

	locks := postgres.NewDocumentLocker(db)
	pipeline := usecase.NewIngestionPipeline(
		pdftext.NewExtractor(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		index,
	)
	synthesizer := usecase.NewSynthesizer(completer, cfg.GenerationMaxTokens, float32(cfg.GenerationTemperature))

	slog.Info("bootstrap_ready",
		"embedding_provider", cfg.EmbeddingProvider,
		"generation_provider", generationName(cfg, completer),
		"vector_backend", cfg.VectorBackend,
		"queue_enabled", queue != nil,
	)

	return &App{
		Config: cfg,
		Queue:  queue,
		Auth:   auth,

		Uploader:  usecase.NewUploadDocumentUseCase(docRepo, storage, queue, cfg.MaxUploadBytes),
		Processor: usecase.NewProcessDocumentUseCase(docRepo, storage, pipeline, locks, observers.Process),
		Documents: usecase.NewDocumentService(docRepo, storage, index, locks),
		Answerer: usecase.NewAskUseCase(
			usecase.NewRetriever(embedder, index),
			synthesizer,
			historyRepo,
			cfg.RAGTopK,
			observers.Ask,
		),
		History: usecase.NewSearchHistoryUseCase(historyRepo),
		Samples: usecase.NewSampleSeedUseCase(docRepo, embedder, index, sampleDocs),

		closeFn: closer(natsQueue, db),
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closer(queue *nats.Queue, db *sql.DB) func() {
	return func() {
		if queue != nil {
			queue.Close()
		}
		_ = db.Close()
	}
}

func newEmbedder(cfg config.Config, exec *resilience.Executor) (ports.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider)) {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithEmbedExecutor(exec))
		return ollama.NewEmbedder(client), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY")
		}
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIEmbedModel, openai.WithEmbedExecutor(exec))
		return openai.NewEmbedder(client), nil
	case "hashing":
		return hashing.NewEmbedder(cfg.HashingDimensions), nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider)
	}
}

// newCompleter returns nil for the development answer mode.
func newCompleter(cfg config.Config, exec *resilience.Executor) (ports.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.GenerationProvider)) {
	case "", "auto":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return openAICompleter(cfg, exec), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("GENERATION_PROVIDER=openai requires OPENAI_API_KEY")
		}
		return openAICompleter(cfg, exec), nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithGenerateExecutor(exec))
		return ollama.NewCompleter(client), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown GENERATION_PROVIDER %q", cfg.GenerationProvider)
	}
}

func openAICompleter(cfg config.Config, exec *resilience.Executor) ports.Completer {
	client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIEmbedModel, openai.WithGenerateExecutor(exec))
	return openai.NewCompleter(client)
}

func newVectorIndex(cfg config.Config) (ports.VectorIndex, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VectorBackend)) {
	case "", "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, resilience.NewExecutor(resilience.DefaultConfig())), nil
	case "memory":
		slog.Warn("vector_index_in_memory", "hint", "passages are lost on restart and not shared with the worker")
		return memory.NewIndex(), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func generationName(cfg config.Config, completer ports.Completer) string {
	if completer == nil {
		return "development"
	}
	return cfg.GenerationProvider
}
