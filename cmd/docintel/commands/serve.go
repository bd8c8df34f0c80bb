package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docintel/internal/cache"
	"docintel/internal/chunker"
	"docintel/internal/config"
	"docintel/internal/embedding"
	"docintel/internal/extract"
	"docintel/internal/httpapi"
	"docintel/internal/ingest"
	"docintel/internal/lexical"
	"docintel/internal/llm"
	"docintel/internal/llm/anthropic"
	"docintel/internal/llm/openai"
	"docintel/internal/logging"
	"docintel/internal/metrics"
	"docintel/internal/objectstore"
	"docintel/internal/queue"
	"docintel/internal/rag"
	"docintel/internal/retrieve"
	"docintel/internal/store"
	"docintel/internal/vectorindex"
)

// NewServeCmd constructs the `docintel serve` command: it wires every
// component together and runs the HTTP API and the ingestion worker pool in
// the same process until an interrupt or termination signal arrives.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the ingestion worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
}

func runServe(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	primaryStore, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open primary store: %w", err)
	}
	defer primaryStore.Close()

	resultCache := buildCache(cfg)

	vecIndex, err := vectorindex.Open(cfg.Vector.Dir, "default", cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}

	lexicalIndex := lexical.New(primaryStore.Pool())

	embedder := embedding.New(cfg.Embedding, resultCache, int(cfg.Search.EmbeddingTTL.Seconds()))

	generator, err := buildGenerator(cfg)
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}

	searcher := &retrieve.Searcher{
		Vector:           vecIndex,
		Lexical:          lexicalIndex,
		Embedder:         embedder,
		Store:            primaryStore,
		Cache:            resultCache,
		BranchMultiplier: cfg.Search.BranchMultiplier,
		BranchCap:        cfg.Search.BranchCap,
		QueryCacheTTL:    int(cfg.Search.QueryCacheTTL.Seconds()),
	}

	orchestrator := rag.New(searcher, generator, primaryStore)

	extractors := buildExtractors(cfg, generator)
	chunk := chunker.New(chunker.WhitespaceTokenizer{}, cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.MinChunkSize)

	shutdownMetrics, err := metrics.InitProvider(ctx, cfg.OTel.OTLPEndpoint, cfg.OTel.ServiceName)
	if err != nil {
		return fmt.Errorf("init metrics provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics_shutdown_failed")
		}
	}()

	sink := metrics.NewOtel(cfg.OTel.ServiceName)

	jobQueue := buildQueue(cfg)

	vectorMu := &sync.Mutex{}
	workerCount := cfg.Ingest.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}
	worker := ingest.NewWorker(primaryStore, extractors, chunk, embedder, vecIndex, searcher, sink, cfg.Embedding.BatchSize, cfg.Embedding.Model, vectorMu)
	pool := &ingest.Pool{Consumer: jobQueue, Worker: worker, Size: workerCount}

	blobs, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build object store: %w", err)
	}

	handlers := &httpapi.Handlers{
		Orchestrator: orchestrator,
		Search:       searcher,
		Store:        primaryStore,
		Queue:        jobQueue,
		Blobs:        blobs,
		Defaults: httpapi.Defaults{
			Model:       cfg.Generation.DefaultModel,
			Temperature: cfg.Generation.DefaultTemperature,
			MaxTokens:   cfg.Generation.DefaultMaxTokens,
		},
	}
	server := httpapi.NewServer(handlers)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: server,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("http_server_starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := pool.Run(ctx); err != nil {
			errCh <- fmt.Errorf("ingestion pool: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildObjectStore(ctx context.Context, cfg config.Config) (objectstore.Store, error) {
	if !cfg.ObjectStore.Enabled {
		return objectstore.NewLocalStore(cfg.ObjectStore.LocalDir), nil
	}
	return objectstore.NewS3Store(ctx, objectstore.S3Config{
		Bucket:       cfg.ObjectStore.Bucket,
		Region:       cfg.ObjectStore.Region,
		Prefix:       cfg.ObjectStore.Prefix,
		Endpoint:     cfg.ObjectStore.Endpoint,
		AccessKey:    cfg.ObjectStore.AccessKey,
		SecretKey:    cfg.ObjectStore.SecretKey,
		UsePathStyle: cfg.ObjectStore.UsePathStyle,
	})
}

func buildCache(cfg config.Config) cache.Cache {
	if cfg.Redis.Addr != "" {
		return cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	logging.Log.Warn().Msg("redis_addr_unset_using_in_memory_cache")
	return cache.NewMemory()
}

func buildGenerator(cfg config.Config) (llm.Generator, error) {
	switch cfg.Generation.Provider {
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but ANTHROPIC_API_KEY is unset")
		}
		return anthropic.New(cfg.Anthropic.APIKey, "", cfg.Generation.DefaultModel, http.DefaultClient), nil
	case "openai", "":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY is unset")
		}
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Generation.DefaultModel), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

func buildExtractors(cfg config.Config, generator llm.Generator) *extract.Registry {
	reg := extract.NewRegistry()
	reg.Register("text/plain", extract.TextExtractor{})
	reg.Register("application/pdf", extract.PDFExtractor{})
	reg.Register("audio/wav", extract.AudioExtractor{ModelPath: cfg.Extract.WhisperModelPath})
	reg.Register("image/png", extract.ImageExtractor{Generator: generator, Model: cfg.Extract.VisionModel, MIMEType: "image/png"})
	reg.Register("image/jpeg", extract.ImageExtractor{Generator: generator, Model: cfg.Extract.VisionModel, MIMEType: "image/jpeg"})
	reg.Register("text/html", extract.OfficeExtractor{})
	return reg
}

func buildQueue(cfg config.Config) *queueAdapter {
	switch cfg.Queue.Backend {
	case "kafka":
		k := queue.NewKafka(cfg.Queue.Brokers, cfg.Queue.Topic, "docintel-ingest")
		return &queueAdapter{Producer: k, Consumer: k}
	default:
		m := queue.NewMemory(256)
		return &queueAdapter{Producer: m, Consumer: m}
	}
}

// queueAdapter lets serve hand out a single concrete value that satisfies
// both queue.Producer (for the HTTP layer) and queue.Consumer (for the
// ingestion pool), regardless of which backend was selected.
type queueAdapter struct {
	queue.Producer
	queue.Consumer
}
