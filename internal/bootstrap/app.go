package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appsvc "collabrag/internal/app"
	"collabrag/internal/ai"
	"collabrag/internal/cache"
	"collabrag/internal/chunker"
	"collabrag/internal/config"
	"collabrag/internal/embedding"
	"collabrag/internal/extract"
	"collabrag/internal/logger"
	"collabrag/internal/metrics"
	minioClient "collabrag/internal/platform/minio"
	mysqlClient "collabrag/internal/platform/mysql"
	rabbitmqClient "collabrag/internal/platform/rabbitmq"
	redisClient "collabrag/internal/platform/redis"
	"collabrag/internal/repository"
	"collabrag/internal/storage"
	"collabrag/internal/vectorindex"
	"collabrag/internal/vision"
	"collabrag/internal/worker"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Blobs  storage.BlobStore
	Index  vectorindex.Index

	Ingest  *appsvc.IngestService
	Query   *appsvc.QueryService
	Content *appsvc.ContentService

	ReindexWorker *worker.ReindexWorker
	Sweeper       *worker.Sweeper

	StartedAt time.Time
	closers   []func() error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    logger.New(cfg.Log.Level, cfg.Log.Format),
		Metrics:   metrics.New(),
		StartedAt: time.Now(),
	}
	slog.SetDefault(a.Logger)

	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, mysqlClient.Options{
		DSN:   cfg.MySQLDSN(),
		Debug: cfg.App.Env == "dev",
	})
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	a.closers = append(a.closers, func() error {
		sqlDB, err := mysqlDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	a.Redis = redisCli
	a.closers = append(a.closers, redisCli.Close)

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.ReindexQueue)
	if err != nil {
		return err
	}
	a.MQConn = mqConn
	a.closers = append(a.closers, mqConn.Close)

	if a.Blobs, err = newBlobStore(ctx, cfg); err != nil {
		return err
	}
	if a.Index, err = a.newVectorIndex(ctx); err != nil {
		return err
	}

	chat, transcriber, err := newChatModels(ctx, cfg)
	if err != nil {
		return err
	}
	gateway, err := a.newEmbeddingGateway(ctx)
	if err != nil {
		return err
	}

	extractor := extract.NewDefault(extract.Options{
		PDFMode:         cfg.Extract.PDFMode,
		Renderer:        extract.FitzRenderer{DPI: float64(cfg.Extract.PDFRenderDPI)},
		Transcriber:     transcriber,
		PageConcurrency: cfg.Extract.PageConcurrency,
		MaxImageSide:    vision.DefaultMaxSide,
	})
	splitter, err := chunker.New(chunker.WithSize(cfg.Chunk.Size), chunker.WithOverlap(cfg.Chunk.Overlap))
	if err != nil {
		return err
	}

	files := repository.NewFileRepository(a.MySQL)
	a.Ingest = appsvc.NewIngestService(appsvc.IngestDeps{
		Files:     files,
		Contents:  repository.NewContentRepository(a.MySQL),
		Chunks:    repository.NewChunkRepository(a.MySQL),
		Blobs:     a.Blobs,
		Extractor: extractor,
		Splitter:  splitter,
		Embedder:  gateway,
		Index:     a.Index,
		Publisher: rabbitmqClient.NewReindexPublisher(a.MQConn, cfg.RabbitMQ.ReindexQueue),
		Metrics:   a.Metrics,
		Logger:    a.Logger.With("component", "ingest"),
	}, appsvc.IngestOptions{
		StrictIndexing: cfg.Ingest.StrictIndexing,
		MaxUploadBytes: cfg.App.MaxUploadBytes,
		Retry:          cfg.RetryPolicy(),
	})
	a.Query = appsvc.NewQueryService(appsvc.QueryDeps{
		Embedder: gateway,
		Index:    a.Index,
		Chat:     chat,
		Metrics:  a.Metrics,
		Logger:   a.Logger.With("component", "query"),
	}, appsvc.QueryOptions{
		TopK:            cfg.LLM.TopK,
		MaxHistoryTurns: cfg.LLM.MaxHistoryTurns,
		Retry:           cfg.RetryPolicy(),
	})
	a.Content = appsvc.NewContentService(files, a.Blobs, a.Index, a.Metrics, a.Logger.With("component", "content"))

	a.ReindexWorker = worker.NewReindexWorker(a.MQConn, a.Ingest, cfg.RabbitMQ.ReindexQueue, 0, a.Metrics,
		a.Logger.With("component", "reindex_worker"))
	if err := a.ReindexWorker.Start(ctx); err != nil {
		return fmt.Errorf("start reindex worker failed: %w", err)
	}
	a.Sweeper = worker.NewSweeper(a.Ingest, cfg.SweepInterval(), cfg.SweepGrace(), cfg.Ingest.SweepBatchSize,
		a.Logger.With("component", "sweeper"))
	a.Sweeper.Start(ctx)
	return nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.Storage.Driver == "minio" {
		client, err := minioClient.New(ctx, minioClient.Options{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewMinIO(client, cfg.MinIO.Bucket), nil
	}
	return storage.NewLocal(cfg.Storage.RootDir)
}

func (a *App) newVectorIndex(ctx context.Context) (vectorindex.Index, error) {
	cfg := a.Config
	if cfg.Vector.Driver == "chromem" {
		return vectorindex.NewChromem(vectorindex.ChromemConfig{
			PersistPath: cfg.Chromem.PersistPath,
			Compress:    cfg.Chromem.Compress,
			Collection:  cfg.Chromem.Collection,
		}, a.Logger)
	}

	q, err := vectorindex.NewQdrant(vectorindex.QdrantConfig{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, q.Close)
	if err := q.EnsureCollection(ctx, cfg.Embedding.Dimensions); err != nil {
		return nil, err
	}
	return q, nil
}

func newChatModels(ctx context.Context, cfg *config.Config) (ai.ChatModel, ai.VisionModel, error) {
	if cfg.LLM.Provider == "gemini" {
		client, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			VisionModel: cfg.LLM.VisionModel,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
	client := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		Timeout:     cfg.LLMTimeout(),
	})
	return client, client, nil
}

// newEmbeddingGateway builds provider, retry and optional query cache layers.
func (a *App) newEmbeddingGateway(ctx context.Context) (embedding.Gateway, error) {
	cfg := a.Config.Embedding
	var base embedding.Gateway
	if cfg.Provider == "gemini" {
		client, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:         cfg.APIKey,
			EmbeddingModel: cfg.Model,
			Dimensions:     cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = embedding.NewGemini(client, cfg.BatchSize, cfg.MaxInputChars)
	} else {
		client := ai.NewOpenAICompatibleClient(ai.ChatConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: a.Config.LLMTimeout(),
		})
		base = embedding.NewOpenAI(client, ai.EmbeddingConfig{Model: cfg.Model, Dimensions: cfg.Dimensions},
			cfg.BatchSize, cfg.MaxInputChars)
	}

	var gateway embedding.Gateway = embedding.NewRetrying(base, a.Config.RetryPolicy())
	if cfg.CacheQueryVector {
		gateway = embedding.NewCached(gateway, cache.NewEmbeddingCache(a.Redis, a.Config.EmbeddingCacheTTL()),
			cfg.Model, a.Logger.With("component", "embedding_cache"))
	}
	return gateway, nil
}

// Close stops workers first, then releases connections in reverse order.
func (a *App) Close() error {
	if a.Sweeper != nil {
		a.Sweeper.Close()
	}
	if a.ReindexWorker != nil {
		a.ReindexWorker.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
