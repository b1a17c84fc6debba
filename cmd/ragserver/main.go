package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragserver/internal/ai"
	"github.com/xxxsen/ragserver/internal/chunker"
	"github.com/xxxsen/ragserver/internal/config"
	"github.com/xxxsen/ragserver/internal/db"
	"github.com/xxxsen/ragserver/internal/embedcache"
	"github.com/xxxsen/ragserver/internal/filestore"
	"github.com/xxxsen/ragserver/internal/handler"
	"github.com/xxxsen/ragserver/internal/ingestfmt"
	"github.com/xxxsen/ragserver/internal/middleware"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/rag"
	"github.com/xxxsen/ragserver/internal/repo"
	"github.com/xxxsen/ragserver/internal/schedule"
	"github.com/xxxsen/ragserver/internal/service"
	"github.com/xxxsen/ragserver/internal/store"
	"github.com/xxxsen/ragserver/internal/tokenizer"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragserver",
		Short: "retrieval-augmented generation server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newIngestCmd(&configPath),
		newQueryCmd(&configPath),
		newCollectionCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func buildPipeline(cfg *config.Config, conn *sql.DB) (*rag.Pipeline, *store.Store, error) {
	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.EmbedProvider, providerArgs)
	if err != nil {
		return nil, nil, fmt.Errorf("init embed provider: %w", err)
	}
	chatProvider, err := ai.NewChatProvider(cfg.AI.ChatProvider, providerArgs)
	if err != nil {
		return nil, nil, fmt.Errorf("init chat provider: %w", err)
	}
	cache := embedcache.New(cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLMinutes)*time.Minute)
	batcher := ai.NewBatcher(embedProvider, cache, ai.BatcherConfig{
		Model:           cfg.AI.EmbedModel,
		BatchSize:       cfg.Pipeline.BatchSize,
		MaxRetries:      cfg.Pipeline.MaxRetries,
		BaseDelay:       time.Duration(cfg.Pipeline.BaseDelayMS) * time.Millisecond,
		InterBatchDelay: time.Duration(cfg.Pipeline.InterBatchDelayMS) * time.Millisecond,
		CallTimeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	generator := ai.NewGenerator(chatProvider, ai.GeneratorConfig{
		Model:       cfg.AI.ChatModel,
		MaxRetries:  cfg.Pipeline.MaxRetries,
		BaseDelay:   time.Duration(cfg.Pipeline.BaseDelayMS) * time.Millisecond,
		CallTimeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	st := store.New(conn)
	codec := tokenizer.ForModel(cfg.AI.EmbedModel)
	pipeline := rag.NewPipeline(chunker.New(codec), batcher, st, generator, rag.Config{
		ChunkTokens:       cfg.Pipeline.ChunkTokens,
		OverlapTokens:     *cfg.Pipeline.OverlapTokens,
		DefaultCollection: cfg.Pipeline.DefaultCollection,
	})
	return pipeline, st, nil
}

func queryDefaults(cfg *config.Config) model.QueryOptions {
	return model.QueryOptions{
		TopK:               cfg.Query.TopK,
		HybridAlpha:        *cfg.Query.HybridAlpha,
		MaxContextChunks:   cfg.Query.MaxContextChunks,
		ContextTokenBudget: cfg.Query.ContextTokenBudget,
		Temperature:        *cfg.Query.Temperature,
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	rootLogger := logutil.GetLogger(context.Background())
	rootLogger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("embed_provider", cfg.AI.EmbedProvider),
		zap.String("chat_provider", cfg.AI.ChatProvider),
	)

	pipeline, st, err := buildPipeline(cfg, conn)
	if err != nil {
		return err
	}
	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	jobRepo := repo.NewIngestJobRepo(conn)
	retention := time.Duration(cfg.JobRetentionHours) * time.Hour
	jobService := service.NewJobService(jobRepo, pipeline, files, retention)

	deps := handler.RouterDeps{
		Ingest:          handler.NewIngestHandler(pipeline, jobService),
		Query:           handler.NewQueryHandler(pipeline, queryDefaults(cfg)),
		Collections:     handler.NewCollectionHandler(st),
		System:          handler.NewSystemHandler(conn, cfg.AI.EmbedModel, cfg.AI.ChatModel),
		RateLimitWindow: time.Duration(cfg.RateLimitMS) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(schedule.JobFunc{
		JobName: "cleanup_finished_jobs",
		Fn:      jobService.CleanupFinished,
	}, "0 * * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	rootLogger.Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	rootLogger.Info("server stopping...")
	return nil
}

func newIngestCmd(configPath *string) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "ingest a document file into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			pipeline, _, err := buildPipeline(cfg, conn)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text, err := ingestfmt.Normalize(args[0], content)
			if err != nil {
				return err
			}
			doc := model.Document{Text: text, Source: args[0]}
			result, err := pipeline.IngestText(cmd.Context(), doc, collection, nil)
			if result != nil {
				fmt.Printf("collection=%s created=%d committed=%d\n",
					result.Collection, result.ChunksCreated, result.ChunksCommitted)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection")
	return cmd
}

func newQueryCmd(configPath *string) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "ask a question against a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			pipeline, _, err := buildPipeline(cfg, conn)
			if err != nil {
				return err
			}
			result, err := pipeline.Query(cmd.Context(), args[0], collection, queryDefaults(cfg))
			if err != nil {
				return err
			}
			fmt.Println(result.Answer)
			if len(result.RetrievedChunks) > 0 {
				fmt.Println("\nSources:")
				for _, hit := range result.RetrievedChunks {
					fmt.Printf("  [%d] %s #chunk %d (score %.4f)\n", hit.Rank, hit.Source, hit.SequenceID, hit.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection")
	return cmd
}

func newCollectionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "manage collections",
	}
	withStore := func(run func(ctx context.Context, st *store.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			_, conn, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return run(cmd.Context(), store.New(conn), args)
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "list collections",
			RunE: withStore(func(ctx context.Context, st *store.Store, args []string) error {
				infos, err := st.ListCollections(ctx)
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Printf("%s\tdim=%d\n", info.Name, info.Dim)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "stats <name>",
			Short: "show collection statistics",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, st *store.Store, args []string) error {
				stats, err := st.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				out, _ := json.Marshal(stats)
				fmt.Println(string(out))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "delete a collection and its chunks",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, st *store.Store, args []string) error {
				return st.DeleteCollection(ctx, args[0])
			}),
		},
	)
	return cmd
}
