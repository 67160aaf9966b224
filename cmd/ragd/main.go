// Command ragd is the CLI entrypoint wiring the RAG core and the
// streaming provider core together: knowledge-base management,
// document ingestion, retrieval queries, a watch-folder ingestion
// daemon, and one-shot streaming chat. Grounded on the teacher's
// dependency-injection wiring style in
// internal/infrastructure/http/server.go's NewServer, generalized from
// an embedded HTTP server into a cobra command tree per SPEC_FULL.md's
// ambient CLI/config stack.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/baiyu-ai/ragspace/internal/adapters/credential"
	"github.com/baiyu-ai/ragspace/internal/adapters/embedding"
	"github.com/baiyu-ai/ragspace/internal/adapters/filewatcher"
	"github.com/baiyu-ai/ragspace/internal/adapters/keyword"
	"github.com/baiyu-ai/ragspace/internal/adapters/metadata"
	"github.com/baiyu-ai/ragspace/internal/adapters/parser"
	"github.com/baiyu-ai/ragspace/internal/adapters/provider"
	"github.com/baiyu-ai/ragspace/internal/adapters/splitter"
	"github.com/baiyu-ai/ragspace/internal/adapters/stream"
	"github.com/baiyu-ai/ragspace/internal/adapters/vectordb"
	"github.com/baiyu-ai/ragspace/internal/config"
	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	"github.com/baiyu-ai/ragspace/internal/domain/ports"
	"github.com/baiyu-ai/ragspace/internal/domain/usecases"
	"github.com/baiyu-ai/ragspace/internal/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type app struct {
	cfg      *config.Config
	meta     *metadata.Store
	vectors  *vectordb.Store
	keywords *keyword.Index
	ingestor *usecases.Ingestor
	retrievr *usecases.Retriever
	streamer *usecases.ChatStreamer
	cred     *credential.EnvProvider
}

func newApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	meta, err := metadata.Open(filepath.Join(cfg.DataDir, "metadata.db"))
	if err != nil {
		return nil, err
	}
	vectors, err := vectordb.Open(filepath.Join(cfg.DataDir, "vectors.db"))
	if err != nil {
		return nil, err
	}
	keywords, err := keyword.Open(filepath.Join(cfg.DataDir, "keyword.db"))
	if err != nil {
		return nil, err
	}

	embedder := embedding.New()
	docParser := parser.New(cfg.PDFToTextPath)
	textSplitter := splitter.New()
	cred := credential.New()
	providerAdapter := provider.New()
	decoder := stream.New()

	ingestor := usecases.NewIngestor(meta, vectors, keywords, embedder, docParser, textSplitter)
	retriever := usecases.NewRetriever(meta, vectors, keywords, embedder)
	streamer := usecases.NewChatStreamer(providerAdapter, cred, decoder, meta, cfg.HTTPTimeout)

	return &app{
		cfg: cfg, meta: meta, vectors: vectors, keywords: keywords,
		ingestor: ingestor, retrievr: retriever, streamer: streamer, cred: cred,
	}, nil
}

func (a *app) Close() {
	a.meta.Close()
	a.vectors.Close()
	a.keywords.Close()
}

func main() {
	v := viper.New()
	var cfg *config.Config
	var a *app

	root := &cobra.Command{
		Use:   "ragd",
		Short: "Local RAG knowledge base and multi-provider streaming chat daemon",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load(v)
			logging.Init(cfg.LogLevel, cfg.LogPretty)
			var err error
			a, err = newApp(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.Close()
			}
		},
	}
	root.PersistentFlags().String("data-dir", "./data", "data directory for sqlite stores")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-pretty", false, "human-readable console logging")
	root.PersistentFlags().String("pdftotext-path", "", "path to an external pdftotext-style helper binary")
	root.PersistentFlags().String("watch-folder", "", "directory to watch for auto-ingestion (serve command)")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(
		newCreateKBCommand(&a),
		newIngestCommand(&a),
		newQueryCommand(&a),
		newChatCommand(&a, &cfg),
		newServeCommand(&a, &cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCreateKBCommand(a **app) *cobra.Command {
	var provider, model, description string
	var chunkSize, chunkOverlap int

	cmd := &cobra.Command{
		Use:   "create-kb <name>",
		Short: "Create a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder := embedding.New()
			dim, ok := embedder.Dimension(provider, model)
			if !ok {
				log.Warn().Str("provider", provider).Str("model", model).Msg("unknown embedding dimension, defaulting")
			}

			kb := &entities.KnowledgeBase{
				ID: uuid.NewString(), Name: args[0], Description: description,
				EmbeddingProvider: provider, EmbeddingModel: model, EmbeddingDim: dim,
				ChunkSize: chunkSize, ChunkOverlap: chunkOverlap,
				CreatedAt: time.Now(), UpdatedAt: time.Now(),
			}
			if err := (*a).meta.CreateKnowledgeBase(cmd.Context(), kb); err != nil {
				return err
			}
			fmt.Println(kb.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "openai", "embedding provider")
	cmd.Flags().StringVar(&model, "model", "text-embedding-3-small", "embedding model")
	cmd.Flags().StringVar(&description, "description", "", "knowledge base description")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", splitter.DefaultChunkSize, "chunk size")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", splitter.DefaultChunkOverlap, "chunk overlap")
	return cmd
}

func newIngestCommand(a **app) *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "ingest <kb-id> <path>",
		Short: "Ingest a file into a knowledge base",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := apiKey
			if key == "" {
				kb, err := (*a).meta.GetKnowledgeBase(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				key, err = (*a).cred.Lookup(cmd.Context(), kb.EmbeddingProvider)
				if err != nil {
					return err
				}
			}
			doc, err := (*a).ingestor.Ingest(cmd.Context(), args[0], args[1], key)
			if err != nil {
				return err
			}
			fmt.Printf("document %s status=%s chunks=%d\n", doc.ID, doc.Status, doc.ChunkCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "embedding provider api key (defaults to env lookup)")
	return cmd
}

func newQueryCommand(a **app) *cobra.Command {
	var mode string
	var topK int
	var threshold float64
	var apiKey string

	cmd := &cobra.Command{
		Use:   "query <kb-id> <query>",
		Short: "Run a retrieval query against a knowledge base",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := apiKey
			if key == "" {
				kb, err := (*a).meta.GetKnowledgeBase(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				key, _ = (*a).cred.Lookup(cmd.Context(), kb.EmbeddingProvider)
			}

			result, err := (*a).retrievr.Retrieve(cmd.Context(), entities.RetrievalRequest{
				KBID: args[0], Query: args[1], TopK: topK,
				Mode: entities.RetrievalMode(mode), SimilarityThreshold: threshold,
			}, key)
			if err != nil {
				return err
			}
			for _, c := range result.Chunks {
				fmt.Printf("[%.4f] %s: %s\n", c.Score, c.DocumentFilename, c.Chunk.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "retrieval mode: vector, keyword, hybrid")
	cmd.Flags().IntVar(&topK, "top-k", 5, "number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "embedding provider api key (defaults to env lookup)")
	return cmd
}

func newChatCommand(a **app, cfg **config.Config) *cobra.Command {
	var model, baseURL string

	cmd := &cobra.Command{
		Use:   "chat <provider> <message>",
		Short: "Send one message to a streaming chat provider and print the reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := uuid.NewString()
			if err := (*a).meta.CreateSession(cmd.Context(), &entities.ChatSession{
				ID: sessionID, Provider: args[0], Model: model,
				CreatedAt: time.Now(), UpdatedAt: time.Now(),
			}); err != nil {
				return err
			}

			messages := []entities.ChatMessage{{Role: "user", Content: args[1], Timestamp: time.Now()}}
			ch, err := (*a).streamer.Stream(cmd.Context(), sessionID, args[0], model, baseURL, messages)
			if err != nil {
				return err
			}
			for chunk := range ch {
				if chunk.Done {
					break
				}
				fmt.Print(chunk.Content)
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "gpt-4o", "model id")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "custom base url (required for azure/custom providers)")
	return cmd
}

func newServeCommand(a **app, cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watch-folder ingestion daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if c.WatchFolder == "" {
				return fmt.Errorf("--watch-folder (or RAGSPACE_WATCH_FOLDER) is required for serve")
			}

			watcher, err := filewatcher.New(nil)
			if err != nil {
				return err
			}
			defer watcher.Stop()

			events, err := watcher.Watch(cmd.Context(), c.WatchFolder)
			if err != nil {
				return err
			}

			group, ctx := errgroup.WithContext(cmd.Context())
			group.SetLimit(4)

			log.Info().Str("dir", c.WatchFolder).Msg("watch-folder ingestion daemon started")
			for {
				select {
				case <-ctx.Done():
					return group.Wait()
				case ev, ok := <-events:
					if !ok {
						return group.Wait()
					}
					if ev.Operation == ports.FileDeleted {
						continue
					}
					path := ev.Path
					group.Go(func() error {
						return autoIngest(ctx, *a, path)
					})
				}
			}
		},
	}
}

func autoIngest(ctx context.Context, a *app, path string) error {
	bases, err := a.meta.ListKnowledgeBases(ctx)
	if err != nil || len(bases) == 0 {
		log.Warn().Str("path", path).Msg("no knowledge base available for auto-ingest")
		return nil
	}
	kb := bases[0]
	key, err := a.cred.Lookup(ctx, kb.EmbeddingProvider)
	if err != nil {
		log.Error().Err(err).Msg("auto-ingest skipped: no credential")
		return nil
	}
	doc, err := a.ingestor.Ingest(ctx, kb.ID, path, key)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("auto-ingest failed")
		return nil
	}
	log.Info().Str("document_id", doc.ID).Str("path", path).Msg("auto-ingest completed")
	return nil
}
