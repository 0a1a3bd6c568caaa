/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/database"
	"github.com/tieubaoca/knowledge-base-be/repository"
	"github.com/tieubaoca/knowledge-base-be/service"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "knowledge-base-be",
	Short: "Knowledge base backend with retrieval-augmented question answering",
	Long: `knowledge-base-be manages document knowledge bases: it ingests PDF,
Word and text documents into a Weaviate vector store and answers
questions over them with an OpenAI-compatible LLM, citing sources.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
}

// app bundles the wired-up services a subcommand may need.
type app struct {
	cfg *config.Config

	mongoClient *mongo.Client
	embedder    *service.EmbeddingService
	vectorDB    database.VectorStore

	documents      repository.DocumentRepo
	knowledgeBases repository.KnowledgeBaseRepo
	chats          repository.ChatRepo

	ingest *service.IngestService
	rag    *service.RAGService
	chat   *service.ChatService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	db := mongoClient.Database(cfg.Mongo.Database)

	embedder := service.NewEmbeddingService(cfg.Ollama)
	vectorDB, err := database.NewWeaviateStore(cfg.Weaviate, embedder)
	if err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to connect to Weaviate: %w", err)
	}

	documents := repository.NewDocumentRepo(db)
	knowledgeBases := repository.NewKnowledgeBaseRepo(db)
	chats := repository.NewChatRepo(db)

	rag := service.NewRAGService(cfg.LLM, cfg.RAG, vectorDB, knowledgeBases)

	return &app{
		cfg:            cfg,
		mongoClient:    mongoClient,
		embedder:       embedder,
		vectorDB:       vectorDB,
		documents:      documents,
		knowledgeBases: knowledgeBases,
		chats:          chats,
		ingest: service.NewIngestService(cfg, service.NewExtractService(),
			service.NewChunkService(), vectorDB, documents, knowledgeBases),
		rag:  rag,
		chat: service.NewChatService(rag, chats),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.mongoClient.Disconnect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: failed to disconnect from MongoDB:", err)
	}
}
