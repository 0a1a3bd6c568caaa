package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	UploadDir         string   `mapstructure:"upload_dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`

	RAG      RAGConfig           `mapstructure:"rag"`
	Ollama   OllamaConfig        `mapstructure:"ollama"`
	LLM      LLMConfig           `mapstructure:"llm"`
	Weaviate WeaviateStoreConfig `mapstructure:"weaviate"`
	Mongo    MongoConfig         `mapstructure:"mongo"`
}

// RAGConfig holds the global pipeline defaults; a knowledge base may
// override chunking and retrieval knobs per record.
type RAGConfig struct {
	ChunkSize           int     `mapstructure:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinTextLength       int     `mapstructure:"min_text_length"`
}

type OllamaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TimeoutSecs    int    `mapstructure:"timeout_secs"`
}

type LLMConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"LLM_API_KEY"`
	DefaultModel string  `mapstructure:"default_model"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	TimeoutSecs  int     `mapstructure:"timeout_secs"`
}

type WeaviateStoreConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

type MongoConfig struct {
	URI      string `mapstructure:"MONGODB_URI"`
	Database string `mapstructure:"database"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	// Secrets come from the environment, not the yaml file.
	v.BindEnv("llm.LLM_API_KEY", "LLM_API_KEY")
	v.BindEnv("weaviate.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")
	v.BindEnv("mongo.MONGODB_URI", "MONGODB_URI")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("allowed_extensions", []string{"pdf", "doc", "docx", "txt"})

	v.SetDefault("rag.chunk_size", 500)
	v.SetDefault("rag.chunk_overlap", 50)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.similarity_threshold", 0.7)
	v.SetDefault("rag.min_text_length", 10)

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.embedding_model", "nomic-embed-text")
	v.SetDefault("ollama.timeout_secs", 30)

	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.default_model", "qwen2-7b-instruct")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_secs", 120)

	v.SetDefault("weaviate.host", "http://localhost:8080")
	v.SetDefault("mongo.database", "knowledge_base")
}
