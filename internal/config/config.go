// Package config loads and holds the application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config mirrors the config.yaml file structure. It is loaded once at
// process start and passed by reference into every constructor that needs
// it; there is no package-level instance.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Vector        VectorConfig        `mapstructure:"vector"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Ingestion     IngestionConfig     `mapstructure:"ingestion"`
	Query         QueryConfig         `mapstructure:"query"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Tika          TikaConfig          `mapstructure:"tika"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	API           APIConfig           `mapstructure:"api"`
	LLM           LLMConfig           `mapstructure:"llm"`
}

// ServerConfig stores the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig stores the logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// VectorConfig stores the vector store settings. Driver may be left empty,
// in which case the store is picked by which credentials are present.
type VectorConfig struct {
	Driver    string `mapstructure:"driver"`
	APIKey    string `mapstructure:"api_key"`
	Host      string `mapstructure:"host"`
	IndexName string `mapstructure:"index_name"`
	Namespace string `mapstructure:"namespace"`
}

// ElasticsearchConfig stores the Elasticsearch settings.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig stores the embedding provider settings. A Gemini API key
// selects the cloud provider; otherwise the Ollama base URL is used.
type EmbeddingConfig struct {
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	GeminiBaseURL string `mapstructure:"gemini_base_url"`
	OllamaBaseURL string `mapstructure:"ollama_base_url"`
	Model         string `mapstructure:"model"`
	Dimensions    int    `mapstructure:"dimensions"`
}

// IngestionConfig stores the chunking and batch write settings.
type IngestionConfig struct {
	ChunkSize       int    `mapstructure:"chunk_size"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap"`
	BatchSize       int    `mapstructure:"batch_size"`
	CheckpointDir   string `mapstructure:"checkpoint_dir"`
	CheckpointEvery int    `mapstructure:"checkpoint_every"`
}

// QueryConfig stores the retrieval defaults.
type QueryConfig struct {
	TopK int `mapstructure:"top_k"`
}

// DatabaseConfig stores all database connection settings.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig stores the MySQL settings.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig stores the Redis settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig stores the Kafka settings.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig stores the MinIO object storage settings.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TikaConfig stores the Tika server settings.
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// JWTConfig stores the JWT settings.
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// APIConfig stores the API client credential settings. KeyHash is the
// bcrypt hash of the accepted API key (see the keyhash command).
type APIConfig struct {
	KeyHash string `mapstructure:"key_hash"`
}

// LLMConfig stores the chat model settings used by the ask command.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// Load reads the YAML file at configPath and unmarshals it into a Config.
// Environment variables override file values (dots become underscores, so
// EMBEDDING_GEMINI_API_KEY overrides embedding.gemini_api_key).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers the documented defaults so a minimal config file
// still yields a working pipeline.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("vector.index_name", "biobyia")
	v.SetDefault("embedding.gemini_base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("embedding.ollama_base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("ingestion.chunk_size", 512)
	v.SetDefault("ingestion.chunk_overlap", 50)
	v.SetDefault("ingestion.batch_size", 100)
	v.SetDefault("ingestion.checkpoint_dir", "checkpoints")
	v.SetDefault("ingestion.checkpoint_every", 10)
	v.SetDefault("query.top_k", 5)
	v.SetDefault("jwt.token_expire_hours", 24)
}
