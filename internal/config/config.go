package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdf-chat/internal/apperr"
)

const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"

	VectorStoreFlat    = "flat"
	VectorStoreChromem = "chromem"

	DriverPostgres = "postgres"
	DriverPQ       = "pq"
	DriverSQLite   = "sqlite"

	DefaultAPIKeyEnv  = "NEXUS_API_KEY"
	DefaultBaseURLEnv = "NEXUS_API_BASE"
)

// LLMConfig describes one upstream model endpoint.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	BaseURLEnv  string `yaml:"base_url_env"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Key         string `yaml:"-"`
	Model       string `yaml:"model"`
	APIVersion  string `yaml:"api_version"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the per-call deadline.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	Encoding      string `yaml:"encoding"`
	TopK          int    `yaml:"top_k"`
	AppendUploads bool   `yaml:"append_uploads"`
	SystemPrompt  string `yaml:"system_prompt"`
	VectorStore   string `yaml:"vector_store"`
	DBPath        string `yaml:"db_path"`
	Collection    string `yaml:"collection"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	PasswordEnv string `yaml:"password_env"`
	Password    string `yaml:"-"`
	Debug       bool   `yaml:"debug"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// LoadConfig reads the yaml file at path, applies defaults and resolves
// secrets from the environment. A missing file yields the defaults.
// The result is not validated; call Validate before wiring the pipeline.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperr.New(apperr.KindConfig, "parse "+path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, apperr.New(apperr.KindConfig, "read "+path, err)
	}

	applyDefaults(cfg)
	resolveEnv(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyLLMDefaults(&cfg.LLM, "gpt-4o-mini")
	applyLLMDefaults(&cfg.EmbedLLM, "text-embedding-ada-002")
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == cfg.LLM.Provider {
		cfg.EmbedLLM.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.EmbedLLM.APIVersion == "" {
		cfg.EmbedLLM.APIVersion = cfg.LLM.APIVersion
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 500
	}
	if cfg.RAG.Encoding == "" {
		cfg.RAG.Encoding = "cl100k_base"
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.SystemPrompt == "" {
		cfg.RAG.SystemPrompt = "You are a helpful assistant."
	}
	if cfg.RAG.VectorStore == "" {
		cfg.RAG.VectorStore = VectorStoreFlat
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = "pdf_chunks"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.PasswordEnv == "" {
		cfg.Database.PasswordEnv = "DATABASE_PASSWORD"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.BaseURLEnv == "" {
		c.BaseURLEnv = DefaultBaseURLEnv
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Provider == ProviderAzure && c.APIVersion == "" {
		c.APIVersion = "2024-06-01"
	}
	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = 60
	}
}

func resolveEnv(cfg *Config) {
	for _, c := range []*LLMConfig{&cfg.LLM, &cfg.EmbedLLM} {
		c.Key = strings.TrimSpace(os.Getenv(c.APIKeyEnv))
		if v := strings.TrimSpace(os.Getenv(c.BaseURLEnv)); v != "" {
			c.BaseURL = v
		}
	}
	cfg.Database.Password = os.Getenv(cfg.Database.PasswordEnv)
}

// Validate reports every missing or inconsistent setting as a ConfigError.
func (c *Config) Validate() error {
	var problems []string
	problems = append(problems, c.LLM.validate("llm")...)
	problems = append(problems, c.EmbedLLM.validate("embed_llm")...)

	switch c.RAG.VectorStore {
	case VectorStoreFlat:
	case VectorStoreChromem:
		if c.RAG.DBPath != "" && c.RAG.EncryptionKey != "" && len(c.RAG.EncryptionKey) != 32 {
			problems = append(problems, "rag.encryption_key must be 32 bytes")
		}
	default:
		problems = append(problems, fmt.Sprintf("rag.vector_store %q is not supported", c.RAG.VectorStore))
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case DriverPostgres, DriverPQ, DriverSQLite:
		default:
			problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
		}
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required when the history store is enabled")
		}
	}

	if len(problems) > 0 {
		return apperr.New(apperr.KindConfig, "validate", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

func (c *LLMConfig) validate(section string) []string {
	var problems []string
	switch c.Provider {
	case ProviderOpenAI, ProviderAzure:
		if c.Key == "" {
			problems = append(problems, fmt.Sprintf("%s: environment variable %s is not set", section, c.APIKeyEnv))
		}
		if c.Provider == ProviderAzure && c.BaseURL == "" {
			problems = append(problems, fmt.Sprintf("%s.base_url (or %s) is required for azure", section, c.BaseURLEnv))
		}
	case ProviderOllama:
		if c.BaseURL == "" {
			problems = append(problems, fmt.Sprintf("%s.base_url is required for ollama", section))
		}
	default:
		problems = append(problems, fmt.Sprintf("%s.provider %q is not supported", section, c.Provider))
	}
	if c.Model == "" {
		problems = append(problems, fmt.Sprintf("%s.model is required", section))
	}
	return problems
}
