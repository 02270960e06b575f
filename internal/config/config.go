package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the chat server and the ingestion utility.
type Config struct {
	Server        ServerConfig              `json:"server" yaml:"server"`
	Chat          ChatConfig                `json:"chat" yaml:"chat"`
	Providers     map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Embedding     EmbeddingConfig           `json:"embedding" yaml:"embedding"`
	VectorStore   VectorStoreConfig         `json:"vector_store" yaml:"vector_store"`
	Conversations ConversationConfig        `json:"conversations" yaml:"conversations"`
	Databases     map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis         RedisConfig               `json:"redis" yaml:"redis"`
	Lead          LeadConfig                `json:"lead" yaml:"lead"`
	Ingest        IngestConfig              `json:"ingest" yaml:"ingest"`
	Variants      []VariantConfig           `json:"variants" yaml:"variants"`
}

type ServerConfig struct {
	Address string `json:"address" yaml:"address"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

// ChatConfig selects the completion provider and the sampling limits of every answer.
type ChatConfig struct {
	Provider     string  `json:"provider" yaml:"provider"`
	Model        string  `json:"model" yaml:"model"`
	Temperature  float32 `json:"temperature" yaml:"temperature"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens"`
	HistoryTurns int     `json:"history_turns" yaml:"history_turns"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

type EmbeddingConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	Model      string `json:"model" yaml:"model"`
	Dimensions int    `json:"dimensions" yaml:"dimensions"`
}

// VectorStoreConfig describes the similarity index. Backend is "milvus" or "chromem".
type VectorStoreConfig struct {
	Backend    string `json:"backend" yaml:"backend"`
	Address    string `json:"address" yaml:"address"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	Collection string `json:"collection" yaml:"collection"`
	Dimension  int    `json:"dimension" yaml:"dimension"`
	Path       string `json:"path" yaml:"path"`
}

// ConversationConfig picks the conversation store: "memory", "redis", "sqlite3" or "mysql".
type ConversationConfig struct {
	Backend string `json:"backend" yaml:"backend"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type LeadConfig struct {
	WebhookURL     string `json:"webhook_url" yaml:"webhook_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type IngestConfig struct {
	BatchSize     int `json:"batch_size" yaml:"batch_size"`
	BatchDelayMS  int `json:"batch_delay_ms" yaml:"batch_delay_ms"`
	MaxPageTokens int `json:"max_page_tokens" yaml:"max_page_tokens"`
}

// VariantConfig mounts one chat pipeline preset under a route prefix. Empty fields keep
// the preset's values.
type VariantConfig struct {
	Name         string `json:"name" yaml:"name"`
	Preset       string `json:"preset" yaml:"preset"`
	RoutePrefix  string `json:"route_prefix" yaml:"route_prefix"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	TopK         int    `json:"top_k" yaml:"top_k"`
}

// Load reads configuration from the provided path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", absPath, err)
		}
		switch strings.ToLower(filepath.Ext(absPath)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("decode config: %w", err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("decode config: %w", err)
			}
		}
		if cfg.VectorStore.Path != "" && !filepath.IsAbs(cfg.VectorStore.Path) {
			cfg.VectorStore.Path = filepath.Join(filepath.Dir(absPath), cfg.VectorStore.Path)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.VectorStore.Dimension != cfg.Embedding.Dimensions {
		return nil, fmt.Errorf("vector_store.dimension (%d) must match embedding.dimensions (%d)",
			cfg.VectorStore.Dimension, cfg.Embedding.Dimensions)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RAGCHAT_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		p := cfg.Providers["openai"]
		if p.APIKey == "" {
			p.APIKey = key
			cfg.Providers["openai"] = p
		}
	}
	if key := os.Getenv("MILVUS_API_KEY"); key != "" && cfg.VectorStore.APIKey == "" {
		cfg.VectorStore.APIKey = key
	}
	if cfg.Lead.WebhookURL == "" {
		cfg.Lead.WebhookURL = os.Getenv("LEAD_WEBHOOK_URL")
	}
	if cfg.Lead.WebhookURL == "" {
		cfg.Lead.WebhookURL = os.Getenv("GOOGLE_SHEETS_WEB_URL")
	}
}

// Provider returns the settings of the configured chat provider with the chat model
// taking precedence over the provider default.
func (c *Config) Provider() (string, ProviderConfig) {
	p := c.Providers[c.Chat.Provider]
	if c.Chat.Model != "" {
		p.Model = c.Chat.Model
	}
	return c.Chat.Provider, p
}
