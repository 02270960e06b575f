package config

const (
	DefaultServerAddress    = ":8090"
	DefaultChatProvider     = "openai"
	DefaultChatModel        = "gpt-4o-mini"
	DefaultTemperature      = 0.3
	DefaultMaxTokens        = 1000
	DefaultHistoryTurns     = 10
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultDimensions       = 1536
	DefaultVectorBackend    = "milvus"
	DefaultMilvusAddress    = "localhost:19530"
	DefaultCollection       = "paloma"
	DefaultConversationType = "memory"
	DefaultLeadTimeout      = 10
	DefaultBatchSize        = 100
	DefaultBatchDelayMS     = 500
	DefaultMaxPageTokens    = 8000
)

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultServerAddress
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = DefaultChatProvider
	}
	if cfg.Chat.Temperature <= 0 {
		cfg.Chat.Temperature = DefaultTemperature
	}
	if cfg.Chat.MaxTokens <= 0 {
		cfg.Chat.MaxTokens = DefaultMaxTokens
	}
	if cfg.Chat.HistoryTurns <= 0 {
		cfg.Chat.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if p := cfg.Providers["openai"]; p.Model == "" {
		p.Model = DefaultChatModel
		cfg.Providers["openai"] = p
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.Dimensions <= 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}

	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = DefaultVectorBackend
	}
	if cfg.VectorStore.Backend == "milvus" && cfg.VectorStore.Address == "" {
		cfg.VectorStore.Address = DefaultMilvusAddress
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = DefaultCollection
	}
	if cfg.VectorStore.Dimension <= 0 {
		cfg.VectorStore.Dimension = cfg.Embedding.Dimensions
	}

	if cfg.Conversations.Backend == "" {
		cfg.Conversations.Backend = DefaultConversationType
	}

	if cfg.Lead.TimeoutSeconds <= 0 {
		cfg.Lead.TimeoutSeconds = DefaultLeadTimeout
	}

	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = DefaultBatchSize
	}
	if cfg.Ingest.BatchDelayMS <= 0 {
		cfg.Ingest.BatchDelayMS = DefaultBatchDelayMS
	}
	if cfg.Ingest.MaxPageTokens <= 0 {
		cfg.Ingest.MaxPageTokens = DefaultMaxPageTokens
	}

	if len(cfg.Variants) == 0 {
		cfg.Variants = []VariantConfig{
			{Name: "chatbot", Preset: "leads", RoutePrefix: ""},
			{Name: "chatbot_v2", Preset: "concierge", RoutePrefix: "/v2"},
		}
	}
}
