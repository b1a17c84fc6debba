package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

type Config struct {
	Port              int              `json:"port"`
	LogConfig         logger.LogConfig `json:"log_config"`
	Database          DatabaseConfig   `json:"database"`
	AI                AIConfig         `json:"ai"`
	Pipeline          PipelineConfig   `json:"pipeline"`
	Query             QueryConfig      `json:"query"`
	FileStore         FileStoreConfig  `json:"file_store"`
	CORSOrigins       []string         `json:"cors_origins"`
	RateLimitMS       int              `json:"rate_limit_ms"`
	JobRetentionHours int              `json:"job_retention_hours"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	EmbedProvider   string      `json:"embed_provider"`
	EmbedModel      string      `json:"embed_model"`
	ChatProvider    string      `json:"chat_provider"`
	ChatModel       string      `json:"chat_model"`
	TimeoutSeconds  int         `json:"timeout_seconds"`
	CacheSize       int         `json:"cache_size"`
	CacheTTLMinutes int         `json:"cache_ttl_minutes"`
	Data            interface{} `json:"data"`
}

// OverlapTokens, HybridAlpha and Temperature are pointers so that an
// absent key takes the default while an explicit zero stays zero.
type PipelineConfig struct {
	ChunkTokens       int    `json:"chunk_tokens"`
	OverlapTokens     *int   `json:"overlap_tokens"`
	BatchSize         int    `json:"batch_size"`
	MaxRetries        int    `json:"max_retries"`
	BaseDelayMS       int    `json:"base_delay_ms"`
	InterBatchDelayMS int    `json:"inter_batch_delay_ms"`
	DefaultCollection string `json:"default_collection"`
}

type QueryConfig struct {
	TopK               int      `json:"top_k"`
	HybridAlpha        *float64 `json:"hybrid_alpha"`
	MaxContextChunks   int      `json:"max_context_chunks"`
	ContextTokenBudget int      `json:"context_token_budget"`
	Temperature        *float64 `json:"temperature"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = "openai"
	}
	if cfg.AI.ChatProvider == "" {
		cfg.AI.ChatProvider = cfg.AI.EmbedProvider
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-3-small"
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "gpt-4o"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 4096
	}
	if cfg.AI.CacheTTLMinutes <= 0 {
		cfg.AI.CacheTTLMinutes = 60
	}
	if err := fillPipelineDefaults(&cfg.Pipeline); err != nil {
		return nil, err
	}
	if err := fillQueryDefaults(&cfg.Query); err != nil {
		return nil, err
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		cfg.FileStore.Data = map[string]interface{}{"dir": "./uploads"}
	}
	if cfg.JobRetentionHours <= 0 {
		cfg.JobRetentionHours = 168
	}
	return &cfg, nil
}

// Out-of-range values are configuration errors, never silently clamped;
// only absent keys take defaults.
func fillPipelineDefaults(p *PipelineConfig) error {
	if p.ChunkTokens <= 0 {
		p.ChunkTokens = 400
	}
	if p.OverlapTokens == nil {
		v := 60
		p.OverlapTokens = &v
	}
	if *p.OverlapTokens < 0 || *p.OverlapTokens >= p.ChunkTokens {
		return errs.Configurationf("overlap_tokens %d must be in [0, chunk_tokens %d)",
			*p.OverlapTokens, p.ChunkTokens)
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 100
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 5
	}
	if p.BaseDelayMS <= 0 {
		p.BaseDelayMS = 500
	}
	if p.InterBatchDelayMS <= 0 {
		p.InterBatchDelayMS = 100
	}
	if p.DefaultCollection == "" {
		p.DefaultCollection = "documents"
	}
	return nil
}

func fillQueryDefaults(q *QueryConfig) error {
	if q.TopK <= 0 {
		q.TopK = 5
	}
	if q.HybridAlpha == nil {
		v := 0.5
		q.HybridAlpha = &v
	}
	if *q.HybridAlpha < 0 || *q.HybridAlpha > 1 {
		return errs.Configurationf("hybrid_alpha must be in [0,1], got %v", *q.HybridAlpha)
	}
	if q.MaxContextChunks <= 0 {
		q.MaxContextChunks = 6
	}
	if q.ContextTokenBudget <= 0 {
		q.ContextTokenBudget = 3000
	}
	if q.Temperature == nil {
		v := 0.2
		q.Temperature = &v
	}
	if *q.Temperature < 0 {
		return errs.Configurationf("temperature must be >= 0, got %v", *q.Temperature)
	}
	return nil
}
