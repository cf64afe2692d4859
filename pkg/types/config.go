// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperqa/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the paper search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of results to return (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// RecencyBiasWindow is the time window for boosting recent papers (default 2 years).
	RecencyBiasWindow time.Duration `json:"recency_bias_window" yaml:"recency_bias_window"`
}

// AcquisitionConfig holds settings for downloading papers.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	// DownloadDelay is the delay between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// PapersDir is the directory PDFs and their metadata sidecars are written to.
	PapersDir string `json:"papers_dir" yaml:"papers_dir"`
}

// Provider names a language model or embedding API family.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderHashing   Provider = "hashing"
)

// AIConfig holds shared settings for components that call a generative AI API.
type AIConfig struct {
	// Provider selects the API family: openai or anthropic.
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the answer model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// SummaryModel is used for citations and per-chunk summaries.
	// Empty means Model.
	SummaryModel string `json:"summary_model,omitempty" yaml:"summary_model,omitempty"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Temperature is the sampling temperature.
	Temperature float32 `json:"temperature" yaml:"temperature"`

	// CachePath is the SQLite file for cached completions. Empty disables caching.
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider is openai (any OpenAI-compatible endpoint) or hashing (offline).
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the embedding model (e.g. "text-embedding-3-small").
	Model string `json:"model" yaml:"model"`

	// Dimensions is the vector size. Required for hashing, checked for openai.
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// QueryInstruction and DocumentInstruction are prepended to texts
	// for instruction-tuned embedding models.
	QueryInstruction    string `json:"query_instruction,omitempty" yaml:"query_instruction,omitempty"`
	DocumentInstruction string `json:"document_instruction,omitempty" yaml:"document_instruction,omitempty"`
}

// IndexBackend selects the vector index implementation.
type IndexBackend string

const (
	IndexMemory   IndexBackend = "memory"
	IndexPgvector IndexBackend = "pgvector"
)

// IndexConfig holds settings for the vector index.
type IndexConfig struct {
	// Backend is memory (persisted to files) or pgvector.
	Backend IndexBackend `json:"backend" yaml:"backend"`

	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// Table is the pgvector table name (default "paperqa_chunks").
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

// CollectionConfig holds settings for a document collection.
type CollectionConfig struct {
	// Dir holds docs.db and the index artifacts.
	Dir string `json:"dir" yaml:"dir"`

	// ChunkChars is the maximum chunk length in characters (default 3000).
	ChunkChars int `json:"chunk_chars" yaml:"chunk_chars"`

	// Overlap is the number of characters shared by neighbouring chunks (default 100).
	Overlap int `json:"overlap" yaml:"overlap"`

	// Concurrency bounds parallel summary calls (0 = one per candidate).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// RequestsPerSecond throttles summary calls (0 = unlimited).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// QueryConfig holds the defaults for answering a question.
type QueryConfig struct {
	// K is the number of candidate chunks retrieved (default 10).
	K int `json:"k" yaml:"k"`

	// MaxSources caps the accepted evidence (default 5).
	MaxSources int `json:"max_sources" yaml:"max_sources"`

	// LengthHint is passed to the answer prompt (default "about 100 words").
	LengthHint string `json:"length_hint" yaml:"length_hint"`

	// Diversity selects marginal-relevance retrieval (default true).
	Diversity bool `json:"diversity" yaml:"diversity"`
}

// Config groups all settings for the CLI.
type Config struct {
	AI         AIConfig          `json:"ai" yaml:"ai"`
	Embedding  EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	Index      IndexConfig       `json:"index" yaml:"index"`
	Collection CollectionConfig  `json:"collection" yaml:"collection"`
	Query      QueryConfig       `json:"query" yaml:"query"`
	Search     SearchConfig      `json:"search" yaml:"search"`
	Acquire    AcquisitionConfig `json:"acquire" yaml:"acquire"`
}
