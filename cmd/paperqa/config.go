// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperqa/internal/chunk"
	"github.com/pdiddy/paperqa/internal/docs"
	"github.com/pdiddy/paperqa/internal/embed"
	"github.com/pdiddy/paperqa/internal/secrets"
	"github.com/pdiddy/paperqa/pkg/types"
)

const (
	defaultCollectionDir = ".paperqa"
	defaultModel         = "gpt-4o-mini"
	defaultTimeout       = 60 * time.Second
	defaultDelay         = 1 * time.Second
	defaultUserAgent     = "paperqa/0.1"
)

func setDefaults() {
	viper.SetDefault("ai.provider", string(types.ProviderOpenAI))
	viper.SetDefault("ai.model", defaultModel)
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("embedding.provider", string(types.ProviderOpenAI))
	viper.SetDefault("embedding.model", embed.DefaultOpenAIModel)
	viper.SetDefault("index.backend", string(types.IndexMemory))
	viper.SetDefault("collection.chunk_chars", chunk.DefaultChunkChars)
	viper.SetDefault("collection.overlap", chunk.DefaultOverlap)
	viper.SetDefault("query.k", 10)
	viper.SetDefault("query.max_sources", 5)
	viper.SetDefault("query.length_hint", docs.DefaultLengthHint)
	viper.SetDefault("query.diversity", true)
	viper.SetDefault("search.max_results", 20)
	viper.SetDefault("search.recency_bias_window", 2*365*24*time.Hour)
	viper.SetDefault("http.timeout", defaultTimeout)
	viper.SetDefault("http.user_agent", defaultUserAgent)
	viper.SetDefault("acquire.download_delay", defaultDelay)
	viper.SetDefault("acquire.papers_dir", "papers")
}

// mustBind binds a config key to a flag; it only fails on a nil flag.
func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding %s: %v", key, err))
	}
}

// loadConfig assembles the configuration from defaults, the config file,
// PAPERQA_* environment variables, bound flags and secrets.
func loadConfig() types.Config {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}

	cfg := types.Config{
		AI: types.AIConfig{
			Provider:     types.Provider(viper.GetString("ai.provider")),
			Model:        viper.GetString("ai.model"),
			SummaryModel: viper.GetString("ai.summary_model"),
			APIKey:       viper.GetString("ai.api_key"),
			BaseURL:      viper.GetString("ai.base_url"),
			MaxRetries:   viper.GetInt("ai.max_retries"),
			Temperature:  float32(viper.GetFloat64("ai.temperature")),
			CachePath:    viper.GetString("ai.cache_path"),
		},
		Embedding: types.EmbeddingConfig{
			Provider:            types.Provider(viper.GetString("embedding.provider")),
			Model:               viper.GetString("embedding.model"),
			Dimensions:          viper.GetInt("embedding.dimensions"),
			APIKey:              viper.GetString("embedding.api_key"),
			BaseURL:             viper.GetString("embedding.base_url"),
			QueryInstruction:    viper.GetString("embedding.query_instruction"),
			DocumentInstruction: viper.GetString("embedding.document_instruction"),
		},
		Index: types.IndexConfig{
			Backend: types.IndexBackend(viper.GetString("index.backend")),
			DSN:     viper.GetString("index.dsn"),
			Table:   viper.GetString("index.table"),
		},
		Collection: types.CollectionConfig{
			Dir:               viper.GetString("collection.dir"),
			ChunkChars:        viper.GetInt("collection.chunk_chars"),
			Overlap:           viper.GetInt("collection.overlap"),
			Concurrency:       viper.GetInt("collection.concurrency"),
			RequestsPerSecond: viper.GetFloat64("collection.requests_per_second"),
		},
		Query: types.QueryConfig{
			K:          viper.GetInt("query.k"),
			MaxSources: viper.GetInt("query.max_sources"),
			LengthHint: viper.GetString("query.length_hint"),
			Diversity:  viper.GetBool("query.diversity"),
		},
		Search: types.SearchConfig{
			HTTPConfig:        httpCfg,
			MaxResults:        viper.GetInt("search.max_results"),
			RecencyBiasWindow: viper.GetDuration("search.recency_bias_window"),
		},
		Acquire: types.AcquisitionConfig{
			HTTPConfig:    httpCfg,
			DownloadDelay: viper.GetDuration("acquire.download_delay"),
			PapersDir:     viper.GetString("acquire.papers_dir"),
		},
	}

	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case types.ProviderAnthropic:
			cfg.AI.APIKey = secrets.Lookup(loadedSecrets, secrets.AnthropicKey)
		default:
			cfg.AI.APIKey = secrets.Lookup(loadedSecrets, secrets.OpenAIKey)
		}
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider != types.ProviderHashing {
		cfg.Embedding.APIKey = secrets.Lookup(loadedSecrets, secrets.OpenAIKey)
	}
	return cfg
}

// queryRequest builds a request from the configured defaults.
func queryRequest(cfg types.QueryConfig, question string) docs.QueryRequest {
	req := docs.DefaultQuery(question)
	if cfg.K > 0 {
		req.K = cfg.K
	}
	if cfg.MaxSources > 0 {
		req.MaxSources = cfg.MaxSources
	}
	if cfg.LengthHint != "" {
		req.LengthHint = cfg.LengthHint
	}
	req.Diversity = cfg.Diversity
	return req
}
