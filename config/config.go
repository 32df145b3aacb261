// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/generation"
	"github.com/poiesic/archivist/reembed"
	"github.com/poiesic/archivist/search"
	"github.com/poiesic/archivist/synthesis"
	"github.com/poiesic/archivist/termindex"
	"gopkg.in/yaml.v3"
)

// Paths locates archivist's on-disk state.
type Paths struct {
	// Database is the BadgerDB directory.
	Database string `yaml:"database"`

	// TermIndex is the JSON term index file.
	TermIndex string `yaml:"term_index"`

	// AnnotationTexts and AnnotationLinks are optional JSON files.
	AnnotationTexts string `yaml:"annotation_texts"`
	AnnotationLinks string `yaml:"annotation_links"`
}

// Retrieval holds search limits.
type Retrieval struct {
	KeywordLimit     int     `yaml:"keyword_limit"`
	SemanticLimit    int     `yaml:"semantic_limit"`
	MinSimilarity    float32 `yaml:"min_similarity"`
	AssociationLimit int     `yaml:"association_limit"`
}

// Ingestion holds chunking and worker settings, in words and workers.
type Ingestion struct {
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	PoolSize       int `yaml:"pool_size"`
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// Logging selects the log level: debug, info, warn or error.
type Logging struct {
	Level string `yaml:"level"`
}

// Config is the complete archivist configuration.
type Config struct {
	Paths      Paths             `yaml:"paths"`
	AI         ai.Config         `yaml:"ai"`
	Retrieval  Retrieval         `yaml:"retrieval"`
	Generation generation.Policy `yaml:"generation"`
	Synthesis  synthesis.Config  `yaml:"synthesis"`
	Ingestion  Ingestion         `yaml:"ingestion"`
	Reembed    reembed.Config    `yaml:"reembed"`
	Logging    Logging           `yaml:"logging"`

	// APIKeys are the generation credentials, in rotation order.
	APIKeys []string `yaml:"-"`
}

// Default returns a Config with every field set.
func Default() *Config {
	return &Config{
		Paths: Paths{
			Database:  "archivist.db",
			TermIndex: "term_index.json",
		},
		AI: *ai.DefaultConfig(),
		Retrieval: Retrieval{
			KeywordLimit:     10,
			SemanticLimit:    10,
			MinSimilarity:    search.DefaultMinSimilarity,
			AssociationLimit: termindex.DefaultAssociationLimit,
		},
		Generation: generation.DefaultPolicy(),
		Synthesis:  synthesis.DefaultConfig(),
		Ingestion: Ingestion{
			ChunkSize:      200,
			ChunkOverlap:   40,
			PoolSize:       2,
			EmbedBatchSize: 32,
		},
		Reembed: *reembed.DefaultConfig(),
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. An empty path skips the
// file. Unknown keys in the file are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedConfig, path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Paths.Database == "" {
		return fmt.Errorf("%w: paths.database is required", ErrInvalidConfig)
	}
	if c.Paths.TermIndex == "" {
		return fmt.Errorf("%w: paths.term_index is required", ErrInvalidConfig)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Retrieval.KeywordLimit < 0 || c.Retrieval.SemanticLimit < 0 {
		return fmt.Errorf("%w: retrieval limits cannot be negative", ErrInvalidConfig)
	}
	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("%w: retrieval.min_similarity must be between -1 and 1", ErrInvalidConfig)
	}
	if c.Retrieval.AssociationLimit < 0 {
		return fmt.Errorf("%w: retrieval.association_limit cannot be negative", ErrInvalidConfig)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Ingestion.ChunkSize < 1 || c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("%w: ingestion.chunk_overlap must be between 0 and chunk_size", ErrInvalidConfig)
	}
	if c.Reembed.MaxRetries < 1 {
		return fmt.Errorf("%w: reembed.max_retries must be positive", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// KeyRing returns a credential ring over the configured API keys.
func (c *Config) KeyRing() *ai.KeyRing {
	return ai.NewKeyRing(c.APIKeys...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
