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
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabase        = "ARCHIVIST_DB"
	EnvTermIndex       = "ARCHIVIST_TERM_INDEX"
	EnvAnnotationTexts = "ARCHIVIST_ANNOTATION_TEXTS"
	EnvAnnotationLinks = "ARCHIVIST_ANNOTATION_LINKS"
	EnvHost            = "ARCHIVIST_HOST"
	EnvEmbeddingHost   = "ARCHIVIST_EMBEDDING_HOST"
	EnvGenerationHost  = "ARCHIVIST_GENERATION_HOST"
	EnvEmbeddingModel  = "ARCHIVIST_EMBEDDING_MODEL"
	EnvGenerationModel = "ARCHIVIST_GENERATION_MODEL"
	EnvLogLevel        = "ARCHIVIST_LOG_LEVEL"
	EnvAPIKeys         = "GENERATION_API_KEYS"
	EnvAPIKey          = "GENERATION_API_KEY"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnvFile loads variables from .env files into the process environment
// without overriding variables that are already set. With no arguments it
// reads ./.env. Missing files are ignored.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides fields from the environment. Empty values are ignored.
// GENERATION_API_KEYS takes precedence over the single GENERATION_API_KEY.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	set := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}

	set(EnvDatabase, &c.Paths.Database)
	set(EnvTermIndex, &c.Paths.TermIndex)
	set(EnvAnnotationTexts, &c.Paths.AnnotationTexts)
	set(EnvAnnotationLinks, &c.Paths.AnnotationLinks)
	set(EnvHost, &c.AI.EmbeddingHost)
	set(EnvHost, &c.AI.GenerationHost)
	set(EnvEmbeddingHost, &c.AI.EmbeddingHost)
	set(EnvGenerationHost, &c.AI.GenerationHost)
	set(EnvEmbeddingModel, &c.AI.EmbeddingModel)
	set(EnvGenerationModel, &c.AI.GenerationModel)
	set(EnvLogLevel, &c.Logging.Level)

	if keys := splitKeys(lookup, EnvAPIKeys); len(keys) > 0 {
		c.APIKeys = keys
	} else if value, ok := lookup(EnvAPIKey); ok && strings.TrimSpace(value) != "" {
		c.APIKeys = []string{strings.TrimSpace(value)}
	}
}

func splitKeys(lookup LookupFunc, key string) []string {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	var keys []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}
