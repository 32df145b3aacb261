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


// Package ai provides abstractions for AI services used in archivist.
//
// This package defines interfaces for text embeddings and text generation,
// plus the vocabulary shared by everything that talks to a generation
// service: the failure taxonomy and credentials.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: One call to a remote text-generation service, no retries
//   - AIProvider: Aggregates AI services for convenient initialization
//   - CredentialProvider: Supplies API keys and rotates them on quota exhaustion
//
// # Failures
//
// Generators report failures as *Failure values tagged with a FailureKind.
// Classification happens once, at the adapter boundary (ai/openai), so the
// retry logic in package generation works on kinds and never on messages.
// Every Failure matches its kind's sentinel with errors.Is:
//
//	if errors.Is(err, ai.ErrQuotaExhausted) { ... }
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs via langchaingo
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors in ai/openai return INTERFACE types to prevent
// accidental coupling to concrete implementations:
//
//	provider, err := openai.NewProvider(config, credential)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockGenerator)
// return CONCRETE types to enable test assertions and scripted behavior.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config, ai.Credential{Name: "local", Token: "none"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Warburg bank, 1923")
//	text, err := provider.Generator().Generate(ctx, prompt)
package ai
