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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Embedding and generation go through langchaingo, so the same code talks to
// OpenAI, Ollama, vLLM, or any gateway that speaks the chat completions
// protocol. Generator performs exactly one call per Generate and reports
// failures as *ai.Failure values; classifyError is the single place where
// service error text is interpreted.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config, ai.Credential{Name: "local"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Treaty of Nerchinsk")
//	answer, err := provider.Generator().Generate(ctx, prompt)
package openai
