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


package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/archivist/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var errEmptyResponse = errors.New("service returned no choices")

// Stop reasons reported by OpenAI-compatible and Gemini-style services, lowercased.
var (
	truncatedStopReasons = map[string]bool{
		"length":                   true,
		"max_tokens":               true,
		"finishreasonlength":       true,
		"finish_reason_max_tokens": true,
	}
	blockedStopReasons = map[string]bool{
		"content_filter":     true,
		"safety":             true,
		"prohibited_content": true,
		"blocklist":          true,
		"spii":               true,
	}
	// GenerationInfo keys that may hold text when Content is empty.
	partialTextKeys = []string{"text", "content", "partial_text", "output"}
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client  llms.Model
	options []llms.CallOption
	logger  *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(config *ai.Config, credential ai.Credential) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local OpenAI-compatible services accept any token
	token := credential.Token
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(token),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return newGeneratorWithModel(client, config, credential), nil
}

func newGeneratorWithModel(client llms.Model, config *ai.Config, credential ai.Credential) *Generator {
	return &Generator{
		client: client,
		options: []llms.CallOption{
			llms.WithTemperature(config.Temperature),
			llms.WithMaxTokens(config.MaxTokens),
		},
		logger: slog.Default().With("component", "openai-generator", "credential", credential.Name),
	}
}

// NewGenerator creates a generator bound to one credential.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config, credential ai.Credential) (ai.Generator, error) {
	return newGenerator(config, credential)
}

// NewGeneratorFactory returns a factory that builds generators for rotated credentials.
func NewGeneratorFactory(config *ai.Config) ai.GeneratorFactory {
	return func(credential ai.Credential) (ai.Generator, error) {
		return newGenerator(config, credential)
	}
}

// Generate sends one prompt. It never retries.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	g.logger.Debug("sending generation request", "promptLength", len(prompt))
	response, err := g.client.GenerateContent(ctx, content, g.options...)
	if err != nil {
		failure := classifyError(err)
		g.logger.Debug("generation request failed", "kind", failure.Kind, "retryAfter", failure.RetryAfter, "err", err)
		return "", failure
	}

	return g.interpret(response)
}

// interpret turns a successful HTTP response into text or a failure based on
// why the model stopped.
func (g *Generator) interpret(response *llms.ContentResponse) (string, error) {
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", &ai.Failure{Kind: ai.KindOther, Err: errEmptyResponse}
	}

	choice := response.Choices[0]
	reason := strings.ToLower(choice.StopReason)

	switch {
	case truncatedStopReasons[reason]:
		partial := extractPartial(response)
		g.logger.Warn("generation stopped at length limit", "partialLength", len(partial))
		return "", &ai.Failure{Kind: ai.KindTruncated, Partial: partial}
	case blockedStopReasons[reason]:
		return "", &ai.Failure{Kind: ai.KindContentBlocked, Err: errors.New("response stopped: " + choice.StopReason)}
	}

	return choice.Content, nil
}

// extractPartial looks for text in every place a truncated response may keep it.
// Returns "" when there is none.
func extractPartial(response *llms.ContentResponse) string {
	for _, choice := range response.Choices {
		if choice == nil {
			continue
		}
		if strings.TrimSpace(choice.Content) != "" {
			return choice.Content
		}
		for _, key := range partialTextKeys {
			if text, ok := choice.GenerationInfo[key].(string); ok && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return ""
}
