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


package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/archivist/ai"
)

// ErrScriptExhausted is returned when a MockGenerator has no scripted replies left
// and no fallback text.
var ErrScriptExhausted = errors.New("mock generator script exhausted")

// Reply is one scripted MockGenerator outcome.
type Reply struct {
	Text string
	Err  error
}

// MockGenerator is a test double for ai.Generator that plays back scripted
// replies in order and records every prompt it receives.
type MockGenerator struct {
	// GenerateFunc replaces scripted playback when set.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Fallback is returned once the script runs out. Empty means ErrScriptExhausted.
	Fallback string

	mu      sync.Mutex
	script  []Reply
	prompts []string
}

var _ ai.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a generator that plays back replies in order.
func NewMockGenerator(replies ...Reply) *MockGenerator {
	return &MockGenerator{script: replies}
}

// Generate records the prompt and returns the next scripted reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFunc
	var next *Reply
	if fn == nil && len(m.script) > 0 {
		next = &m.script[0]
		m.script = m.script[1:]
	}
	fallback := m.Fallback
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", &ai.Failure{Kind: ai.KindCancelled, Err: err}
	}

	switch {
	case fn != nil:
		return fn(ctx, prompt)
	case next != nil:
		return next.Text, next.Err
	case fallback != "":
		return fallback, nil
	default:
		return "", ErrScriptExhausted
	}
}

// Enqueue appends replies to the script.
func (m *MockGenerator) Enqueue(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
}

// Prompts returns a copy of every prompt received.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
