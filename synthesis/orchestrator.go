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


package synthesis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/generation"
)

// Caller makes one resilient generation call. The outcome reports whether
// the service stopped at its length cap.
type Caller interface {
	Do(ctx context.Context, prompt string) (*generation.Outcome, error)
}

var _ Caller = (*generation.Client)(nil)

// PromptBuilder renders the prompt for one batch. contextNote is empty when
// the whole passage set fits in one call.
type PromptBuilder func(question string, batch []*core.ScoredPassage, contextNote string) string

// MergePromptBuilder renders the prompt that combines partial narratives.
type MergePromptBuilder func(question string, partials []string) string

// Advisory is raised before a run whose slice count may exhaust a daily quota.
type Advisory struct {
	Passages  int
	Slices    int
	Threshold int
}

// Stats describes one run.
type Stats struct {
	Passages      int
	Slices        int
	BatchSize     int
	Pause         time.Duration
	Calls         int
	MergeFallback bool
}

// Orchestrator runs batched synthesis over a passage set.
type Orchestrator struct {
	caller   Caller
	config   Config
	merge    MergePromptBuilder
	advisory func(Advisory)
	pause    generation.SleepFunc
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithConfig replaces the default batching configuration.
func WithConfig(config Config) Option {
	return func(o *Orchestrator) error {
		if err := config.Validate(); err != nil {
			return err
		}
		o.config = config
		return nil
	}
}

// WithMergePromptBuilder replaces DefaultMergePromptBuilder.
func WithMergePromptBuilder(merge MergePromptBuilder) Option {
	return func(o *Orchestrator) error {
		if merge == nil {
			merge = DefaultMergePromptBuilder
		}
		o.merge = merge
		return nil
	}
}

// WithAdvisory registers a callback for quota advisories. It never blocks a run.
func WithAdvisory(advisory func(Advisory)) Option {
	return func(o *Orchestrator) error {
		o.advisory = advisory
		return nil
	}
}

// WithPauseFunc replaces the wait between slices.
func WithPauseFunc(pause generation.SleepFunc) Option {
	return func(o *Orchestrator) error {
		if pause == nil {
			pause = generation.Sleep
		}
		o.pause = pause
		return nil
	}
}

// NewOrchestrator creates an orchestrator issuing calls through caller.
func NewOrchestrator(caller Caller, opts ...Option) (*Orchestrator, error) {
	if caller == nil {
		return nil, ErrCallerRequired
	}

	o := &Orchestrator{
		caller: caller,
		config: DefaultConfig(),
		merge:  DefaultMergePromptBuilder,
		pause:  generation.Sleep,
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")

	return o, nil
}

// Config returns the orchestrator's batching configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Run synthesizes one narrative for question from passages.
func (o *Orchestrator) Run(ctx context.Context, question string, passages []*core.ScoredPassage, build PromptBuilder) (string, error) {
	text, _, err := o.RunWithStats(ctx, question, passages, build)
	return text, err
}

// RunWithStats is Run that also reports what the run did.
func (o *Orchestrator) RunWithStats(ctx context.Context, question string, passages []*core.ScoredPassage, build PromptBuilder) (string, *Stats, error) {
	if build == nil {
		return "", nil, ErrPromptBuilderRequired
	}

	ctx, cancel := context.WithTimeoutCause(ctx, o.config.RunTimeout, errRunTimeout)
	defer cancel()

	stats := &Stats{Passages: len(passages)}

	if len(passages) <= o.config.SmallBatchThreshold {
		stats.Slices = 1
		stats.BatchSize = len(passages)
		stats.Calls = 1
		outcome, err := o.caller.Do(ctx, build(question, passages, ""))
		if err != nil {
			return "", stats, &SliceError{Index: 1, Total: 1, Err: err}
		}
		o.logStats(stats)
		return outcome.Text, stats, nil
	}

	tier := o.config.TierFor(len(passages))
	slices := partition(passages, tier.BatchSize)
	stats.Slices = len(slices)
	stats.BatchSize = tier.BatchSize
	stats.Pause = tier.Pause

	logger := o.logger.With("passages", len(passages), "slices", len(slices), "batchSize", tier.BatchSize)
	if len(slices) > o.config.QuotaWarningSlices {
		logger.Warn("run may exhaust the generation service's daily quota", "threshold", o.config.QuotaWarningSlices)
		if o.advisory != nil {
			o.advisory(Advisory{Passages: len(passages), Slices: len(slices), Threshold: o.config.QuotaWarningSlices})
		}
	}

	partials := make([]string, 0, len(slices))
	for i, slice := range slices {
		if i > 0 {
			if err := o.pause(ctx, tier.Pause); err != nil {
				return "", stats, &SliceError{Index: i + 1, Total: len(slices), Err: contextFailure(ctx, err)}
			}
		}

		logger.Debug("generating slice", "slice", i+1)
		stats.Calls++
		outcome, err := o.caller.Do(ctx, build(question, slice, ContextNote(i+1, len(slices))))
		if err != nil {
			logger.Error("slice generation failed", "slice", i+1, "err", err)
			return "", stats, &SliceError{Index: i + 1, Total: len(slices), Err: err}
		}
		if outcome.Truncated {
			logger.Warn("slice narrative truncated at the length cap", "slice", i+1)
		}
		partials = append(partials, outcome.Text)
	}

	if len(partials) == 1 {
		o.logStats(stats)
		return partials[0], stats, nil
	}

	stats.Calls++
	outcome, err := o.caller.Do(ctx, o.merge(question, partials))
	if err != nil && ctx.Err() != nil {
		// Cancellation and the run ceiling propagate; they are not merge failures.
		return "", stats, contextFailure(ctx, err)
	}

	var merged string
	switch {
	case err != nil:
		logger.Warn("merge call failed, concatenating partial narratives", "err", err)
	case outcome.Truncated:
		// A truncated merge has lost the tail of the later partials.
		logger.Warn("merge narrative truncated, concatenating partial narratives", "partialLength", len(outcome.Text))
	case strings.TrimSpace(outcome.Text) == "":
		logger.Warn("merge call returned no text, concatenating partial narratives")
	default:
		merged = outcome.Text
	}
	if merged == "" {
		stats.MergeFallback = true
		merged = strings.Join(partials, o.config.SectionSeparator)
	}

	o.logStats(stats)
	return merged, stats, nil
}

func (o *Orchestrator) logStats(stats *Stats) {
	o.logger.Info("synthesis finished",
		"passages", stats.Passages,
		"slices", stats.Slices,
		"calls", stats.Calls,
		"mergeFallback", stats.MergeFallback)
}

// partition cuts passages into consecutive slices of at most size.
func partition(passages []*core.ScoredPassage, size int) [][]*core.ScoredPassage {
	slices := make([][]*core.ScoredPassage, 0, (len(passages)+size-1)/size)
	for start := 0; start < len(passages); start += size {
		end := min(start+size, len(passages))
		slices = append(slices, passages[start:end])
	}
	return slices
}

// contextFailure reports why ctx ended as a timeout or cancellation failure.
func contextFailure(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	if cause == nil {
		return err
	}
	if errors.Is(cause, errRunTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ai.Failure{Kind: ai.KindTimeout, Err: cause}
	}
	return &ai.Failure{Kind: ai.KindCancelled, Err: cause}
}
