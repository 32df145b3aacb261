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


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
)

// ProcessorType identifies reembedding checkpoints.
const ProcessorType = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of passages to embed per request
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of passages)
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the maximum number of attempts per embedding request
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`

	// OnlyMissing skips passages that already carry a vector
	OnlyMissing bool `yaml:"only_missing"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates the reembedding of all passages in a store.
type Reembedder struct {
	repo        storage.PassageRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *PassageIterator
	logger      *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithCheckpoints enables resuming: progress is saved after every batch and
// cleared when the run completes.
func WithCheckpoints(checkpoints storage.CheckpointRepository) Option {
	return func(r *Reembedder) error {
		r.checkpoints = checkpoints
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewReembedder(repo storage.PassageRepository, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewPassageIterator(repo, config.BatchSize),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reembed")
	return r, nil
}

// Run re-embeds every passage in the store, resuming from a saved checkpoint
// when one exists. Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.repo.CountPassages(ctx)
	if err != nil {
		return fmt.Errorf("failed to count passages: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No passages found in database (0 passages)\n")
		return nil
	}

	after, already, err := r.resumePoint(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d passages (batch size: %d)\n",
		total, r.iterator.batchSize)
	if after != "" {
		fmt.Fprintf(r.progress, "Resuming after passage %s (%d already done)\n", after, already)
	}

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start(already)

	processed := already
	embedded := 0
	visit := func(passages []*core.Passage) error {
		pending := passages
		if r.config.OnlyMissing {
			pending = slices.DeleteFunc(slices.Clone(passages), func(p *core.Passage) bool {
				return len(p.Vector) > 0
			})
		}
		if err := r.processor.Process(ctx, pending); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		embedded += len(pending)
		processed += len(passages)
		tracker.Add(len(passages))
		return r.saveCheckpoint(ctx, passages[len(passages)-1].ID, processed)
	}

	err = r.iterator.ForEach(ctx, after, visit)
	if errors.Is(err, ErrCheckpointNotFound) {
		r.logger.Warn("checkpoint passage no longer exists, starting over", "passage", after)
		processed = 0
		tracker.Start(0)
		err = r.iterator.ForEach(ctx, "", visit)
	}
	if err != nil {
		return err
	}

	tracker.Finish()
	if r.checkpoints != nil {
		if err := r.checkpoints.ClearCheckpoint(ctx, ProcessorType); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	elapsed := tracker.Elapsed()
	r.logger.Info("reembedding finished", "passages", total, "embedded", embedded, "elapsed", elapsed)
	fmt.Fprintf(r.progress, "Reembedding complete. Embedded %d of %d passages in %v (%.1f passages/sec)\n",
		embedded, total, elapsed.Round(time.Second), float64(embedded)/elapsed.Seconds())

	return nil
}

func (r *Reembedder) resumePoint(ctx context.Context) (string, int, error) {
	if r.checkpoints == nil {
		return "", 0, nil
	}
	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return "", 0, nil
	}
	return checkpoint.LastID, checkpoint.Processed, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, lastID string, processed int) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastID:        lastID,
		Processed:     processed,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
