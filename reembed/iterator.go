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
	"fmt"

	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
)

const (
	// DefaultBatchSize is the default number of passages handed to each batch
	DefaultBatchSize = 100
)

// PassageIterator walks every live passage in document order, then position.
type PassageIterator struct {
	repo      storage.PassageRepository
	batchSize int
}

// NewPassageIterator creates a new passage iterator.
// batchSize: number of passages per batch; values <= 0 use DefaultBatchSize
func NewPassageIterator(repo storage.PassageRepository, batchSize int) *PassageIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &PassageIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches of passages. When after is not
// empty, passages up to and including that id are skipped; if the id is never
// seen, ForEach returns ErrCheckpointNotFound without calling fn.
// Iteration stops on the first error from fn. Context cancellation is checked
// between batches.
func (it *PassageIterator) ForEach(ctx context.Context, after string, fn func([]*core.Passage) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	documents, err := it.repo.ListDocuments(ctx)
	if err != nil {
		return err
	}

	batch := make([]*core.Passage, 0, it.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.Passage, 0, it.batchSize)
		return ctx.Err()
	}

	skipping := after != ""
	for _, document := range documents {
		passages, err := it.repo.GetPassagesByDocument(ctx, document)
		if err != nil {
			return fmt.Errorf("loading document %s: %w", document, err)
		}

		for _, passage := range passages {
			if skipping {
				skipping = passage.ID != after
				continue
			}
			batch = append(batch, passage)
			if len(batch) == it.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	if skipping {
		return fmt.Errorf("%w: %s", ErrCheckpointNotFound, after)
	}
	return flush()
}
