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


package dedupe

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
)

// DefaultWindow is the minimum overlap, in words, for boundary and window merges.
const DefaultWindow = 3

// MetadataMergedFrom lists, comma separated, the ids a merged passage replaced.
const MetadataMergedFrom = "merged_from"

// Result is the outcome of a dedupe pass.
type Result struct {
	// Passages are all surviving passages, merged and untouched, ordered by
	// document then position.
	Passages []*core.Passage

	// Merged are the new passages created by merging.
	Merged []*core.Passage

	// Rewrite maps every consumed id to the id of its merged passage.
	Rewrite map[string]string

	// Tombstoned lists consumed ids in processing order.
	Tombstoned []string

	// Lossy lists merged ids whose chain used the window rule and therefore
	// repeats the shared span.
	Lossy []string
}

type options struct {
	window int
	logger *slog.Logger
}

// Option configures Dedupe.
type Option func(*options) error

// WithWindow sets the minimum overlap in words.
// Default is DefaultWindow.
func WithWindow(words int) Option {
	return func(o *options) error {
		if words < 1 {
			return ErrInvalidWindow
		}
		o.window = words
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Dedupe merges overlapping passages within each document of groups, keyed by
// source document. Input passages are not modified.
func Dedupe(groups map[string][]*core.Passage, opts ...Option) (*Result, error) {
	o := &options{window: DefaultWindow, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	logger := o.logger.With("component", "dedupe")

	result := &Result{Rewrite: make(map[string]string)}

	for _, document := range slices.Sorted(maps.Keys(groups)) {
		passages := slices.Clone(groups[document])
		passages = slices.DeleteFunc(passages, func(p *core.Passage) bool { return p == nil })
		slices.SortStableFunc(passages, func(a, b *core.Passage) int {
			if c := cmp.Compare(a.Position, b.Position); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		words := make([][]string, len(passages))
		for i, p := range passages {
			words[i] = strings.Fields(p.Text)
		}

		consumed := make([]bool, len(passages))
		for i, head := range passages {
			if consumed[i] {
				continue
			}

			acc := words[i]
			members := []*core.Passage{head}
			lossy := false
			for j := i + 1; j < len(passages); j++ {
				if consumed[j] {
					continue
				}
				merged, rule := mergeWords(acc, words[j], o.window)
				if rule == RuleNone {
					continue
				}
				logger.Debug("merging passages", "document", document, "into", head.ID, "candidate", passages[j].ID, "rule", rule)
				acc = merged
				consumed[j] = true
				members = append(members, passages[j])
				lossy = lossy || rule == RuleWindow
			}

			if len(members) == 1 {
				result.Passages = append(result.Passages, head)
				continue
			}

			survivor := mergedPassage(document, strings.Join(acc, " "), members)
			// A previously merged passage that absorbed only contained text
			// keeps its identity.
			if existing := slices.IndexFunc(members, func(m *core.Passage) bool { return m.ID == survivor.ID }); existing >= 0 {
				survivor = members[existing]
			} else {
				result.Merged = append(result.Merged, survivor)
			}
			result.Passages = append(result.Passages, survivor)
			for _, member := range members {
				if member.ID == survivor.ID {
					continue
				}
				result.Rewrite[member.ID] = survivor.ID
				result.Tombstoned = append(result.Tombstoned, member.ID)
			}
			if lossy {
				result.Lossy = append(result.Lossy, survivor.ID)
				logger.Warn("merged passage repeats an overlapping span; window fallback does not remove it",
					"document", document, "passage", survivor.ID, "members", len(members))
			}
		}
	}

	logger.Info("dedupe finished",
		"documents", len(groups),
		"survivors", len(result.Passages),
		"merged", len(result.Merged),
		"consumed", len(result.Tombstoned),
		"lossy", len(result.Lossy))
	return result, nil
}

// mergedPassage builds the survivor of a chain. It takes the first member's
// position; metadata of earlier members wins on conflicts.
func mergedPassage(document, text string, members []*core.Passage) *core.Passage {
	metadata := make(map[string]string)
	for i := len(members) - 1; i >= 0; i-- {
		maps.Copy(metadata, members[i].Metadata)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	metadata[MetadataMergedFrom] = strings.Join(ids, ",")

	return &core.Passage{
		ID:             core.MergedPassageID(document, text),
		Text:           text,
		SourceDocument: document,
		Position:       members[0].Position,
		Metadata:       metadata,
	}
}

// ApplyRewrite rewrites a term index: consumed ids become their survivor, each
// term's ids are deduplicated keeping first-seen order, and terms left with
// no ids are dropped. The input is not modified.
func ApplyRewrite(terms map[string][]string, rewrite map[string]string) map[string][]string {
	rewritten := make(map[string][]string, len(terms))
	for term, ids := range terms {
		seen := make(map[string]bool, len(ids))
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if survivor, ok := rewrite[id]; ok {
				id = survivor
			}
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			kept = append(kept, id)
		}
		if len(kept) > 0 {
			rewritten[term] = kept
		}
	}
	return rewritten
}

// Persist stores merged passages and tombstones the ids they replaced, so
// stale ids resolve to their survivor.
func Persist(ctx context.Context, repository storage.PassageRepository, result *Result) error {
	if repository == nil {
		return ErrRepositoryRequired
	}
	if result == nil || len(result.Rewrite) == 0 {
		return nil
	}

	if len(result.Merged) > 0 {
		if _, err := repository.AddPassages(ctx, result.Merged...); err != nil {
			return fmt.Errorf("storing merged passages: %w", err)
		}
	}
	if err := repository.TombstonePassages(ctx, result.Rewrite); err != nil {
		return fmt.Errorf("tombstoning merged passages: %w", err)
	}
	return nil
}

// GroupByDocument loads every stored passage grouped by source document.
func GroupByDocument(ctx context.Context, repository storage.PassageRepository) (map[string][]*core.Passage, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}

	documents, err := repository.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*core.Passage, len(documents))
	for _, document := range documents {
		passages, err := repository.GetPassagesByDocument(ctx, document)
		if err != nil {
			return nil, fmt.Errorf("loading document %s: %w", document, err)
		}
		groups[document] = passages
	}
	return groups, nil
}
