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


package termindex

import (
	"cmp"
	"slices"
	"sync"
)

// Builder accumulates a term index while passages are ingested.
// It is safe for concurrent use.
type Builder struct {
	mu           sync.Mutex
	terms        map[string][]string
	termSeen     map[string]map[string]bool
	passageTerms map[string][]string
	associations map[string][]string
	nameChanges  map[string][]string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		terms:        make(map[string][]string),
		termSeen:     make(map[string]map[string]bool),
		passageTerms: make(map[string][]string),
		associations: make(map[string][]string),
		nameChanges:  make(map[string][]string),
	}
}

// NewBuilderFrom creates a builder seeded with an existing index file so new
// documents extend it.
func NewBuilderFrom(file *File) *Builder {
	b := NewBuilder()
	if file == nil {
		return b
	}
	for term, ids := range file.TermToChunks {
		for _, id := range ids {
			b.addTerm(normalizeTerm(term), id)
		}
	}
	for term, related := range file.EntityAssociations {
		b.associations[normalizeTerm(term)] = appendUnique(nil, normalizeAll(related)...)
	}
	for term, aliases := range file.NameChanges {
		b.nameChanges[normalizeTerm(term)] = appendUnique(nil, normalizeAll(aliases)...)
	}
	return b
}

func normalizeAll(terms []string) []string {
	normalized := make([]string, len(terms))
	for i, term := range terms {
		normalized[i] = normalizeTerm(term)
	}
	return normalized
}

// Add indexes the filtered words and two-word phrases of text under passageID.
func (b *Builder) Add(passageID, text string) {
	unigrams := Tokenize(text)
	phrases := ngrams(words(text), 2)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, term := range unigrams {
		b.addTerm(term, passageID)
	}
	for _, term := range phrases {
		b.addTerm(term, passageID)
	}
	b.passageTerms[passageID] = appendUnique(b.passageTerms[passageID], unigrams...)
}

// AddAlias records that term and aliases denote the same entity.
func (b *Builder) AddAlias(term string, aliases ...string) {
	key := normalizeTerm(term)
	if key == "" {
		return
	}
	normalized := normalizeAll(aliases)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nameChanges[key] = appendUnique(b.nameChanges[key], normalized...)
}

// ComputeAssociations ranks, for every single-word term, the other terms that
// share the most passages with it and keeps the top n. Only passages added
// to this builder are counted; terms they do not mention keep their
// existing associations.
func (b *Builder) ComputeAssociations(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[string]map[string]int)
	for _, terms := range b.passageTerms {
		for _, t := range terms {
			row := counts[t]
			if row == nil {
				row = make(map[string]int)
				counts[t] = row
			}
			for _, other := range terms {
				if other != t {
					row[other]++
				}
			}
		}
	}

	type scored struct {
		term  string
		count int
	}
	for term, row := range counts {
		ranked := make([]scored, 0, len(row))
		for other, count := range row {
			ranked = append(ranked, scored{other, count})
		}
		slices.SortFunc(ranked, func(x, y scored) int {
			if c := cmp.Compare(y.count, x.count); c != 0 {
				return c
			}
			return cmp.Compare(x.term, y.term)
		})
		if n > 0 && len(ranked) > n {
			ranked = ranked[:n]
		}
		related := make([]string, len(ranked))
		for i, r := range ranked {
			related[i] = r.term
		}
		if len(related) > 0 {
			b.associations[term] = related
		}
	}
}

// Build returns the accumulated index file.
func (b *Builder) Build() *File {
	b.mu.Lock()
	defer b.mu.Unlock()

	file := &File{
		TermToChunks:       make(map[string][]string, len(b.terms)),
		EntityAssociations: make(map[string][]string, len(b.associations)),
		NameChanges:        make(map[string][]string, len(b.nameChanges)),
	}
	for term, ids := range b.terms {
		file.TermToChunks[term] = slices.Clone(ids)
	}
	for term, related := range b.associations {
		file.EntityAssociations[term] = slices.Clone(related)
	}
	for term, aliases := range b.nameChanges {
		file.NameChanges[term] = slices.Clone(aliases)
	}
	return file
}

// addTerm must be called with b.mu held or before b is shared.
func (b *Builder) addTerm(term, passageID string) {
	if term == "" || passageID == "" {
		return
	}
	seen := b.termSeen[term]
	if seen == nil {
		seen = make(map[string]bool)
		b.termSeen[term] = seen
	}
	if seen[passageID] {
		return
	}
	seen[passageID] = true
	b.terms[term] = append(b.terms[term], passageID)
}
