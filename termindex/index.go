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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// DefaultAssociationLimit is how many associations are used per term.
const DefaultAssociationLimit = 5

// maxQueryNgram bounds the multi-word entity names recognized in queries.
const maxQueryNgram = 3

// File is the serialized form of the term index.
type File struct {
	TermToChunks       map[string][]string `json:"term_to_chunks"`
	EntityAssociations map[string][]string `json:"entity_associations"`
	NameChanges        map[string][]string `json:"name_changes"`
}

// Index is the read-only, query-time view of a term index File.
// All keys are lowercase. Alias groups are closed under transitivity, so
// every member of a group expands to every other member.
type Index struct {
	terms        map[string][]string
	associations map[string][]string
	aliases      map[string][]string
}

// New builds an Index from a decoded File. The File is not retained.
func New(file *File) *Index {
	idx := &Index{
		terms:        make(map[string][]string),
		associations: make(map[string][]string),
		aliases:      make(map[string][]string),
	}
	if file == nil {
		return idx
	}

	for term, ids := range file.TermToChunks {
		key := normalizeTerm(term)
		if key == "" {
			continue
		}
		idx.terms[key] = appendUnique(idx.terms[key], ids...)
	}

	for term, related := range file.EntityAssociations {
		key := normalizeTerm(term)
		if key == "" {
			continue
		}
		for _, r := range related {
			if r := normalizeTerm(r); r != "" && r != key {
				idx.associations[key] = appendUnique(idx.associations[key], r)
			}
		}
	}

	idx.aliases = closeAliasGroups(file.NameChanges)
	return idx
}

// Load reads a term index file from path.
// Returns ErrIndexMissing when the file does not exist.
func Load(path string) (*Index, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(file), nil
}

// ReadFile decodes a term index file without building an Index.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
		}
		return nil, err
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedIndex, path, err)
	}
	if file.TermToChunks == nil {
		file.TermToChunks = make(map[string][]string)
	}
	if file.EntityAssociations == nil {
		file.EntityAssociations = make(map[string][]string)
	}
	if file.NameChanges == nil {
		file.NameChanges = make(map[string][]string)
	}
	return &file, nil
}

// WriteFile writes file to path, replacing any existing file atomically.
func WriteFile(path string, file *File) error {
	return writeJSON(path, file)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Lookup returns the passage ids indexed under term.
func (idx *Index) Lookup(term string) []string {
	return slices.Clone(idx.terms[normalizeTerm(term)])
}

// Aliases returns the other members of term's alias group, sorted.
func (idx *Index) Aliases(term string) []string {
	return slices.Clone(idx.aliases[normalizeTerm(term)])
}

// Associations returns at most n related terms for term, best first.
// n <= 0 returns all of them.
func (idx *Index) Associations(term string, n int) []string {
	related := idx.associations[normalizeTerm(term)]
	if n > 0 && len(related) > n {
		related = related[:n]
	}
	return slices.Clone(related)
}

// Knows reports whether term is indexed or belongs to an alias group.
func (idx *Index) Knows(term string) bool {
	key := normalizeTerm(term)
	_, indexed := idx.terms[key]
	_, aliased := idx.aliases[key]
	return indexed || aliased
}

// TermCount returns the number of indexed terms.
func (idx *Index) TermCount() int {
	return len(idx.terms)
}

// QueryTerms tokenizes a query. Multi-word runs of up to three words are kept
// as extra terms when the index knows them, so entity names like
// "bank of england" survive tokenization.
func (idx *Index) QueryTerms(query string) []string {
	all := words(query)
	terms := Tokenize(query)
	for n := 2; n <= maxQueryNgram; n++ {
		for _, gram := range ngrams(all, n) {
			if idx.Knows(gram) {
				terms = append(terms, gram)
			}
		}
	}
	return appendUnique(nil, terms...)
}

// Expand returns terms plus every alias-group member of each term plus the
// first associationLimit associations of each group member. Order is first
// seen; there are no duplicates.
func (idx *Index) Expand(terms []string, associationLimit int) []string {
	expanded := make([]string, 0, len(terms))
	seen := make(map[string]bool)
	add := func(term string) {
		if term != "" && !seen[term] {
			seen[term] = true
			expanded = append(expanded, term)
		}
	}

	for _, term := range terms {
		key := normalizeTerm(term)
		if key == "" {
			continue
		}
		group := append([]string{key}, idx.aliases[key]...)
		for _, member := range group {
			add(member)
		}
		for _, member := range group {
			for _, related := range idx.Associations(member, associationLimit) {
				add(related)
			}
		}
	}
	return expanded
}

// File returns a serializable copy of the index. Alias groups are written
// in closed form.
func (idx *Index) File() *File {
	file := &File{
		TermToChunks:       make(map[string][]string, len(idx.terms)),
		EntityAssociations: make(map[string][]string, len(idx.associations)),
		NameChanges:        make(map[string][]string, len(idx.aliases)),
	}
	for term, ids := range idx.terms {
		file.TermToChunks[term] = slices.Clone(ids)
	}
	for term, related := range idx.associations {
		file.EntityAssociations[term] = slices.Clone(related)
	}
	for term, group := range idx.aliases {
		file.NameChanges[term] = slices.Clone(group)
	}
	return file
}

// closeAliasGroups computes connected components of the alias graph and maps
// every member to the sorted list of the other members.
func closeAliasGroups(nameChanges map[string][]string) map[string][]string {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for term, aliases := range nameChanges {
		key := normalizeTerm(term)
		if key == "" {
			continue
		}
		find(key)
		for _, alias := range aliases {
			if alias := normalizeTerm(alias); alias != "" {
				union(key, alias)
			}
		}
	}

	components := make(map[string][]string)
	for member := range parent {
		root := find(member)
		components[root] = append(components[root], member)
	}

	groups := make(map[string][]string)
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		slices.Sort(members)
		for _, member := range members {
			others := make([]string, 0, len(members)-1)
			for _, other := range members {
				if other != member {
					others = append(others, other)
				}
			}
			groups[member] = others
		}
	}
	return groups
}

// appendUnique appends values not already present in dst, keeping order.
func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]bool, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
