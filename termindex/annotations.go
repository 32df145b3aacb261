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

	"github.com/poiesic/archivist/core"
)

// Annotations links passages to editorial annotations.
// A nil *Annotations resolves nothing.
type Annotations struct {
	texts map[string]string
	links map[string][]string
}

// NewAnnotations creates annotation tables from annotation texts and passage links.
func NewAnnotations(texts map[string]string, links map[string][]string) *Annotations {
	a := &Annotations{
		texts: make(map[string]string, len(texts)),
		links: make(map[string][]string, len(links)),
	}
	for id, text := range texts {
		a.texts[id] = text
	}
	for passageID, annotationIDs := range links {
		a.links[passageID] = appendUnique(nil, annotationIDs...)
	}
	return a
}

// LoadAnnotations reads the annotation text file and the passage link file.
// Either path may be empty or missing; that yields no annotations.
func LoadAnnotations(textsPath, linksPath string) (*Annotations, error) {
	texts := make(map[string]string)
	if err := readOptionalJSON(textsPath, &texts); err != nil {
		return nil, err
	}
	links := make(map[string][]string)
	if err := readOptionalJSON(linksPath, &links); err != nil {
		return nil, err
	}
	return NewAnnotations(texts, links), nil
}

// Resolve returns the annotations linked to any of passageIDs, in first-seen
// order. Linked ids without text are skipped.
func (a *Annotations) Resolve(passageIDs []string) []core.Annotation {
	if a == nil {
		return nil
	}

	seen := make(map[string]bool)
	var resolved []core.Annotation
	for _, passageID := range passageIDs {
		for _, annotationID := range a.links[passageID] {
			if seen[annotationID] {
				continue
			}
			seen[annotationID] = true
			if text, ok := a.texts[annotationID]; ok {
				resolved = append(resolved, core.Annotation{ID: annotationID, Text: text})
			}
		}
	}
	return resolved
}

// Rewrite returns a copy whose links follow a dedupe rewrite map: links of
// consumed passages move to the surviving passage.
func (a *Annotations) Rewrite(rewrite map[string]string) *Annotations {
	if a == nil {
		return nil
	}
	links := make(map[string][]string, len(a.links))
	for passageID, annotationIDs := range a.links {
		target := passageID
		if survivor, ok := rewrite[passageID]; ok {
			target = survivor
		}
		links[target] = appendUnique(links[target], annotationIDs...)
	}
	return &Annotations{texts: a.texts, links: links}
}

// Links returns a copy of the passage link table for writing back to disk.
func (a *Annotations) Links() map[string][]string {
	links := make(map[string][]string)
	if a == nil {
		return links
	}
	for passageID, annotationIDs := range a.links {
		links[passageID] = append([]string(nil), annotationIDs...)
	}
	return links
}

// WriteAnnotationLinks writes a passage link table to path, replacing any
// existing file atomically.
func WriteAnnotationLinks(path string, links map[string][]string) error {
	return writeJSON(path, links)
}

func readOptionalJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedAnnotations, path, err)
	}
	return nil
}
