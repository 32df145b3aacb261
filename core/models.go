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


package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived 64-bit hash used to build stable identifiers.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as lowercase hex.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

// MergedPassageID derives the identifier of a passage produced by merging
// overlapping passages of the same source document.
func MergedPassageID(sourceDocument, text string) string {
	return "m-" + IDFromContent(sourceDocument+"\x00"+text).String()
}

// PassageIDFor derives the identifier of an ingested passage from its
// document and ordinal position.
func PassageIDFor(sourceDocument string, position int) string {
	return "p-" + IDFromContent(sourceDocument+"\x00"+strconv.Itoa(position)).String()
}

// Passage is the unit of retrievable text.
type Passage struct {
	ID             string
	Text           string
	SourceDocument string
	Position       int               // Ordinal position within SourceDocument
	Metadata       map[string]string // Never nil once read from storage
	Vector         []float32         // Embedding vector (populated by processors)
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// ScoredPassage pairs a passage with its relevance score for a query.
type ScoredPassage struct {
	Passage *Passage
	Score   float32
}

// Annotation is editorial commentary linked to one or more passages.
type Annotation struct {
	ID   string
	Text string
}

// RetrievalResult is the deduplicated, ordered outcome of one query.
type RetrievalResult struct {
	Query           string
	ExpandedTerms   []string
	Passages        []*ScoredPassage
	Annotations     []Annotation
	AnnotationCount int
}

// IDs returns the passage ids in result order.
func (r *RetrievalResult) IDs() []string {
	ids := make([]string, 0, len(r.Passages))
	for _, p := range r.Passages {
		ids = append(ids, p.Passage.ID)
	}
	return ids
}

// Checkpoint records how far a long-running processor has progressed.
type Checkpoint struct {
	ProcessorType string
	LastID        string
	Processed     int
	UpdatedAt     time.Time
}
