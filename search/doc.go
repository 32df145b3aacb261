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


// Package search provides the hybrid retrieval engine.
//
// The Searcher combines:
//   - Keyword lookup in the term index, expanded through alias groups and
//     associations, capped per term
//   - Semantic search using vector embeddings of the raw query
//   - Verbatim keyword matching with stop-word filtering
//
// Results are merged into one deduplicated set, fetched in a single batch,
// scored, and returned together with any linked annotations.
package search
