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


// Package dedupe merges overlapping passages of the same document.
//
// Chunkers cut documents into overlapping windows, so neighbouring passages
// often repeat each other's words. Dedupe walks each document's passages in
// order and folds overlapping ones into a single merged passage with a new
// content-derived id. The returned rewrite map points every consumed id at
// its survivor; ApplyRewrite applies it to a term index and Persist applies
// it to the passage store.
package dedupe
