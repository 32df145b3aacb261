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


// Package storage provides the storage abstraction layer for archivist.
//
// This package defines repository interfaces that decouple the passage store
// from retrieval, ingestion and deduplication. Retrieval only ever needs two
// operations from it: similarity search over passage vectors and a batched
// lookup by id list.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return concrete types that satisfy
// these interfaces; consumers depend on the interfaces only:
//
//	repo, err := badger.NewPassageRepository(backend)  // *badger.PassageRepository
//	var store storage.PassageRepository = repo
//
// # Architecture
//
//   - Repository: similarity search and transactions shared by all repositories
//   - PassageRepository: passage CRUD, document order, tombstones
//   - CheckpointRepository: resumable processor progress
//
// # Tombstones
//
// Deduplication replaces passages wholesale. The originals are deleted and a
// tombstone records the surviving id, so GetPassages resolves a stale id from
// an older term index to the merged passage instead of returning nothing.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	passages, checkpoints, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
