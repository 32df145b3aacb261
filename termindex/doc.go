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


// Package termindex holds the offline-built keyword tables used for query
// expansion: the term index (term to passage ids), alias groups for entities
// that changed names over time, co-occurrence associations, and annotation
// links.
//
// Tables are built once (see Builder), written as JSON, and loaded read-only
// at query time. A loaded Index is never mutated and may be shared across
// goroutines without locking.
package termindex
