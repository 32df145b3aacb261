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


// Package synthesis turns a retrieved passage set into one narrative.
//
// Small sets go to the generation service in a single call. Larger sets are
// cut into consecutive slices sized by a tier table, sent strictly one after
// another with a pause in between, and the partial narratives are merged by
// one more call. If the merge call fails the partials are concatenated in
// slice order, so no slice's contribution is ever dropped.
package synthesis
