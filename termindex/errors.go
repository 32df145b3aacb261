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

import "errors"

var (
	// ErrIndexMissing is returned when the term index file does not exist.
	// Retrieval cannot start without it.
	ErrIndexMissing = errors.New("term index missing")

	// ErrMalformedIndex is returned when the term index file cannot be decoded.
	ErrMalformedIndex = errors.New("malformed term index")

	// ErrMalformedAnnotations is returned when an annotation file exists but cannot be decoded.
	ErrMalformedAnnotations = errors.New("malformed annotation file")
)
