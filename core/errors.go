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

import "errors"

// Domain validation errors
var (
	// ErrInvalidPassage indicates a Passage failed validation.
	ErrInvalidPassage = errors.New("invalid passage")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyPassageID indicates the ID field is empty.
	ErrEmptyPassageID = errors.New("passage id cannot be empty")

	// ErrEmptySourceDocument indicates the SourceDocument field is empty.
	ErrEmptySourceDocument = errors.New("source document cannot be empty")

	// ErrInvalidPosition indicates a negative ordinal position.
	ErrInvalidPosition = errors.New("position cannot be negative")
)
