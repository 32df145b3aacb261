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

import "fmt"

// ValidatePassage validates a Passage according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be empty
//   - SourceDocument must not be empty
//   - Position must not be negative
//
// NOT validated (populated by processors):
//   - Vector (can be empty until the embedding processor runs)
//   - Metadata (nil is treated as empty)
func ValidatePassage(passage *Passage) error {
	if passage == nil {
		return fmt.Errorf("%w: passage is nil", ErrInvalidPassage)
	}

	if passage.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptyPassageID)
	}

	if passage.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptyText)
	}

	if passage.SourceDocument == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptySourceDocument)
	}

	if passage.Position < 0 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidPassage, ErrInvalidPosition, passage.Position)
	}

	return nil
}
