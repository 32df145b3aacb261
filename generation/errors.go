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


package generation

import (
	"errors"
	"fmt"

	"github.com/poiesic/archivist/ai"
)

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrCredentialsRequired is returned when credential rotation is enabled
	// without both a credential provider and a generator factory.
	ErrCredentialsRequired = errors.New("credential provider and generator factory are both required")

	// ErrInvalidPolicy is returned when a retry policy has non-positive bounds.
	ErrInvalidPolicy = errors.New("invalid retry policy")

	errCallTimeout = errors.New("generation call exceeded its wall-clock ceiling")
)

// rephraseHint is appended to content-blocked errors.
const rephraseHint = "rephrase the question or narrow the passages and try again"

// Error is the terminal failure of a generation call. It matches the ai
// sentinel of its Kind with errors.Is.
type Error struct {
	Kind     ai.FailureKind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("generation %s after %d attempt(s)", e.Kind, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if hint := e.Hint(); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

// Hint returns a user-facing suggestion, empty when there is none.
func (e *Error) Hint() string {
	if e.Kind == ai.KindContentBlocked {
		return rephraseHint
	}
	return ""
}
