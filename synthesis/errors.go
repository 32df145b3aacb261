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


package synthesis

import (
	"errors"
	"fmt"
)

var (
	// ErrCallerRequired is returned when a generation caller is not provided.
	ErrCallerRequired = errors.New("generation caller required")

	// ErrPromptBuilderRequired is returned when Run is given no prompt builder.
	ErrPromptBuilderRequired = errors.New("prompt builder required")

	// ErrInvalidConfig is returned when the batch configuration is inconsistent.
	ErrInvalidConfig = errors.New("invalid synthesis config")

	errRunTimeout = errors.New("synthesis run exceeded its wall-clock ceiling")
)

// SliceError reports the slice whose generation call failed. Index is 1-based.
// Err is the generation client's terminal error and carries the failure kind
// and attempt count.
type SliceError struct {
	Index int
	Total int
	Err   error
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("slice %d of %d failed: %v", e.Index, e.Total, e.Err)
}

func (e *SliceError) Unwrap() error {
	return e.Err
}
