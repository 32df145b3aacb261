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


package dedupe

import "errors"

var (
	// ErrInvalidWindow is returned for an overlap window smaller than one word.
	ErrInvalidWindow = errors.New("overlap window must be at least one word")

	// ErrRepositoryRequired is returned when Persist is given no repository.
	ErrRepositoryRequired = errors.New("passage repository required")
)
