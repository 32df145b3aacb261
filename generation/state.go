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

// State is a position in the retry state machine.
type State int

const (
	StateIdle State = iota
	StateCalling
	StateBackoff
	StateRetrying
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateBackoff:
		return "backoff"
	case StateRetrying:
		return "retrying"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Transition is reported to a transition hook on every state change.
type Transition struct {
	From    State
	To      State
	Attempt int
}
