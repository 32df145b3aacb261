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


// Package generation wraps single calls to a text-generation service with a
// failure-aware retry state machine.
//
// A Client runs every prompt through the same states:
//
//	Idle -> Calling -> (Terminal | Backoff) -> Retrying -> Calling ...
//
// Rate limiting and quota exhaustion are retried up to their own bounds.
// Quota exhaustion first asks the injected ai.CredentialProvider for a fresh
// credential. Waits honor the service's retry hint when it gives one and use
// exponential backoff otherwise. Every call runs under a wall-clock ceiling,
// and a wait that would overrun it ends the call with a timeout instead of
// sleeping. Truncated output is a success carrying the partial text.
//
// Do and Call block the calling goroutine; Go runs the same machine on its own
// goroutine and delivers the result on a channel.
package generation
