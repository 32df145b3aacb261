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
	"fmt"
	"time"
)

// Policy bounds the retry state machine.
type Policy struct {
	// MaxQuotaAttempts caps calls ending in quota exhaustion per credential.
	MaxQuotaAttempts int `yaml:"max_quota_attempts"`

	// MaxRateLimitAttempts caps calls ending in rate limiting.
	MaxRateLimitAttempts int `yaml:"max_rate_limit_attempts"`

	// CallTimeout is the wall-clock ceiling for one call including retries.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MaxWait caps any single wait, hinted or not.
	MaxWait time.Duration `yaml:"max_wait"`

	// RetryHintBuffer is added to a service-provided retry delay.
	RetryHintBuffer time.Duration `yaml:"retry_hint_buffer"`

	// InitialBackoff and MaxBackoff bound exponential backoff when the
	// service gives no hint.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// DefaultPolicy returns the standard retry bounds.
func DefaultPolicy() Policy {
	return Policy{
		MaxQuotaAttempts:     3,
		MaxRateLimitAttempts: 20,
		CallTimeout:          5 * time.Minute,
		MaxWait:              60 * time.Second,
		RetryHintBuffer:      1 * time.Second,
		InitialBackoff:       1 * time.Second,
		MaxBackoff:           60 * time.Second,
	}
}

// Validate checks that every bound is positive.
func (p Policy) Validate() error {
	switch {
	case p.MaxQuotaAttempts <= 0:
		return fmt.Errorf("%w: max quota attempts must be positive", ErrInvalidPolicy)
	case p.MaxRateLimitAttempts <= 0:
		return fmt.Errorf("%w: max rate limit attempts must be positive", ErrInvalidPolicy)
	case p.CallTimeout <= 0:
		return fmt.Errorf("%w: call timeout must be positive", ErrInvalidPolicy)
	case p.MaxWait <= 0:
		return fmt.Errorf("%w: max wait must be positive", ErrInvalidPolicy)
	case p.RetryHintBuffer < 0:
		return fmt.Errorf("%w: retry hint buffer must not be negative", ErrInvalidPolicy)
	case p.InitialBackoff <= 0 || p.MaxBackoff < p.InitialBackoff:
		return fmt.Errorf("%w: backoff must satisfy 0 < initial <= max", ErrInvalidPolicy)
	}
	return nil
}
