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


package ai

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies why a generation call did not produce normal output.
type FailureKind int

const (
	// KindOther is any failure that is not worth retrying.
	KindOther FailureKind = iota
	// KindRateLimited is transient throttling.
	KindRateLimited
	// KindQuotaExhausted is a hard per-period ceiling.
	KindQuotaExhausted
	// KindContentBlocked means the service refused for policy reasons.
	KindContentBlocked
	// KindTruncated means output stopped at a length cap. Not an error for callers.
	KindTruncated
	// KindTimeout means a wall-clock ceiling was reached.
	KindTimeout
	// KindCancelled means the caller cancelled.
	KindCancelled
)

// Sentinel errors, one per failure kind. Failure and the generation client's
// terminal error both match these with errors.Is.
var (
	ErrGenerationFailed = errors.New("generation failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrQuotaExhausted   = errors.New("quota exhausted")
	ErrContentBlocked   = errors.New("content blocked")
	ErrTruncated        = errors.New("output truncated")
	ErrTimeout          = errors.New("timed out")
	ErrCancelled        = errors.New("cancelled")

	// ErrCredentialsExhausted is returned by a CredentialProvider with no usable credential left.
	ErrCredentialsExhausted = errors.New("no usable credentials left")
)

// String returns the kind's name.
func (k FailureKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindContentBlocked:
		return "content_blocked"
	case KindTruncated:
		return "truncated"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Sentinel returns the sentinel error for the kind.
func (k FailureKind) Sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindQuotaExhausted:
		return ErrQuotaExhausted
	case KindContentBlocked:
		return ErrContentBlocked
	case KindTruncated:
		return ErrTruncated
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrGenerationFailed
	}
}

// Retryable reports whether the kind may succeed on a later attempt.
func (k FailureKind) Retryable() bool {
	return k == KindRateLimited || k == KindQuotaExhausted
}

// Failure is the structured result of a failed generation call.
type Failure struct {
	Kind FailureKind

	// RetryAfter is the delay suggested by the service, zero when it gave none.
	RetryAfter time.Duration

	// Partial holds whatever text was produced before truncation.
	Partial string

	// Err is the underlying service error, if any.
	Err error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches the sentinel of the failure's kind.
func (f *Failure) Is(target error) bool {
	return target == f.Kind.Sentinel()
}

// AsFailure extracts a *Failure from err. Errors that carry no failure are
// reported as KindOther.
func AsFailure(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return &Failure{Kind: KindOther, Err: err}
}
