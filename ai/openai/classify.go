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


package openai

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/archivist/ai"
	"github.com/tmc/langchaingo/llms"
)

// Markers looked for by classifyMessage. All lowercase.
var (
	safetyMarkers = []string{
		"content_filter", "content filter", "content policy", "content management policy",
		"safety", "prohibited_content", "blocklist", "blocked",
	}
	// A per-minute window is always a rate limit, even when the message
	// also mentions quota or billing.
	perMinuteMarkers = []string{
		"per min", "perminute", "per_minute", "(rpm)", "(tpm)",
	}
	// Quota needs a period longer than a minute or a hard account limit.
	quotaMarkers = []string{
		"insufficient_quota", "per day", "perday", "per_day", "daily",
		"billing hard limit", "billing_hard_limit",
	}
	rateLimitMarkers = []string{
		"rate limit", "rate_limit", "ratelimit", "too many requests",
		"resource_exhausted", "throttl", "quota exceeded", "quota",
	}
	timeoutMarkers = []string{
		"deadline exceeded", "deadline_exceeded", "timed out", "timeout",
	}

	statusTooManyRequests = regexp.MustCompile(`\b429\b`)

	retryDelayPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)(s)"`),
		regexp.MustCompile(`(?i)(?:retry|try again)\s+(?:in|after)\s+(\d+(?:\.\d+)?)\s*(ms|milliseconds?|s|secs?|seconds?)\b`),
		regexp.MustCompile(`(?i)retry-after:\s*(\d+(?:\.\d+)?)()`),
	}
)

// classifyError turns a service error into a *ai.Failure. Structured signals
// (context errors, langchaingo error codes) win; the message is only read
// when they are absent or ambiguous.
func classifyError(err error) *ai.Failure {
	if err == nil {
		return nil
	}

	var failure *ai.Failure
	if errors.As(err, &failure) {
		return failure
	}

	msg := err.Error()
	kind := ai.KindOther

	var llmErr *llms.Error
	switch {
	case errors.Is(err, context.Canceled):
		kind = ai.KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = ai.KindTimeout
	case errors.As(err, &llmErr):
		kind = kindFromCode(llmErr.Code, msg)
	default:
		kind = classifyMessage(msg)
	}

	delay, _ := parseRetryDelay(msg)
	return &ai.Failure{Kind: kind, RetryAfter: delay, Err: err}
}

// kindFromCode maps a langchaingo error code. A rate-limit code whose message
// names a daily ceiling is quota exhaustion.
func kindFromCode(code llms.ErrorCode, msg string) ai.FailureKind {
	switch code {
	case llms.ErrCodeRateLimit:
		if classifyMessage(msg) == ai.KindQuotaExhausted {
			return ai.KindQuotaExhausted
		}
		return ai.KindRateLimited
	case llms.ErrCodeQuotaExceeded:
		return ai.KindQuotaExhausted
	case llms.ErrCodeContentFilter:
		return ai.KindContentBlocked
	case llms.ErrCodeTimeout:
		return ai.KindTimeout
	case llms.ErrCodeCanceled:
		return ai.KindCancelled
	default:
		return classifyMessage(msg)
	}
}

// classifyMessage is the only place that interprets free-form error text.
func classifyMessage(msg string) ai.FailureKind {
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, safetyMarkers):
		return ai.KindContentBlocked
	case containsAny(lower, perMinuteMarkers):
		return ai.KindRateLimited
	case containsAny(lower, quotaMarkers):
		return ai.KindQuotaExhausted
	case containsAny(lower, rateLimitMarkers), statusTooManyRequests.MatchString(lower):
		return ai.KindRateLimited
	case containsAny(lower, timeoutMarkers):
		return ai.KindTimeout
	default:
		return ai.KindOther
	}
}

// parseRetryDelay extracts a retry hint such as `"retryDelay": "12.5s"` or
// "please try again in 350ms". Returns false when no hint is present.
func parseRetryDelay(msg string) (time.Duration, bool) {
	for _, pattern := range retryDelayPatterns {
		match := pattern.FindStringSubmatch(msg)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil || value < 0 {
			continue
		}
		unit := time.Second
		if strings.HasPrefix(strings.ToLower(match[2]), "m") {
			unit = time.Millisecond
		}
		return time.Duration(value * float64(unit)), true
	}
	return 0, false
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
