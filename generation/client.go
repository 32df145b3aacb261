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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/archivist/ai"
)

// SleepFunc waits for d or until ctx is done, returning ctx's error in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Outcome is the result of a successful call.
type Outcome struct {
	Text string

	// Truncated is set when the service stopped at a length cap. Text holds
	// whatever was produced and may be empty.
	Truncated bool

	// Attempts is the number of service calls made.
	Attempts int
}

// Result is delivered by Go.
type Result struct {
	Outcome *Outcome
	Err     error
}

// Client calls a generation service through the retry state machine.
// It is safe for concurrent use.
type Client struct {
	mu          sync.Mutex
	generator   ai.Generator
	credential  ai.Credential
	credentials ai.CredentialProvider
	factory     ai.GeneratorFactory

	policy       Policy
	sleep        SleepFunc
	onTransition func(Transition)
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithPolicy replaces the default retry policy.
func WithPolicy(policy Policy) Option {
	return func(c *Client) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		c.policy = policy
		return nil
	}
}

// WithCredentials enables credential rotation on quota exhaustion. current is
// the credential the initial generator was built with; factory builds
// generators for rotated credentials.
func WithCredentials(provider ai.CredentialProvider, current ai.Credential, factory ai.GeneratorFactory) Option {
	return func(c *Client) error {
		if provider == nil || factory == nil {
			return ErrCredentialsRequired
		}
		c.credentials = provider
		c.credential = current
		c.factory = factory
		return nil
	}
}

// WithSleepFunc replaces the wait used between attempts.
func WithSleepFunc(sleep SleepFunc) Option {
	return func(c *Client) error {
		if sleep == nil {
			sleep = Sleep
		}
		c.sleep = sleep
		return nil
	}
}

// WithTransitionHook observes every state change.
func WithTransitionHook(hook func(Transition)) Option {
	return func(c *Client) error {
		c.onTransition = hook
		return nil
	}
}

// NewClient creates a client around generator.
func NewClient(generator ai.Generator, opts ...Option) (*Client, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	c := &Client{
		generator: generator,
		policy:    DefaultPolicy(),
		sleep:     Sleep,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "generation-client")

	return c, nil
}

// Policy returns the client's retry policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Call returns the generated text. Truncated output is returned without error.
func (c *Client) Call(ctx context.Context, prompt string) (string, error) {
	outcome, err := c.Do(ctx, prompt)
	if err != nil {
		return "", err
	}
	return outcome.Text, nil
}

// Do runs prompt through the state machine. A terminal failure is a *Error.
func (c *Client) Do(ctx context.Context, prompt string) (*Outcome, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.policy.CallTimeout, errCallTimeout)
	defer cancel()

	r := &run{
		client:  c,
		ctx:     ctx,
		prompt:  prompt,
		state:   StateIdle,
		backoff: c.newBackOff(),
	}
	return r.execute()
}

// Go runs Do on a new goroutine. The channel receives exactly one Result and
// is then closed.
func (c *Client) Go(ctx context.Context, prompt string) <-chan Result {
	results := make(chan Result, 1)
	go func() {
		defer close(results)
		outcome, err := c.Do(ctx, prompt)
		results <- Result{Outcome: outcome, Err: err}
	}()
	return results
}

func (c *Client) currentGenerator() ai.Generator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generator
}

// rotate swaps in a generator for the next credential. Returns false when
// rotation is not configured or nothing usable is left.
func (c *Client) rotate(ctx context.Context) bool {
	if c.credentials == nil || c.factory == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	exhausted := c.credential
	next, err := c.credentials.Rotate(ctx, exhausted)
	if err != nil {
		c.logger.Warn("credential rotation unavailable", "exhausted", exhausted.Name, "err", err)
		return false
	}
	generator, err := c.factory(next)
	if err != nil {
		c.logger.Error("failed to build generator for rotated credential", "credential", next.Name, "err", err)
		return false
	}

	c.logger.Info("rotated generation credential after quota exhaustion", "from", exhausted.Name, "to", next.Name)
	c.credential = next
	c.generator = generator
	return true
}

func (c *Client) newBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.policy.InitialBackoff),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(c.policy.MaxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
}

// run is the state of one Do call.
type run struct {
	client *Client
	ctx    context.Context
	prompt string

	state         State
	attempts      int
	quotaAttempts int
	rateAttempts  int
	backoff       backoff.BackOff
	wait          time.Duration

	outcome *Outcome
	err     *Error
}

func (r *run) execute() (*Outcome, error) {
	for {
		switch r.state {
		case StateIdle:
			r.transition(StateCalling)
		case StateCalling:
			r.call()
		case StateBackoff:
			r.backOff()
		case StateRetrying:
			r.transition(StateCalling)
		case StateTerminal:
			if r.err != nil {
				return nil, r.err
			}
			return r.outcome, nil
		}
	}
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	if hook := r.client.onTransition; hook != nil {
		hook(Transition{From: from, To: to, Attempt: r.attempts})
	}
}

func (r *run) succeed(outcome *Outcome) {
	r.outcome = outcome
	r.transition(StateTerminal)
}

func (r *run) fail(failure *ai.Failure) {
	r.err = &Error{Kind: failure.Kind, Attempts: r.attempts, Err: failure}
	r.client.logger.Warn("generation failed", "kind", failure.Kind, "attempts", r.attempts, "err", failure)
	r.transition(StateTerminal)
}

// call makes one attempt and picks the next state from its outcome.
func (r *run) call() {
	if r.ctx.Err() != nil {
		r.fail(r.contextFailure())
		return
	}

	r.attempts++
	text, err := r.client.currentGenerator().Generate(r.ctx, r.prompt)
	if err == nil {
		r.succeed(&Outcome{Text: text, Attempts: r.attempts})
		return
	}

	// The ceiling or the caller ended the call; whatever the service said is moot.
	if r.ctx.Err() != nil {
		r.fail(r.contextFailure())
		return
	}

	failure := ai.AsFailure(err)
	policy := r.client.policy
	logger := r.client.logger.With("attempt", r.attempts, "kind", failure.Kind)

	switch failure.Kind {
	case ai.KindTruncated:
		logger.Warn("generation truncated at length limit, returning partial output", "partialLength", len(failure.Partial))
		r.succeed(&Outcome{Text: failure.Partial, Truncated: true, Attempts: r.attempts})

	case ai.KindRateLimited:
		r.rateAttempts++
		if r.rateAttempts >= policy.MaxRateLimitAttempts {
			r.fail(failure)
			return
		}
		r.scheduleWait(failure)

	case ai.KindQuotaExhausted:
		r.quotaAttempts++
		if r.client.rotate(r.ctx) {
			r.quotaAttempts = 0
			r.backoff.Reset()
			r.transition(StateRetrying)
			return
		}
		if r.quotaAttempts >= policy.MaxQuotaAttempts {
			r.fail(failure)
			return
		}
		r.scheduleWait(failure)

	default:
		r.fail(failure)
	}
}

// scheduleWait picks the wait before the next attempt. A service hint wins
// over local backoff.
func (r *run) scheduleWait(failure *ai.Failure) {
	policy := r.client.policy

	var wait time.Duration
	if failure.RetryAfter > 0 {
		wait = failure.RetryAfter + policy.RetryHintBuffer
	} else {
		wait = r.backoff.NextBackOff()
		if wait == backoff.Stop {
			wait = policy.MaxBackoff
		}
	}
	r.wait = min(wait, policy.MaxWait)

	r.client.logger.Info("retrying generation after backoff",
		"kind", failure.Kind, "attempt", r.attempts, "wait", r.wait, "hinted", failure.RetryAfter > 0)
	r.transition(StateBackoff)
}

// backOff waits unless the wait would overrun the call's ceiling.
func (r *run) backOff() {
	if deadline, ok := r.ctx.Deadline(); ok && time.Until(deadline) < r.wait {
		r.fail(&ai.Failure{
			Kind: ai.KindTimeout,
			Err:  fmt.Errorf("waiting %s would exceed the call deadline: %w", r.wait, errCallTimeout),
		})
		return
	}

	if err := r.client.sleep(r.ctx, r.wait); err != nil {
		r.fail(r.contextFailure())
		return
	}
	r.transition(StateRetrying)
}

// contextFailure reports why the call's context ended.
func (r *run) contextFailure() *ai.Failure {
	cause := context.Cause(r.ctx)
	if cause == nil {
		cause = context.Canceled
	}
	if errors.Is(cause, errCallTimeout) || errors.Is(r.ctx.Err(), context.DeadlineExceeded) {
		return &ai.Failure{Kind: ai.KindTimeout, Err: cause}
	}
	return &ai.Failure{Kind: ai.KindCancelled, Err: cause}
}

// Sleep waits for d or until ctx is done. It is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
