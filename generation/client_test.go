package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepRecorder records requested waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func rateLimited(hint time.Duration) mock.Reply {
	return mock.Reply{Err: &ai.Failure{Kind: ai.KindRateLimited, RetryAfter: hint, Err: errors.New("429")}}
}

func quotaExhausted() mock.Reply {
	return mock.Reply{Err: &ai.Failure{Kind: ai.KindQuotaExhausted, Err: errors.New("daily quota")}}
}

func repeat(reply mock.Reply, n int) []mock.Reply {
	replies := make([]mock.Reply, n)
	for i := range replies {
		replies[i] = reply
	}
	return replies
}

func newTestClient(t *testing.T, generator ai.Generator, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()
	recorder := &sleepRecorder{}
	client, err := NewClient(generator, append([]Option{WithSleepFunc(recorder.sleep)}, opts...)...)
	require.NoError(t, err)
	return client, recorder
}

func TestNewClient(t *testing.T) {
	t.Run("nil generator", func(t *testing.T) {
		_, err := NewClient(nil)
		assert.Equal(t, ErrGeneratorRequired, err)
	})

	t.Run("invalid policy", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.MaxRateLimitAttempts = 0
		_, err := NewClient(mock.NewMockGenerator(), WithPolicy(policy))
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})

	t.Run("credentials need a factory", func(t *testing.T) {
		_, err := NewClient(mock.NewMockGenerator(), WithCredentials(ai.NewKeyRing("a"), ai.Credential{}, nil))
		assert.ErrorIs(t, err, ErrCredentialsRequired)
	})

	t.Run("credentials need a provider", func(t *testing.T) {
		factory := func(ai.Credential) (ai.Generator, error) { return mock.NewMockGenerator(), nil }
		_, err := NewClient(mock.NewMockGenerator(), WithCredentials(nil, ai.Credential{}, factory))
		assert.ErrorIs(t, err, ErrCredentialsRequired)
	})

	t.Run("defaults", func(t *testing.T) {
		client, err := NewClient(mock.NewMockGenerator(), WithLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, DefaultPolicy(), client.Policy())
	})
}

func TestDo_SuccessFirstTry(t *testing.T) {
	var transitions []Transition
	generator := mock.NewMockGenerator(mock.Reply{Text: "narrative"})
	client, recorder := newTestClient(t, generator, WithTransitionHook(func(tr Transition) {
		transitions = append(transitions, tr)
	}))

	outcome, err := client.Do(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, &Outcome{Text: "narrative", Attempts: 1}, outcome)
	assert.Empty(t, recorder.recorded())
	assert.Equal(t, []Transition{
		{From: StateIdle, To: StateCalling, Attempt: 0},
		{From: StateCalling, To: StateTerminal, Attempt: 1},
	}, transitions)
}

func TestDo_RetryHintWinsOverBackoff(t *testing.T) {
	generator := mock.NewMockGenerator(rateLimited(12500*time.Millisecond), mock.Reply{Text: "ok"})
	client, recorder := newTestClient(t, generator)

	outcome, err := client.Do(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, []time.Duration{13500 * time.Millisecond}, recorder.recorded())
}

func TestDo_RetryHintCapped(t *testing.T) {
	generator := mock.NewMockGenerator(rateLimited(90*time.Second), mock.Reply{Text: "ok"})
	client, recorder := newTestClient(t, generator)

	_, err := client.Do(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{60 * time.Second}, recorder.recorded())
}

func TestDo_ExponentialBackoff(t *testing.T) {
	generator := mock.NewMockGenerator(repeat(rateLimited(0), 8)...)
	generator.Enqueue(mock.Reply{Text: "ok"})
	client, recorder := newTestClient(t, generator)

	outcome, err := client.Do(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 9, outcome.Attempts)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}, recorder.recorded())
}

func TestDo_TransitionsThroughBackoff(t *testing.T) {
	var states []State
	generator := mock.NewMockGenerator(rateLimited(time.Second), mock.Reply{Text: "ok"})
	client, _ := newTestClient(t, generator, WithTransitionHook(func(tr Transition) {
		states = append(states, tr.To)
	}))

	_, err := client.Do(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, []State{StateCalling, StateBackoff, StateRetrying, StateCalling, StateTerminal}, states)
}

func TestDo_RateLimitAttemptsBounded(t *testing.T) {
	generator := mock.NewMockGenerator(repeat(rateLimited(time.Second), 25)...)
	client, recorder := newTestClient(t, generator)

	_, err := client.Do(context.Background(), "prompt")
	require.Error(t, err)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, ai.KindRateLimited, genErr.Kind)
	assert.Equal(t, 20, genErr.Attempts)
	assert.ErrorIs(t, err, ai.ErrRateLimited)
	assert.Len(t, recorder.recorded(), 19)
	assert.Equal(t, 20, generator.CallCount())
}

func TestDo_QuotaAttemptsBounded(t *testing.T) {
	generator := mock.NewMockGenerator(repeat(quotaExhausted(), 5)...)
	client, recorder := newTestClient(t, generator)

	_, err := client.Do(context.Background(), "prompt")
	require.Error(t, err)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, ai.KindQuotaExhausted, genErr.Kind)
	assert.Equal(t, 3, genErr.Attempts)
	assert.ErrorIs(t, err, ai.ErrQuotaExhausted)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, recorder.recorded())
}

func TestDo_QuotaRotatesCredential(t *testing.T) {
	first := mock.NewMockGenerator(quotaExhausted())
	second := mock.NewMockGenerator(mock.Reply{Text: "from second key"})

	ring := ai.NewKeyRing("token-a", "token-b")
	current, err := ring.Current(context.Background())
	require.NoError(t, err)

	var built []string
	factory := func(credential ai.Credential) (ai.Generator, error) {
		built = append(built, credential.Name)
		return second, nil
	}
	client, recorder := newTestClient(t, first, WithCredentials(ring, current, factory))

	outcome, err := client.Do(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from second key", outcome.Text)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, []string{"key-2"}, built)
	assert.Empty(t, recorder.recorded(), "rotation retries without sleeping")
}

func TestDo_QuotaFallsBackToBackoffWhenRingExhausted(t *testing.T) {
	generator := mock.NewMockGenerator(repeat(quotaExhausted(), 5)...)
	ring := ai.NewKeyRing("only")
	current, err := ring.Current(context.Background())
	require.NoError(t, err)

	factory := func(credential ai.Credential) (ai.Generator, error) {
		t.Fatal("factory must not be called without a fresh credential")
		return nil, nil
	}
	client, recorder := newTestClient(t, generator, WithCredentials(ring, current, factory))

	_, err = client.Do(context.Background(), "prompt")
	assert.ErrorIs(t, err, ai.ErrQuotaExhausted)
	assert.Len(t, recorder.recorded(), 2)
}

func TestDo_ContentBlockedIsTerminal(t *testing.T) {
	generator := mock.NewMockGenerator(mock.Reply{Err: &ai.Failure{Kind: ai.KindContentBlocked}}, mock.Reply{Text: "never"})
	client, recorder := newTestClient(t, generator)

	_, err := client.Do(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrContentBlocked)
	assert.Contains(t, err.Error(), "rephrase")
	assert.Equal(t, 1, generator.CallCount())
	assert.Empty(t, recorder.recorded())

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.NotEmpty(t, genErr.Hint())
}

func TestDo_OtherIsTerminal(t *testing.T) {
	serviceErr := errors.New("invalid api key")
	generator := mock.NewMockGenerator(mock.Reply{Err: serviceErr})
	client, _ := newTestClient(t, generator)

	_, err := client.Do(context.Background(), "prompt")
	assert.ErrorIs(t, err, ai.ErrGenerationFailed)
	assert.ErrorIs(t, err, serviceErr)
	assert.Equal(t, 1, generator.CallCount())
}

func TestDo_TruncatedIsSuccess(t *testing.T) {
	t.Run("with partial text", func(t *testing.T) {
		generator := mock.NewMockGenerator(mock.Reply{Err: &ai.Failure{Kind: ai.KindTruncated, Partial: "The envoys"}})
		client, _ := newTestClient(t, generator)

		outcome, err := client.Do(context.Background(), "prompt")
		require.NoError(t, err)
		assert.True(t, outcome.Truncated)
		assert.Equal(t, "The envoys", outcome.Text)
	})

	t.Run("without text", func(t *testing.T) {
		generator := mock.NewMockGenerator(mock.Reply{Err: &ai.Failure{Kind: ai.KindTruncated}})
		client, _ := newTestClient(t, generator)

		text, err := client.Call(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, "", text)
	})
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	generator := mock.NewMockGenerator(repeat(rateLimited(time.Second), 5)...)
	ctx, cancel := context.WithCancel(context.Background())

	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	client, err := NewClient(generator, WithSleepFunc(sleep))
	require.NoError(t, err)

	_, err = client.Do(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrCancelled)
	assert.Equal(t, 1, generator.CallCount())
}

func TestDo_AlreadyCancelled(t *testing.T) {
	generator := mock.NewMockGenerator(mock.Reply{Text: "never"})
	client, _ := newTestClient(t, generator)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, "prompt")
	assert.ErrorIs(t, err, ai.ErrCancelled)
	assert.Zero(t, generator.CallCount())

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Zero(t, genErr.Attempts)
}

func TestDo_ParentDeadlineIsTimeout(t *testing.T) {
	generator := mock.NewMockGenerator(mock.Reply{Text: "never"})
	client, _ := newTestClient(t, generator)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := client.Do(ctx, "prompt")
	assert.ErrorIs(t, err, ai.ErrTimeout)
}

func TestDo_WaitBeyondCeilingTimesOut(t *testing.T) {
	policy := DefaultPolicy()
	policy.CallTimeout = 5 * time.Second
	generator := mock.NewMockGenerator(rateLimited(12500*time.Millisecond), mock.Reply{Text: "never"})
	client, recorder := newTestClient(t, generator, WithPolicy(policy))

	_, err := client.Do(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrTimeout)
	assert.Empty(t, recorder.recorded(), "must not sleep past the ceiling")

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 1, genErr.Attempts)
}

func TestDo_CeilingExpiresDuringCall(t *testing.T) {
	policy := DefaultPolicy()
	policy.CallTimeout = 20 * time.Millisecond
	generator := mock.NewMockGenerator()
	generator.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", &ai.Failure{Kind: ai.KindOther, Err: ctx.Err()}
	}
	client, _ := newTestClient(t, generator, WithPolicy(policy))

	_, err := client.Do(context.Background(), "prompt")
	assert.ErrorIs(t, err, ai.ErrTimeout)
}

func TestGo_MatchesDo(t *testing.T) {
	generator := mock.NewMockGenerator(rateLimited(2*time.Second), mock.Reply{Text: "async narrative"})
	client, recorder := newTestClient(t, generator)

	results := client.Go(context.Background(), "prompt")
	result, ok := <-results
	require.True(t, ok)
	require.NoError(t, result.Err)
	assert.Equal(t, "async narrative", result.Outcome.Text)
	assert.Equal(t, 2, result.Outcome.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second}, recorder.recorded())

	_, ok = <-results
	assert.False(t, ok, "channel closed after one result")
}

func TestGo_Failure(t *testing.T) {
	generator := mock.NewMockGenerator(mock.Reply{Err: &ai.Failure{Kind: ai.KindContentBlocked}})
	client, _ := newTestClient(t, generator)

	result := <-client.Go(context.Background(), "prompt")
	assert.Nil(t, result.Outcome)
	assert.ErrorIs(t, result.Err, ai.ErrContentBlocked)
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	policy := DefaultPolicy()
	policy.MaxBackoff = policy.InitialBackoff / 2
	assert.ErrorIs(t, policy.Validate(), ErrInvalidPolicy)

	policy = DefaultPolicy()
	policy.CallTimeout = 0
	assert.ErrorIs(t, policy.Validate(), ErrInvalidPolicy)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "backoff", StateBackoff.String())
	assert.Equal(t, "unknown", State(99).String())
}
