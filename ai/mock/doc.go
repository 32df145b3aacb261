// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder, MockGenerator, and MockProvider let tests run without
// external AI services and with controlled, deterministic behavior.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.Pin("treaty", []float32{1, 0, 0})
//
//	generator := mock.NewMockGenerator(
//	    mock.Reply{Err: &ai.Failure{Kind: ai.KindRateLimited, RetryAfter: time.Second}},
//	    mock.Reply{Text: "answer"},
//	)
//	provider := mock.NewMockProviderWithServices(embedder, generator)
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Plays back scripted replies, then Fallback or ErrScriptExhausted
//   - MockProvider: Aggregates mock embedder and generator
package mock
