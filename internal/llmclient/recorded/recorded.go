// Package recorded implements llmclient.Backend by replaying fixed
// responses keyed by the request's user prompt, realizing the "LLM backend
// replaced by a recorded mock" testable property (spec.md §8) without a
// live API key.
package recorded

import (
	"context"
	"sync"

	"tilecrawler/internal/llmclient"
)

// Fixture is one scripted response or typed failure for a matching prompt.
type Fixture struct {
	Response string
	Err      *llmclient.BackendError
}

// Backend replays Fixtures and also supports an "always fail" mode used by
// the "LLM unreachable" end-to-end scenario.
type Backend struct {
	mu        sync.Mutex
	fixtures  map[string]Fixture
	calls     []llmclient.Request
	alwaysErr *llmclient.BackendError
}

// New creates an empty recorded backend.
func New() *Backend {
	return &Backend{fixtures: map[string]Fixture{}}
}

// Record scripts the response (or failure) for an exact user prompt match.
func (b *Backend) Record(userPrompt string, f Fixture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fixtures[userPrompt] = f
}

// AlwaysFail makes every call fail with the given typed error, regardless
// of fixtures, used to simulate a fully unreachable backend.
func (b *Backend) AlwaysFail(kind llmclient.ErrorKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alwaysErr = &llmclient.BackendError{Kind: kind}
}

// Calls returns every request observed so far, in order.
func (b *Backend) Calls() []llmclient.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llmclient.Request, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *Backend) Complete(ctx context.Context, req llmclient.Request) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	if b.alwaysErr != nil {
		err := *b.alwaysErr
		b.mu.Unlock()
		return "", &err
	}
	f, ok := b.fixtures[req.UserPrompt]
	b.mu.Unlock()
	if !ok {
		return "", &llmclient.BackendError{Kind: llmclient.Invalid}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}
