package provider

import (
	"context"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GenerationProvider = (*limitedProvider)(nil)

type limitedProvider struct {
	inner adapter.GenerationProvider
	sem   chan struct{}
}

// NewLimitedProvider caps the number of in-flight calls to a provider.
// Submits and polls share the same budget since both count against the
// upstream rate limits.
func NewLimitedProvider(inner adapter.GenerationProvider, maxConcurrent int) adapter.GenerationProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedProvider{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedProvider) Name() string { return l.inner.Name() }

func (l *limitedProvider) Submit(ctx context.Context, req adapter.SubmitRequest) (adapter.SubmitResult, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.SubmitResult{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Submit(ctx, req)
}

func (l *limitedProvider) PollOnce(ctx context.Context, externalID string) (adapter.PollResult, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.PollResult{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.PollOnce(ctx, externalID)
}
