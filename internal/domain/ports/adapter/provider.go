package adapter

import (
	"context"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
)

// SubmitRequest is the canonical shape handed to every provider. Each
// adapter translates it into its own wire protocol.
type SubmitRequest struct {
	ImageURL    string
	Prompt      string
	AspectRatio string
	Duration    int // seconds; video providers only
}

// PollResult is one observation of a remote job, already mapped into the
// canonical status vocabulary. Providers never report TimedOut.
type PollResult struct {
	Status        model.JobStatus
	Progress      float64
	HasProgress   bool
	OutputURL     string
	FailureReason string
}

// SubmitResult carries the provider task id. Terminal is non-nil when the
// provider blocked until completion ("wait" mode): the poll loop then runs
// zero iterations.
type SubmitResult struct {
	ExternalID string
	Terminal   *PollResult
}

// GenerationProvider is the port every external generation service
// implements. Adding a provider means adding an implementation, never
// branching inside the orchestrator.
type GenerationProvider interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	PollOnce(ctx context.Context, externalID string) (PollResult, error)
}
