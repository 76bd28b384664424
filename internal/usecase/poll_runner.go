// File: internal/usecase/poll_runner.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

// PollPolicy bounds a poll loop. The zero value is unusable; build it from
// config so the ceiling stays aligned with the server write timeout.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// pollOutcome is what a finished loop hands back to the orchestrator.
type pollOutcome struct {
	Status        model.JobStatus
	OutputURL     string
	FailureReason string
	Attempts      int
}

// runPollLoop drives a submitted task to a terminal status or to the attempt
// ceiling. Each iteration sleeps first, then polls, so a provider gets at
// least one interval to make progress before the first question. A transport
// error ends the loop immediately: the remote status is unknown and retrying
// through a broken pipe only burns the budget.
func runPollLoop(ctx context.Context, p adapter.GenerationProvider, externalID string, policy PollPolicy, log *zerolog.Logger) (pollOutcome, error) {
	out := pollOutcome{Status: model.JobStatusRunning}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(policy.Interval):
		}

		res, err := p.PollOnce(ctx, externalID)
		if err != nil {
			out.Attempts = attempt
			return out, err
		}
		out.Attempts = attempt
		out.Status = res.Status
		if res.HasProgress {
			log.Debug().Str("external_id", externalID).
				Int("attempt", attempt).Float64("progress", res.Progress).
				Msg("task progress")
		}

		if res.Status.Terminal() {
			out.OutputURL = res.OutputURL
			out.FailureReason = res.FailureReason
			return out, nil
		}
	}

	out.Status = model.JobStatusTimedOut
	return out, domain.ErrGenerationTimeout
}
