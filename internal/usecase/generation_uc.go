// File: internal/usecase/generation_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/config"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/logging"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/metrics"
	red "github.com/caliothemes/iGPTsave-sub002/internal/infra/redis"
)

// Compile-time check
var _ GenerationUseCase = (*generationUC)(nil)

// Job type labels shared by metrics, rate-limit keys, and cost lookup.
const (
	JobTypeVideo              = "video"
	JobTypeImageEdit          = "image_edit"
	JobTypeBackgroundRemove   = "background_remove"
	JobTypeBackgroundRemoveAI = "background_remove_ai"
)

// VideoRequest carries the image-to-video parameters from the API surface.
// Wait=false returns right after submission with a PENDING job; the caller
// polls /status themselves.
type VideoRequest struct {
	ImageURL    string
	Prompt      string
	AspectRatio string
	Duration    int
	Wait        bool
}

// ImageRequest covers the single-image operations (edit, background removal).
type ImageRequest struct {
	ImageURL string
	Prompt   string
}

// GenerationUseCase is the request orchestrator: it gates every submission
// behind the credit ledger, drives the provider to a terminal status, and
// compensates the ledger when the provider fails.
type GenerationUseCase interface {
	GenerateVideo(ctx context.Context, user model.SessionUser, req VideoRequest) (*model.GenerationJob, error)
	// VideoStatus is a bare passthrough poll by provider task id. No auth,
	// no credits: the id itself is the capability.
	VideoStatus(ctx context.Context, externalID string) (adapter.PollResult, error)
	EditImage(ctx context.Context, user model.SessionUser, req ImageRequest) (*model.GenerationJob, error)
	RemoveBackground(ctx context.Context, user model.SessionUser, req ImageRequest) (*model.GenerationJob, error)
	RemoveBackgroundAI(ctx context.Context, user model.SessionUser, req ImageRequest) (*model.GenerationJob, error)
}

type generationUC struct {
	ledger  CreditLedger
	video   adapter.GenerationProvider
	editor  adapter.GenerationProvider
	remover adapter.GenerationProvider // deterministic matting, free
	aiRem   adapter.GenerationProvider // generative fallback, credited
	limiter *red.RateLimiter
	costs   config.CostsConfig
	policy  PollPolicy
	rlPer   int
	rlWin   time.Duration
	devMode bool
	log     *zerolog.Logger
}

func NewGenerationUseCase(
	ledger CreditLedger,
	video, editor, remover, aiRemover adapter.GenerationProvider,
	limiter *red.RateLimiter,
	cfg *config.Config,
	devMode bool,
	logger *zerolog.Logger,
) *generationUC {
	return &generationUC{
		ledger:  ledger,
		video:   video,
		editor:  editor,
		remover: remover,
		aiRem:   aiRemover,
		limiter: limiter,
		costs:   cfg.Costs,
		policy:  PollPolicy{MaxAttempts: cfg.Polling.MaxAttempts, Interval: cfg.Polling.Interval},
		rlPer:   cfg.RateLimit.PerUser,
		rlWin:   cfg.RateLimit.Window,
		devMode: devMode,
		log:     logger,
	}
}

func (uc *generationUC) GenerateVideo(ctx context.Context, user model.SessionUser, req VideoRequest) (*model.GenerationJob, error) {
	if err := validateImageURL(req.ImageURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}
	sub := adapter.SubmitRequest{
		ImageURL:    req.ImageURL,
		Prompt:      strings.TrimSpace(req.Prompt),
		AspectRatio: req.AspectRatio,
		Duration:    req.Duration,
	}
	return uc.runJob(ctx, user, JobTypeVideo, uc.costs.Video, uc.video, sub, req.Wait)
}

func (uc *generationUC) VideoStatus(ctx context.Context, externalID string) (adapter.PollResult, error) {
	if externalID == "" {
		return adapter.PollResult{}, domain.ErrInvalidArgument
	}
	return uc.video.PollOnce(ctx, externalID)
}

func (uc *generationUC) EditImage(ctx context.Context, user model.SessionUser, req ImageRequest) (*model.GenerationJob, error) {
	if err := validateImageURL(req.ImageURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}
	sub := adapter.SubmitRequest{ImageURL: req.ImageURL, Prompt: strings.TrimSpace(req.Prompt)}
	return uc.runJob(ctx, user, JobTypeImageEdit, uc.costs.ImageEdit, uc.editor, sub, true)
}

func (uc *generationUC) RemoveBackground(ctx context.Context, user model.SessionUser, req ImageRequest) (*model.GenerationJob, error) {
	if err := validateImageURL(req.ImageURL); err != nil {
		return nil, err
	}
	sub := adapter.SubmitRequest{ImageURL: req.ImageURL}
	// Deterministic matting costs nothing; it still goes through the
	// orchestrator for rate limiting and auth.
	return uc.runJob(ctx, user, JobTypeBackgroundRemove, 0, uc.remover, sub, true)
}

func (uc *generationUC) RemoveBackgroundAI(ctx context.Context, user model.SessionUser, req ImageRequest) (*model.GenerationJob, error) {
	if err := validateImageURL(req.ImageURL); err != nil {
		return nil, err
	}
	sub := adapter.SubmitRequest{ImageURL: req.ImageURL}
	return uc.runJob(ctx, user, JobTypeBackgroundRemoveAI, uc.costs.BackgroundRemoveAI, uc.aiRem, sub, true)
}

// runJob is the shared pipeline: auth -> rate limit -> reserve -> submit ->
// poll -> settle. Credits move before the provider sees the request and move
// back on submission failure or a provider-reported failure. A timeout keeps
// the charge: the remote task may still be burning provider quota.
func (uc *generationUC) runJob(ctx context.Context, user model.SessionUser, jobType string, cost int64, p adapter.GenerationProvider, sub adapter.SubmitRequest, wait bool) (*model.GenerationJob, error) {
	if user.Email == "" {
		return nil, domain.ErrUnauthorized
	}
	ctx = logging.WithUserEmail(ctx, user.Email)
	log := logging.With(ctx, uc.log)

	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, red.SubmitKey(user.Email, jobType), uc.rlPer, uc.rlWin)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	res, err := uc.ledger.CheckAndReserve(ctx, user.Email, cost, uc.devMode || user.IsAdmin())
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.CreditBlocked(jobType)
		}
		return nil, err
	}
	if res.Bypassed {
		metrics.CreditBypassed(jobType)
	}

	job := &model.GenerationJob{
		TaskID:      ulid.Make().String(),
		Provider:    p.Name(),
		Status:      model.JobStatusPending,
		CostUnits:   res.Cost(),
		SubmittedAt: time.Now(),
	}
	ctx = logging.WithTaskID(ctx, job.TaskID)
	log = logging.With(ctx, uc.log)

	submitStart := time.Now()
	sr, err := p.Submit(ctx, sub)
	metrics.ObserveSubmit(p.Name(), int(time.Since(submitStart).Milliseconds()), err == nil)
	if err != nil {
		uc.refund(ctx, res)
		log.Error().Err(err).Str("provider", p.Name()).Msg("submission failed")
		return nil, err
	}
	job.ExternalID = sr.ExternalID
	metrics.CreditCharged(jobType, res.Cost())
	log.Info().Str("provider", p.Name()).Str("external_id", sr.ExternalID).
		Int64("cost", res.Cost()).Msg("job submitted")

	var out pollOutcome
	switch {
	case sr.Terminal != nil:
		// Wait-mode provider: the answer came back with the submission.
		out = pollOutcome{
			Status:        sr.Terminal.Status,
			OutputURL:     sr.Terminal.OutputURL,
			FailureReason: sr.Terminal.FailureReason,
		}
	case !wait:
		return job, nil
	default:
		out, err = runPollLoop(ctx, p, sr.ExternalID, uc.policy, log)
	}

	job.Status = out.Status
	job.Attempts = out.Attempts
	job.OutputURL = out.OutputURL
	job.FailureReason = out.FailureReason
	uc.settle(ctx, jobType, job, res, log)

	if err != nil {
		return job, err
	}
	switch out.Status {
	case model.JobStatusSucceeded:
		return job, nil
	case model.JobStatusFailed:
		return job, domain.ErrGenerationFailed(job.FailureReason)
	default:
		return job, domain.ErrGenerationTimeout
	}
}

// settle records the outcome and runs the ledger compensation for failures.
func (uc *generationUC) settle(ctx context.Context, jobType string, job *model.GenerationJob, res *model.Reservation, log *zerolog.Logger) {
	metrics.ObserveJob(job.Provider, strings.ToLower(string(job.Status)), job.Attempts, time.Since(job.SubmittedAt).Seconds())

	switch job.Status {
	case model.JobStatusSucceeded:
		log.Info().Str("task_id", job.TaskID).Int("attempts", job.Attempts).Msg("job succeeded")
	case model.JobStatusFailed:
		uc.refund(ctx, res)
		metrics.CreditRefunded(jobType, res.Cost())
		log.Warn().Str("task_id", job.TaskID).Str("reason", job.FailureReason).Msg("job failed; credits returned")
	case model.JobStatusTimedOut:
		log.Warn().Str("task_id", job.TaskID).Int("attempts", job.Attempts).Msg("job timed out; charge kept")
	default:
		// Poll transport error mid-flight: remote state unknown, keep the
		// charge like a timeout.
		log.Warn().Str("task_id", job.TaskID).Str("status", string(job.Status)).Msg("job abandoned mid-poll")
	}
}

func (uc *generationUC) refund(ctx context.Context, res *model.Reservation) {
	// Best effort; Refund logs its own failures.
	_ = uc.ledger.Refund(ctx, res)
}

// validateImageURL admits only fetchable http(s) references. Inline data
// URLs are rejected: the adapters and the re-host path retrieve the source
// bytes with a plain HTTP GET, which cannot dereference a data: scheme.
func validateImageURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.ErrInvalidArgument
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return domain.ErrInvalidArgument
	}
	return nil
}
