package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.GenerationProvider = (*RunwayAdapter)(nil)

const runwayAPIVersion = "2024-11-06"

// RunwayAdapter implements adapter.GenerationProvider against the Runway
// image-to-video task API. Tasks are asynchronous: Submit returns a task id
// and the caller polls /tasks/{id} until a terminal status.
type RunwayAdapter struct {
	apiKey string
	base   string // e.g. https://api.dev.runwayml.com/v1
	model  string
	host   adapter.ImageHost
	client *http.Client
	log    *zerolog.Logger
}

func NewRunwayAdapter(apiKey, base, model string, host adapter.ImageHost, logger *zerolog.Logger) (*RunwayAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("runway api key empty")
	}
	if base == "" {
		base = "https://api.dev.runwayml.com/v1"
	}
	if model == "" {
		model = "gen4_turbo"
	}
	return &RunwayAdapter{
		apiKey: apiKey,
		base:   strings.TrimRight(base, "/"),
		model:  model,
		host:   host,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger,
	}, nil
}

func (a *RunwayAdapter) Name() string { return "runway" }

// runwayRatio maps a user-facing aspect ratio onto the pixel ratios the API
// accepts.
func runwayRatio(aspect string) string {
	switch aspect {
	case "9:16":
		return "720:1280"
	case "1:1":
		return "960:960"
	default: // 16:9 and anything unrecognized
		return "1280:720"
	}
}

func (a *RunwayAdapter) Submit(ctx context.Context, req adapter.SubmitRequest) (adapter.SubmitResult, error) {
	imageURL := req.ImageURL
	// Runway fetches the image itself, so re-host to a guaranteed-public URL
	// first. Best effort: the original reference may well be fetchable, so a
	// failed re-host falls back instead of aborting the submission.
	if a.host != nil {
		if hosted, err := a.host.Rehost(ctx, imageURL); err != nil {
			a.log.Warn().Err(err).Str("image_url", imageURL).Msg("rehost failed, submitting original url")
		} else {
			imageURL = hosted
		}
	}

	duration := req.Duration
	if duration <= 0 {
		duration = 5
	}
	body := struct {
		PromptImage string `json:"promptImage"`
		PromptText  string `json:"promptText"`
		Model       string `json:"model"`
		Ratio       string `json:"ratio"`
		Duration    int    `json:"duration"`
	}{imageURL, req.Prompt, a.model, runwayRatio(req.AspectRatio), duration}

	var out struct {
		ID string `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, "/image_to_video", body, &out); err != nil {
		return adapter.SubmitResult{}, err
	}
	if out.ID == "" {
		return adapter.SubmitResult{}, &domain.UpstreamError{Provider: a.Name(), StatusCode: http.StatusOK, Details: "response missing task id"}
	}
	return adapter.SubmitResult{ExternalID: out.ID}, nil
}

func (a *RunwayAdapter) PollOnce(ctx context.Context, externalID string) (adapter.PollResult, error) {
	var out struct {
		ID       string   `json:"id"`
		Status   string   `json:"status"`
		Progress *float64 `json:"progress"`
		Output   []string `json:"output"`
		Failure  string   `json:"failure"`
	}
	if err := a.do(ctx, http.MethodGet, "/tasks/"+externalID, nil, &out); err != nil {
		return adapter.PollResult{}, err
	}

	res := adapter.PollResult{Status: a.mapStatus(out.Status)}
	if out.Progress != nil {
		res.Progress = *out.Progress
		res.HasProgress = true
	}
	switch res.Status {
	case model.JobStatusSucceeded:
		if len(out.Output) > 0 {
			res.OutputURL = out.Output[0]
		}
	case model.JobStatusFailed:
		res.FailureReason = out.Failure
	}
	return res, nil
}

// mapStatus owns the Runway status vocabulary. THROTTLED means the task is
// queued behind the account's concurrency cap, which is still pending from
// our point of view.
func (a *RunwayAdapter) mapStatus(s string) model.JobStatus {
	switch s {
	case "PENDING", "THROTTLED":
		return model.JobStatusPending
	case "RUNNING":
		return model.JobStatusRunning
	case "SUCCEEDED":
		return model.JobStatusSucceeded
	case "FAILED":
		return model.JobStatusFailed
	default:
		a.log.Warn().Str("status", s).Msg("runway reported unknown status")
		return model.JobStatusRunning
	}
}

func (a *RunwayAdapter) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("runway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.UpstreamError{Provider: a.Name(), StatusCode: resp.StatusCode, Details: string(raw)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
