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

var _ adapter.GenerationProvider = (*ReplicateAdapter)(nil)

// ReplicateAdapter runs the deterministic background-removal model on
// Replicate's prediction API. Submissions use "Prefer: wait" so the call
// usually blocks until the prediction is terminal and no polling is needed;
// when the wait window elapses first, the normal poll path takes over.
type ReplicateAdapter struct {
	apiKey  string
	base    string // e.g. https://api.replicate.com/v1
	version string // pinned background-removal model version
	client  *http.Client
	log     *zerolog.Logger
}

func NewReplicateAdapter(apiKey, base, version string, logger *zerolog.Logger) (*ReplicateAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("replicate api key empty")
	}
	if base == "" {
		base = "https://api.replicate.com/v1"
	}
	if version == "" {
		return nil, errors.New("replicate model version empty")
	}
	return &ReplicateAdapter{
		apiKey:  apiKey,
		base:    strings.TrimRight(base, "/"),
		version: version,
		client:  &http.Client{Timeout: 90 * time.Second}, // must outlive the wait window
		log:     logger,
	}, nil
}

func (a *ReplicateAdapter) Name() string { return "replicate" }

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (a *ReplicateAdapter) Submit(ctx context.Context, req adapter.SubmitRequest) (adapter.SubmitResult, error) {
	body := struct {
		Version string `json:"version"`
		Input   struct {
			Image string `json:"image"`
		} `json:"input"`
	}{Version: a.version}
	body.Input.Image = req.ImageURL

	var pred replicatePrediction
	if err := a.do(ctx, http.MethodPost, "/predictions", body, true, &pred); err != nil {
		return adapter.SubmitResult{}, err
	}
	if pred.ID == "" {
		return adapter.SubmitResult{}, &domain.UpstreamError{Provider: a.Name(), StatusCode: http.StatusOK, Details: "response missing prediction id"}
	}

	res := adapter.SubmitResult{ExternalID: pred.ID}
	if pr := a.toPollResult(pred); pr.Status.Terminal() {
		res.Terminal = &pr
	}
	return res, nil
}

func (a *ReplicateAdapter) PollOnce(ctx context.Context, externalID string) (adapter.PollResult, error) {
	var pred replicatePrediction
	if err := a.do(ctx, http.MethodGet, "/predictions/"+externalID, nil, false, &pred); err != nil {
		return adapter.PollResult{}, err
	}
	return a.toPollResult(pred), nil
}

func (a *ReplicateAdapter) toPollResult(pred replicatePrediction) adapter.PollResult {
	res := adapter.PollResult{Status: a.mapStatus(pred.Status)}
	switch res.Status {
	case model.JobStatusSucceeded:
		res.OutputURL = firstOutputURL(pred.Output)
	case model.JobStatusFailed:
		res.FailureReason = pred.Error
	}
	return res
}

// mapStatus owns the Replicate status vocabulary.
func (a *ReplicateAdapter) mapStatus(s string) model.JobStatus {
	switch s {
	case "starting":
		return model.JobStatusPending
	case "processing":
		return model.JobStatusRunning
	case "succeeded":
		return model.JobStatusSucceeded
	case "failed", "canceled":
		return model.JobStatusFailed
	default:
		a.log.Warn().Str("status", s).Msg("replicate reported unknown status")
		return model.JobStatusRunning
	}
}

// firstOutputURL handles both output shapes the API uses: a bare string for
// single-file models and an array of strings otherwise.
func firstOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

func (a *ReplicateAdapter) do(ctx context.Context, method, path string, body any, wait bool, out any) error {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if wait {
		req.Header.Set("Prefer", "wait=60")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("replicate %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.UpstreamError{Provider: a.Name(), StatusCode: resp.StatusCode, Details: string(raw)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
