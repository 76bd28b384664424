package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

var _ adapter.GenerationProvider = (*OpenAIAdapter)(nil)

// OpenAIAdapter is the generative background-removal fallback: it asks the
// image model to repaint the subject on a transparent background. Used when
// the deterministic matting provider cannot handle the input. Synchronous,
// so Submit returns a terminal result.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	host   adapter.ImageHost
	fetch  *http.Client
}

func NewOpenAIAdapter(apiKey, model string, host adapter.ImageHost) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if host == nil {
		return nil, errors.New("openai: image host required to publish results")
	}
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		host:   host,
		fetch:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

const removeBackgroundPrompt = "Remove the background completely. Keep the foreground subject exactly as-is and make the background fully transparent."

func (o *OpenAIAdapter) Submit(ctx context.Context, req adapter.SubmitRequest) (adapter.SubmitResult, error) {
	data, mime, err := o.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return adapter.SubmitResult{}, err
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = removeBackgroundPrompt
	}

	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(data), "input.png", mime),
		},
		Prompt: prompt,
		Model:  openai.ImageModel(o.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return adapter.SubmitResult{}, &domain.UpstreamError{
				Provider:   o.Name(),
				StatusCode: apiErr.StatusCode,
				Details:    apiErr.Error(),
			}
		}
		return adapter.SubmitResult{}, fmt.Errorf("openai image edit: %w", err)
	}

	id := uuid.NewString()
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		terminal := &adapter.PollResult{Status: model.JobStatusFailed, FailureReason: "model returned no image"}
		return adapter.SubmitResult{ExternalID: id, Terminal: terminal}, nil
	}
	out, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return adapter.SubmitResult{}, fmt.Errorf("decode image payload: %w", err)
	}

	url, err := o.host.Upload(ctx, out, "image/png")
	if err != nil {
		return adapter.SubmitResult{}, fmt.Errorf("publish edited image: %w", err)
	}
	terminal := &adapter.PollResult{Status: model.JobStatusSucceeded, OutputURL: url}
	return adapter.SubmitResult{ExternalID: id, Terminal: terminal}, nil
}

// PollOnce is never reached in practice: Submit always returns a terminal
// result for this provider.
func (o *OpenAIAdapter) PollOnce(ctx context.Context, externalID string) (adapter.PollResult, error) {
	return adapter.PollResult{}, fmt.Errorf("openai: no pollable task %s: %w", externalID, domain.ErrNotFound)
}

func (o *OpenAIAdapter) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := o.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, "", &domain.UpstreamError{Provider: o.Name(), StatusCode: resp.StatusCode, Details: "source image fetch: " + string(raw)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}
