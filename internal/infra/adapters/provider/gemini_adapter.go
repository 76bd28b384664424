// File: internal/infra/adapters/provider/gemini_adapter.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

var _ adapter.GenerationProvider = (*GeminiAdapter)(nil)

// GeminiAdapter performs prompted image edits with the Gemini image model
// through the official SDK. The model answers within the request, so Submit
// always returns a terminal result and the poll loop never runs.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	host   adapter.ImageHost
	fetch  *http.Client
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, host adapter.ImageHost) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if host == nil {
		return nil, errors.New("gemini: image host required to publish results")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client: c,
		model:  model,
		host:   host,
		fetch:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Submit(ctx context.Context, req adapter.SubmitRequest) (adapter.SubmitResult, error) {
	data, mime, err := g.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return adapter.SubmitResult{}, err
	}

	prompt := req.Prompt
	if req.AspectRatio != "" {
		prompt = fmt.Sprintf("%s (keep a %s aspect ratio)", prompt, req.AspectRatio)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, mime),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return adapter.SubmitResult{}, fmt.Errorf("gemini generate: %w", err)
	}

	id := uuid.NewString()
	out, outMime := firstInlineImage(resp)
	if out == nil {
		terminal := &adapter.PollResult{
			Status:        model.JobStatusFailed,
			FailureReason: "model returned no image",
		}
		return adapter.SubmitResult{ExternalID: id, Terminal: terminal}, nil
	}

	// The SDK hands back raw bytes; publish them so the response carries a
	// durable URL like every other provider.
	url, err := g.host.Upload(ctx, out, outMime)
	if err != nil {
		return adapter.SubmitResult{}, fmt.Errorf("publish edited image: %w", err)
	}
	terminal := &adapter.PollResult{Status: model.JobStatusSucceeded, OutputURL: url}
	return adapter.SubmitResult{ExternalID: id, Terminal: terminal}, nil
}

// PollOnce is never reached in practice: Submit always returns a terminal
// result for this provider.
func (g *GeminiAdapter) PollOnce(ctx context.Context, externalID string) (adapter.PollResult, error) {
	return adapter.PollResult{}, fmt.Errorf("gemini: no pollable task %s: %w", externalID, domain.ErrNotFound)
}

func (g *GeminiAdapter) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, "", &domain.UpstreamError{Provider: g.Name(), StatusCode: resp.StatusCode, Details: "source image fetch: " + string(raw)}
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

func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, string) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, part.InlineData.MIMEType
			}
		}
	}
	return nil, ""
}
