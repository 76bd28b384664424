package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

func TestReplicateSubmitWaitModeReturnsTerminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Prefer"); got != "wait=60" {
			t.Errorf("expected Prefer: wait=60, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "pred-1",
			"status": "succeeded",
			"output": "https://cdn.replicate/cutout.png",
		})
	}))
	defer srv.Close()

	a, err := NewReplicateAdapter("key", srv.URL, "v123", testLogger())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	res, err := a.Submit(context.Background(), adapter.SubmitRequest{ImageURL: "https://app.test/in.png"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Terminal == nil {
		t.Fatalf("expected terminal result in wait mode")
	}
	if res.Terminal.Status != model.JobStatusSucceeded {
		t.Fatalf("expected Succeeded, got %s", res.Terminal.Status)
	}
	if res.Terminal.OutputURL != "https://cdn.replicate/cutout.png" {
		t.Fatalf("bad output url %q", res.Terminal.OutputURL)
	}
}

func TestReplicateSubmitWaitWindowElapsed(t *testing.T) {
	t.Parallel()

	// Provider answered before the prediction finished: no terminal result,
	// the poll loop takes over.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-2", "status": "processing"})
	}))
	defer srv.Close()

	a, _ := NewReplicateAdapter("key", srv.URL, "v123", testLogger())
	res, err := a.Submit(context.Background(), adapter.SubmitRequest{ImageURL: "u"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Terminal != nil {
		t.Fatalf("processing prediction must not be terminal")
	}
	if res.ExternalID != "pred-2" {
		t.Fatalf("expected pred-2, got %q", res.ExternalID)
	}
}

func TestReplicateStatusVocabulary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remote string
		want   model.JobStatus
	}{
		{"starting", model.JobStatusPending},
		{"processing", model.JobStatusRunning},
		{"succeeded", model.JobStatusSucceeded},
		{"failed", model.JobStatusFailed},
		{"canceled", model.JobStatusFailed},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.remote, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]any{"id": "p", "status": tc.remote}
				if tc.remote == "failed" {
					resp["error"] = "NSFW content detected"
				}
				_ = json.NewEncoder(w).Encode(resp)
			}))
			defer srv.Close()

			a, _ := NewReplicateAdapter("key", srv.URL, "v123", testLogger())
			res, err := a.PollOnce(context.Background(), "p")
			if err != nil {
				t.Fatalf("poll: %v", err)
			}
			if res.Status != tc.want {
				t.Fatalf("status %s mapped to %s, want %s", tc.remote, res.Status, tc.want)
			}
			if tc.remote == "failed" && res.FailureReason != "NSFW content detected" {
				t.Fatalf("failure reason not carried: %q", res.FailureReason)
			}
		})
	}
}

func TestReplicateOutputArrayShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "p",
			"status": "succeeded",
			"output": []string{"https://cdn.replicate/a.png", "https://cdn.replicate/b.png"},
		})
	}))
	defer srv.Close()

	a, _ := NewReplicateAdapter("key", srv.URL, "v123", testLogger())
	res, err := a.PollOnce(context.Background(), "p")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.OutputURL != "https://cdn.replicate/a.png" {
		t.Fatalf("expected first array element, got %q", res.OutputURL)
	}
}

func TestReplicatePollSurfacesUpstreamBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"billing required"}`))
	}))
	defer srv.Close()

	a, _ := NewReplicateAdapter("key", srv.URL, "v123", testLogger())
	_, err := a.PollOnce(context.Background(), "p")
	ue, ok := domain.AsUpstreamError(err)
	if !ok {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusPaymentRequired || ue.Details != `{"detail":"billing required"}` {
		t.Fatalf("provider error not passed through: %+v", ue)
	}
}
