package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
)

func doAuthed(t *testing.T, srv *Server, auth *AuthManager, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	tok := mintToken(t, auth, model.SessionUser{ID: "u1", Email: "u@x.io"})
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestVideoGenerateBlockingSuccess(t *testing.T) {
	t.Parallel()
	gen := &mockGenUC{job: &model.GenerationJob{
		Status: model.JobStatusSucceeded, OutputURL: "https://cdn/v.mp4", CostUnits: 10,
	}}
	srv, auth := testServer(gen, nil, nil)

	rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/video/generations",
		`{"image_url":"https://img/x.png","prompt":"orbit","aspect_ratio":"9:16","duration":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["video_url"] != "https://cdn/v.mp4" || body["status"] != "success" || body["credits_used"] != float64(10) {
		t.Fatalf("body = %v", body)
	}
	if !gen.lastVideo.Wait {
		t.Fatal("wait should default to true")
	}
	if gen.lastVideo.AspectRatio != "9:16" || gen.lastVideo.Duration != 10 {
		t.Fatalf("request not forwarded: %+v", gen.lastVideo)
	}
}

func TestVideoGenerateNoWaitReturnsAccepted(t *testing.T) {
	t.Parallel()
	gen := &mockGenUC{job: &model.GenerationJob{
		Status: model.JobStatusPending, ExternalID: "task-42",
	}}
	srv, auth := testServer(gen, nil, nil)

	rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/video/generations",
		`{"image_url":"https://img/x.png","prompt":"orbit","wait":false}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["task_id"] != "task-42" || body["status"] != "PENDING" {
		t.Fatalf("body = %v", body)
	}
	if gen.lastVideo.Wait {
		t.Fatal("wait=false not forwarded")
	}
}

func TestVideoStatusShapes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		res  adapter.PollResult
		want map[string]any
	}{
		{
			"running with progress",
			adapter.PollResult{Status: model.JobStatusRunning, Progress: 0.5, HasProgress: true},
			map[string]any{"status": "RUNNING", "progress": 0.5, "video_url": nil, "failure": nil},
		},
		{
			"succeeded",
			adapter.PollResult{Status: model.JobStatusSucceeded, OutputURL: "https://cdn/v.mp4"},
			map[string]any{"status": "SUCCEEDED", "progress": nil, "video_url": "https://cdn/v.mp4", "failure": nil},
		},
		{
			"failed with reason",
			adapter.PollResult{Status: model.JobStatusFailed, FailureReason: "bad input"},
			map[string]any{"status": "FAILED", "progress": nil, "video_url": nil, "failure": "bad input"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := testServer(&mockGenUC{pollRes: tc.res}, nil, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/video/generations/status?task_id=t1", nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decodeBody(t, rec)
			for k, v := range tc.want {
				if body[k] != v {
					t.Fatalf("body[%s] = %v, want %v", k, body[k], v)
				}
			}
		})
	}
}

func TestVideoStatusRequiresTaskID(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/video/generations/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestImageEndpoints(t *testing.T) {
	t.Parallel()
	gen := &mockGenUC{job: &model.GenerationJob{Status: model.JobStatusSucceeded, OutputURL: "https://cdn/out.png"}}
	srv, auth := testServer(gen, nil, nil)

	rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/images/edits",
		`{"image_url":"https://img/x.png","prompt":"warmer light"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["output_url"] != "https://cdn/out.png" || body["status"] != "success" {
		t.Fatalf("edit body = %v", body)
	}

	rec = doAuthed(t, srv, auth, http.MethodPost, "/api/v1/images/background-removal",
		`{"image_url":"https://img/x.png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bg status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["image_url"] != "https://cdn/out.png" {
		t.Fatalf("bg body = %v", body)
	}

	rec = doAuthed(t, srv, auth, http.MethodPost, "/api/v1/images/background-removal/ai",
		`{"image_url":"https://img/x.png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bg-ai status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["method"] != "ai" {
		t.Fatalf("bg-ai body = %v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail string
	}{
		{"validation", domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_request", ""},
		{"insufficient credits", domain.ErrInsufficientCredits, http.StatusBadRequest, "insufficient_credits", ""},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", ""},
		{"timeout", domain.ErrGenerationTimeout, http.StatusInternalServerError, "timeout", ""},
		{"job failed", domain.ErrGenerationFailed("nsfw input"), http.StatusInternalServerError, "generation_failed", "nsfw input"},
		{
			"upstream verbatim",
			&domain.UpstreamError{Provider: "runway", StatusCode: 429, Details: `{"error":"rate limit"}`},
			http.StatusInternalServerError, "upstream_error", `{"error":"rate limit"}`,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv, auth := testServer(&mockGenUC{err: tc.err}, nil, nil)
			rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/video/generations",
				`{"image_url":"https://img/x.png","prompt":"p"}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["error"] != tc.wantCode {
				t.Fatalf("error code = %v, want %s", body["error"], tc.wantCode)
			}
			if tc.wantDetail != "" && !strings.Contains(body["message"].(string), tc.wantDetail) {
				t.Fatalf("message %q does not carry %q", body["message"], tc.wantDetail)
			}
		})
	}
}

func TestCheckoutComplete(t *testing.T) {
	t.Parallel()
	bill := &mockBillUC{acc: &model.CreditAccount{Email: "u@x.io", Plan: model.PlanPro, PaidUnits: 300}}
	srv, auth := testServer(nil, bill, nil)

	rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/billing/checkout/complete",
		`{"price_id":"price_pro_monthly"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if bill.lastEmail != "u@x.io" || bill.lastPrice != "price_pro_monthly" {
		t.Fatalf("forwarded %q/%q", bill.lastEmail, bill.lastPrice)
	}
	body := decodeBody(t, rec)
	if body["plan"] != "pro" || body["paid_units"] != float64(300) {
		t.Fatalf("body = %v", body)
	}
}

func TestCheckoutEmailOverrideIsAdminOnly(t *testing.T) {
	t.Parallel()
	bill := &mockBillUC{acc: &model.CreditAccount{Email: "u@x.io"}}
	srv, auth := testServer(nil, bill, nil)

	// Regular session: the email field in the body is ignored.
	rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/billing/checkout/complete",
		`{"price_id":"price_pro_monthly","email":"victim@x.io"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if bill.lastEmail != "u@x.io" {
		t.Fatalf("override applied for non-admin: %q", bill.lastEmail)
	}

	// Admin session: override honored.
	tok := mintToken(t, auth, model.SessionUser{ID: "root", Email: "admin@x.io", Role: model.RoleAdmin})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout/complete",
		strings.NewReader(`{"price_id":"price_pro_monthly","email":"friend@x.io"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	out := httptest.NewRecorder()
	srv.Router().ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("admin status = %d", out.Code)
	}
	if bill.lastEmail != "friend@x.io" {
		t.Fatalf("admin override not applied: %q", bill.lastEmail)
	}
}

func TestCreditsEndpoint(t *testing.T) {
	t.Parallel()
	ledger := &mockLedger{acc: &model.CreditAccount{Email: "u@x.io", FreeUnits: 3, PaidUnits: 7, Plan: model.PlanStarter}}
	srv, auth := testServer(nil, nil, ledger)

	rec := doAuthed(t, srv, auth, http.MethodGet, "/api/v1/account/credits", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["free_units"] != float64(3) || body["paid_units"] != float64(7) || body["total"] != float64(10) {
		t.Fatalf("body = %v", body)
	}
}

func TestMalformedBodyIs400(t *testing.T) {
	t.Parallel()
	srv, auth := testServer(nil, nil, nil)
	rec := doAuthed(t, srv, auth, http.MethodPost, "/api/v1/video/generations", `{"image_url":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
