package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pivotlp/internal/config"
	"pivotlp/internal/core"
	"pivotlp/internal/llm"
	"pivotlp/internal/pipeline"
	"pivotlp/internal/store"
)

type fakeGateway struct {
	reply string
	err   error
	calls int
}

func (g *fakeGateway) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	g.calls++
	return g.reply, g.err
}

func newTestServer(t *testing.T, gateway *fakeGateway) *Server {
	t.Helper()

	st, err := store.NewSQLiteStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p := pipeline.New(gateway, nil, pipeline.Config{})
	return New(p, st, config.Server{Host: "127.0.0.1", Port: 0}, "https://lp-pivot.example")
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func validPageBody() core.LandingPage {
	return core.LandingPage{
		ServiceName: "TaskFlow",
		Catchphrase: "Stop losing hours to busywork",
		Problems:    []string{"p1", "p2", "p3"},
		Solution:    "Automates the boring parts",
		Features:    []core.Feature{{Title: "f", Description: "d"}},
		Strengths:   []string{"s1"},
		Steps:       []core.Step{{Title: "Step 1", Description: "sign up"}},
		CTAText:     "Start free now",
	}
}

func TestHandleAnalyze(t *testing.T) {
	t.Run("invalid url is a 400", func(t *testing.T) {
		s := newTestServer(t, &fakeGateway{})
		rec := doJSON(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{URL: "not a url"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("success returns the summary", func(t *testing.T) {
		gateway := &fakeGateway{reply: `{
			"serviceName": "Acme CRM",
			"targetCustomer": "small agencies",
			"valueProposition": "simplify client tracking",
			"features": ["contact list"]
		}`}
		s := newTestServer(t, gateway)

		rec := doJSON(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{URL: "https://acme.example.com"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}

		var summary core.ServiceSummary
		if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if summary.ServiceName != "Acme CRM" {
			t.Errorf("ServiceName = %q", summary.ServiceName)
		}
	})

	t.Run("overload exhaustion is a 503 with Retry-After", func(t *testing.T) {
		gateway := &fakeGateway{err: fmt.Errorf("%w after 3 attempts", llm.ErrOverloaded)}
		s := newTestServer(t, gateway)

		rec := doJSON(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{URL: "https://acme.example.com"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("Retry-After header missing")
		}

		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !strings.Contains(body.Error, "try again") {
			t.Errorf("error message = %q, want a retry hint", body.Error)
		}
	})

	t.Run("malformed model output is a 502", func(t *testing.T) {
		gateway := &fakeGateway{reply: "I have no JSON for you."}
		s := newTestServer(t, gateway)

		rec := doJSON(t, s, http.MethodPost, "/api/analyze", AnalyzeRequest{URL: "https://acme.example.com"})
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})
}

func TestHandleGenerateValidation(t *testing.T) {
	gateway := &fakeGateway{}
	s := newTestServer(t, gateway)

	rec := doJSON(t, s, http.MethodPost, "/api/generate", pipeline.GenerateRequest{
		ServiceName: "Acme CRM", // targetCustomer and pivot missing
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", gateway.calls)
	}
}

func TestPageSaveAndLoad(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	page := validPageBody()

	rec := doJSON(t, s, http.MethodPost, "/api/pages/", page)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body)
	}

	var saved SavePageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decoding save response: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("save returned empty id")
	}
	if want := "https://lp-pivot.example/lp/" + saved.ID; saved.URL != want {
		t.Errorf("share URL = %q, want %q", saved.URL, want)
	}

	t.Run("load returns the saved page", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/pages/"+saved.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("load status = %d, body = %s", rec.Code, rec.Body)
		}

		var got core.LandingPage
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding load response: %v", err)
		}
		if got.ServiceName != page.ServiceName || got.CTAText != page.CTAText {
			t.Errorf("loaded page = %+v", got)
		}
	})

	t.Run("debug returns metadata without the document", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/pages/"+saved.ID+"/debug", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("debug status = %d", rec.Code)
		}

		var debug PageDebugResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &debug); err != nil {
			t.Fatalf("decoding debug response: %v", err)
		}
		if debug.ID != saved.ID || debug.ServiceName != page.ServiceName {
			t.Errorf("debug = %+v", debug)
		}
		if debug.CreatedAt.IsZero() {
			t.Error("CreatedAt is zero")
		}
	})
}

func TestPageSaveRejectsIncompleteDocument(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})

	page := validPageBody()
	page.CTAText = ""

	rec := doJSON(t, s, http.MethodPost, "/api/pages/", page)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPageLoadUnknownIDIs404(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})

	rec := doJSON(t, s, http.MethodGet, "/api/pages/AAAAAAAAAA", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleClientLog(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})

	t.Run("accepts a log line", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/log", ClientLogRequest{
			Level:   "error",
			Message: "render failed",
			Context: map[string]string{"page": "/lp/abc"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp ClientLogResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.ID == "" || resp.Status != "accepted" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("rejects an empty message", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/log", ClientLogRequest{Level: "info"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "ok" || health.Checks["storage"] != "ok" {
		t.Errorf("health = %+v", health)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}

	var status StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if !status.Storage {
		t.Error("status reports storage unavailable")
	}
}
