package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/closurectl/internal/optimizer"
	"github.com/danmuck/closurectl/internal/scratch"
	"github.com/danmuck/closurectl/internal/testutil/faketool"
	"github.com/danmuck/closurectl/internal/testutil/testlog"
	"github.com/danmuck/closurectl/internal/tools"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFakeServer(t *testing.T) (*Server, *optimizer.Pipeline) {
	t.Helper()
	paths := faketool.Install(t)
	cfg := optimizer.DefaultConfig()
	cfg.Runtime = paths.Runtime
	cfg.CompilerJar = paths.Jar
	cfg.ScratchDir = paths.Scratch
	cfg.Timeout = 10 * time.Second
	p, err := optimizer.New(cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return New("closurectl-test", ":0", nil, p), p
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestOptimizeRawBody(t *testing.T) {
	testlog.Start(t)
	s, p := newFakeServer(t)

	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader("  var a = 1;\n  a++;\n"))
	req.Header.Set("Content-Type", "application/javascript")
	rr := serve(s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body optimizeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if strings.TrimSpace(body.Output) != "var a = 1;a++;" {
		t.Fatalf("unexpected output: %q", body.Output)
	}
	if body.InputDigest != optimizer.Digest("  var a = 1;\n  a++;\n") {
		t.Fatalf("unexpected digest: %q", body.InputDigest)
	}
	if names, _ := p.Store().List(""); len(names) != 0 {
		t.Fatalf("scratch artifacts leaked: %v", names)
	}
}

func TestOptimizeJSONBodySurfacesDiagnostics(t *testing.T) {
	testlog.Start(t)
	s, _ := newFakeServer(t)

	payload, _ := json.Marshal(optimizeRequest{Script: faketool.MarkFail + "\nbroken(;\n"})
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body optimizeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ExitCode != 1 || !strings.Contains(body.Diagnostics, "Parse error") {
		t.Fatalf("expected diagnostics in response, got %+v", body)
	}
}

func TestOptimizeRejectsEmptyScript(t *testing.T) {
	testlog.Start(t)
	s, _ := newFakeServer(t)

	for _, tc := range []struct {
		contentType string
		body        string
	}{
		{contentType: "text/plain", body: "   "},
		{contentType: "application/json", body: `{"script":""}`},
		{contentType: "application/json", body: `{"script":`},
	} {
		req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", tc.contentType)
		if rr := serve(s, req); rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", tc.body, rr.Code)
		}
	}
}

func TestOptimizeRejectsOversizedBody(t *testing.T) {
	testlog.Start(t)
	s, p := newFakeServer(t)

	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(strings.Repeat("a", MaxScriptBytes+1)))
	req.Header.Set("Content-Type", "text/plain")
	rr := serve(s, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rr.Code, rr.Body.String())
	}
	if names, _ := p.Store().List(""); len(names) != 0 {
		t.Fatalf("oversized body must not reach scratch: %v", names)
	}
}

func TestOptimizeErrorStatusMapping(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		want int
	}{
		{err: &tools.SpawnError{Executable: "java", Err: fmt.Errorf("not found")}, want: http.StatusBadGateway},
		{err: &optimizer.ToolFailureError{ExitCode: 1}, want: http.StatusBadGateway},
		{err: fmt.Errorf("%w after 1s", tools.ErrTimeout), want: http.StatusGatewayTimeout},
		{err: &scratch.WriteError{Name: "a.js", Err: fmt.Errorf("read-only")}, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s := New("closurectl-test", ":0", nil, stubOptimizer{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader("x();"))
		rr := serve(s, req)
		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] != tc.err.Error() {
			t.Fatalf("unexpected error body: %#v", body)
		}
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	testlog.Start(t)
	s, _ := newFakeServer(t)

	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/ready", nil)); rr.Code != http.StatusOK {
		t.Fatalf("ready: %d body=%s", rr.Code, rr.Body.String())
	}
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "closurectl_") {
		t.Fatalf("metrics: %d", rr.Code)
	}

	broken := New("closurectl-test", ":0", nil, stubOptimizer{checkErr: fmt.Errorf("jar missing")})
	if rr := serve(broken, httptest.NewRequest(http.MethodGet, "/ready", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from broken ready probe, got %d", rr.Code)
	}
}

type stubOptimizer struct {
	err      error
	checkErr error
}

func (s stubOptimizer) Optimize(context.Context, string) (optimizer.Result, error) {
	return optimizer.Result{}, s.err
}

func (s stubOptimizer) Check() error { return s.checkErr }
