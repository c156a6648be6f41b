package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benaskins/gpuprobe/internal/audit"
	"github.com/benaskins/gpuprobe/internal/gpu"
)

type fakeProber struct {
	resp       gpu.Response
	err        error
	capability gpu.CapabilityResult
	calls      atomic.Int32
}

func (f *fakeProber) Run(ctx context.Context) (gpu.Response, error) {
	f.calls.Add(1)
	return f.resp, f.err
}

func (f *fakeProber) Capability(ctx context.Context) gpu.CapabilityResult {
	return f.capability
}

func setupTestServer(t *testing.T, p Prober, opts ...Option) (*Server, *http.Client) {
	t.Helper()

	srv := NewServer(p, opts...)

	// Keep the socket path short; macOS limits it to 104 bytes.
	dir, err := os.MkdirTemp("", "gp")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sockPath := filepath.Join(dir, "api.sock")

	go srv.ListenUnix(sockPath)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	// Wait for socket to be ready
	for i := 0; i < 50; i++ {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", sockPath)
			},
		},
	}

	return srv, client
}

func availableResponse() gpu.Response {
	return gpu.Response{HasMPS: true, GPUs: []gpu.Record{gpu.SyntheticRecord()}}
}

func TestHealthEndpoint(t *testing.T) {
	_, client := setupTestServer(t, &fakeProber{})

	resp, err := client.Get("http://gpuprobe/v1/health")
	if err != nil {
		t.Fatalf("GET /v1/health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]string
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "ok" {
		t.Errorf("expected status ok, got %q", result["status"])
	}
}

func TestGPUAvailable(t *testing.T) {
	_, client := setupTestServer(t, &fakeProber{resp: availableResponse()})

	resp, err := client.Get("http://gpuprobe/v1/gpu")
	if err != nil {
		t.Fatalf("GET /v1/gpu: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body gpu.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.HasMPS || len(body.GPUs) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.GPUs[0].Name != "Apple GPU (MPS)" {
		t.Errorf("expected synthetic record, got %q", body.GPUs[0].Name)
	}
}

func TestGPUUnavailableIsOK(t *testing.T) {
	p := &fakeProber{resp: gpu.Response{GPUs: []gpu.Record{}, Error: "MPS not available on this system"}}
	_, client := setupTestServer(t, p)

	resp, err := client.Get("http://gpuprobe/v1/gpu")
	if err != nil {
		t.Fatalf("GET /v1/gpu: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("expected 200 for expected absence, got %d", resp.StatusCode)
	}

	var raw map[string]any
	json.NewDecoder(resp.Body).Decode(&raw)
	if raw["hasMps"] != false {
		t.Errorf("expected hasMps false, got %v", raw["hasMps"])
	}
	gpus, ok := raw["gpus"].([]any)
	if !ok || len(gpus) != 0 {
		t.Errorf("expected empty gpus array, got %v", raw["gpus"])
	}
	if raw["error"] != "MPS not available on this system" {
		t.Errorf("unexpected error %v", raw["error"])
	}
}

func TestGPUInternalFaultIs500(t *testing.T) {
	p := &fakeProber{
		resp: gpu.Response{GPUs: []gpu.Record{}, Error: "Failed to fetch GPU stats: boom"},
		err:  errors.New("boom"),
	}
	_, client := setupTestServer(t, p)

	resp, err := client.Get("http://gpuprobe/v1/gpu")
	if err != nil {
		t.Fatalf("GET /v1/gpu: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}

	var body gpu.Response
	json.NewDecoder(resp.Body).Decode(&body)
	if body.HasMPS || len(body.GPUs) != 0 {
		t.Errorf("expected no capability in error body, got %+v", body)
	}
	if body.Error != "Failed to fetch GPU stats: boom" {
		t.Errorf("unexpected error %q", body.Error)
	}
}

func TestCapabilityEndpoint(t *testing.T) {
	p := &fakeProber{capability: gpu.CapabilityResult{Available: false, Diagnostic: "MPS not available on this system"}}
	_, client := setupTestServer(t, p)

	resp, err := client.Get("http://gpuprobe/v1/gpu/capability")
	if err != nil {
		t.Fatalf("GET /v1/gpu/capability: %v", err)
	}
	defer resp.Body.Close()

	var res gpu.CapabilityResult
	json.NewDecoder(resp.Body).Decode(&res)
	if res.Available || res.Diagnostic == "" {
		t.Errorf("unexpected capability %+v", res)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, client := setupTestServer(t, &fakeProber{})

	resp, err := client.Post("http://gpuprobe/v1/gpu", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/gpu: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	p := &fakeProber{resp: availableResponse()}
	srv := NewServer(p, WithRateLimit(0.001, 2))

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gpu", nil))
		codes[i] = rec.Code
	}

	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected [200 200 429], got %v", codes)
	}
	if p.calls.Load() != 2 {
		t.Errorf("expected 2 probe runs, got %d", p.calls.Load())
	}
}

func TestUpdateSwapsProber(t *testing.T) {
	first := &fakeProber{resp: gpu.Response{GPUs: []gpu.Record{}, Error: "MPS not available on this system"}}
	second := &fakeProber{resp: availableResponse()}
	srv := NewServer(first, WithRateLimit(0.001, 1))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gpu", nil))

	srv.Update(second, 0, 0)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gpu", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200 after update lifted the limit, got %d", rec.Code)
	}

	var body gpu.Response
	json.NewDecoder(rec.Body).Decode(&body)
	if !body.HasMPS {
		t.Error("expected response from the new prober")
	}
	if first.calls.Load() != 1 || second.calls.Load() != 1 {
		t.Errorf("unexpected call counts: first=%d second=%d", first.calls.Load(), second.calls.Load())
	}
}

func TestProbesAreAudited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.log")
	l, err := audit.NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	srv := NewServer(&fakeProber{resp: availableResponse()}, WithAudit(l))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gpu", nil))

	entries, err := audit.Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Source != audit.SourceAPI || !e.HasMPS || e.GPUs != 1 || e.Status != 200 {
		t.Errorf("unexpected entry %+v", e)
	}
}
