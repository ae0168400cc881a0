package api_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/speedometer/speedometer/internal/alerts"
	"github.com/speedometer/speedometer/internal/api"
	"github.com/speedometer/speedometer/internal/cache"
	"github.com/speedometer/speedometer/internal/config"
	"github.com/speedometer/speedometer/internal/node"
	"github.com/speedometer/speedometer/internal/playback"
)

const sceneYAML = `
scene:
  fps: 24
  linear_unit: m
  start_frame: 1
  end_frame: 10
nodes:
  - id: car
    mode: matrix
    unit: m/s
    matrix:
      keys:
        - {frame: 1, translate: [3, 4, 0]}
        - {frame: 2, translate: [0, 0, 0]}
  - id: loose
    mode: distance
    matrix:
      keys:
        - {frame: 1, translate: [0, 0, 0]}
  - id: off
    enabled: false
    mode: matrix
    matrix:
      keys:
        - {frame: 1, translate: [0, 0, 0]}
  - id: path
    mode: distance
    unit: km/h
    distance:
      infinity: strict
      keys:
        - {frame: 1, value: 0}
        - {frame: 9, value: 4}
        - {frame: 10, value: 10}
`

// --- test helpers -----------------------------------------------------------

type playhead float64

func (p playhead) Current() float64 { return float64(p) }

func newGraph(t *testing.T) *node.Graph {
	t.Helper()
	cfg, err := config.Parse([]byte(sceneYAML))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	g, err := node.NewGraph(cfg, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func newHandler(t *testing.T, frame float64) http.Handler {
	t.Helper()
	return api.New(newGraph(t), playhead(frame), nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_Counts(t *testing.T) {
	h := newHandler(t, 1) // path fails at frame 1: frame 0 is outside its strict keys
	rr := get(t, h, "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.NodeCount != 4 {
		t.Errorf("node_count: got %d, want 4", resp.NodeCount)
	}
	if resp.OKCount != 1 || resp.NoSourceCount != 1 || resp.DisabledCount != 1 || resp.ErrorCount != 1 {
		t.Errorf("counts: %+v", resp)
	}
	if resp.State != "degraded" {
		t.Errorf("state: got %q, want degraded", resp.State)
	}
	if resp.Frame != 1 {
		t.Errorf("frame: got %v, want 1", resp.Frame)
	}
}

func TestHealth_OK(t *testing.T) {
	rr := get(t, newHandler(t, 5), "/api/v1/health")
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "ok" || resp.ErrorCount != 0 {
		t.Errorf("got %+v, want ok with no errors", resp)
	}
}

func TestHealth_Empty(t *testing.T) {
	cfg, err := config.Parse([]byte("scene: {fps: 24}\n"))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	g, err := node.NewGraph(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	rr := get(t, api.New(g, playhead(1), nil), "/api/v1/health")
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "unknown" || resp.NodeCount != 0 {
		t.Errorf("got %+v, want unknown/0", resp)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandler(t, 1).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/nodes ----------------------------------------------------------

func TestListNodes(t *testing.T) {
	rr := get(t, newHandler(t, 1), "/api/v1/nodes")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []node.Info
	decode(t, rr, &resp)
	if len(resp) != 4 {
		t.Fatalf("nodes: got %d, want 4", len(resp))
	}
	want := []string{"car", "loose", "off", "path"}
	for i, id := range want {
		if resp[i].ID != id {
			t.Errorf("nodes[%d]: got %q, want %q", i, resp[i].ID, id)
		}
	}
	if resp[1].Connected || !resp[1].MatrixConnected {
		t.Errorf("loose: connected=%v matrix=%v", resp[1].Connected, resp[1].MatrixConnected)
	}
}

func TestListNodes_TrailingSlash(t *testing.T) {
	rr := get(t, newHandler(t, 1), "/api/v1/nodes/")
	var resp []node.Info
	decode(t, rr, &resp)
	if len(resp) != 4 {
		t.Errorf("nodes: got %d, want 4", len(resp))
	}
}

// --- /api/v1/nodes/{id} -----------------------------------------------------

func TestGetNode_AtPlayhead(t *testing.T) {
	rr := get(t, newHandler(t, 2), "/api/v1/nodes/car")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.NodeResponse
	decode(t, rr, &resp)
	if resp.Node.ID != "car" {
		t.Errorf("node.id: got %q", resp.Node.ID)
	}
	// 5 m in 1/24 s = 120 m/s
	if !almostEqual(resp.Result.Speed, 120) {
		t.Errorf("speed: got %v, want 120", resp.Result.Speed)
	}
	if resp.Result.Unit != "m/s" || resp.Result.Mode != "matrix" || resp.Result.State != "ok" {
		t.Errorf("result: %+v", resp.Result)
	}
}

func TestGetNode_FrameQuery(t *testing.T) {
	rr := get(t, newHandler(t, 2), "/api/v1/nodes/path?frame=5")
	var resp api.NodeResponse
	decode(t, rr, &resp)
	// 0.5 m per frame at 24 fps = 12 m/s = 43.2 km/h
	if !almostEqual(resp.Result.Speed, 43.2) {
		t.Errorf("speed: got %v, want 43.2", resp.Result.Speed)
	}
	if resp.Result.Frame != 5 {
		t.Errorf("frame: got %v, want 5", resp.Result.Frame)
	}
}

func TestGetNode_Diagnostics(t *testing.T) {
	cases := []struct {
		path string
		key  string
	}{
		{"/api/v1/nodes/off", "disabled"},
		{"/api/v1/nodes/loose", "no_source"},
		{"/api/v1/nodes/path?frame=1", "out_of_range"},
		{"/api/v1/nodes/car?frame=5", "stationary"},
	}
	h := newHandler(t, 1)
	for _, tc := range cases {
		var resp api.NodeResponse
		decode(t, get(t, h, tc.path), &resp)
		if len(resp.Diagnostics) == 0 || resp.Diagnostics[0].Key != tc.key {
			t.Errorf("%s: diagnostics %+v, want first key %q", tc.path, resp.Diagnostics, tc.key)
		}
	}
}

func TestGetNode_ErrorResult(t *testing.T) {
	var resp api.NodeResponse
	decode(t, get(t, newHandler(t, 1), "/api/v1/nodes/path"), &resp)
	if resp.Result.State != "error" || resp.Result.ErrorMessage == "" {
		t.Errorf("result: %+v, want error with message", resp.Result)
	}
	if resp.Result.Speed != 0 {
		t.Errorf("speed: got %v, want 0", resp.Result.Speed)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	rr := get(t, newHandler(t, 1), "/api/v1/nodes/nope")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestGetNode_BadFrame(t *testing.T) {
	for _, q := range []string{"abc", "NaN", "Inf"} {
		rr := get(t, newHandler(t, 1), "/api/v1/nodes/car?frame="+q)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("frame=%s: status %d, want 400", q, rr.Code)
		}
	}
}

// --- /api/v1/nodes/{id}/series ----------------------------------------------

func TestSeries_DefaultRange(t *testing.T) {
	rr := get(t, newHandler(t, 1), "/api/v1/nodes/car/series")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.SeriesResponse
	decode(t, rr, &resp)
	if len(resp.Results) != 10 {
		t.Fatalf("results: got %d, want 10 (frames 1..10)", len(resp.Results))
	}
	if !almostEqual(resp.Results[1].Speed, 120) {
		t.Errorf("frame 2 speed: got %v, want 120", resp.Results[1].Speed)
	}
	if resp.Results[5].Speed != 0 {
		t.Errorf("frame 6 speed: got %v, want 0", resp.Results[5].Speed)
	}
}

func TestSeries_ExplicitRange(t *testing.T) {
	var resp api.SeriesResponse
	decode(t, get(t, newHandler(t, 1), "/api/v1/nodes/path/series?start=2&end=4"), &resp)
	if resp.Start != 2 || resp.End != 4 || len(resp.Results) != 3 {
		t.Errorf("got start=%v end=%v n=%d", resp.Start, resp.End, len(resp.Results))
	}
}

func TestSeries_HugeFrames(t *testing.T) {
	h := newHandler(t, 1)
	for _, path := range []string{
		"/api/v1/nodes/car/series?start=1e17&end=1e17",
		"/api/v1/nodes/car/series?start=-1e17",
		"/api/v1/nodes/car?frame=1e17",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", path, rr.Code)
		}
	}

	var resp api.SeriesResponse
	decode(t, get(t, h, "/api/v1/nodes/path/series?start=1e9&end=1e9"), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("series at the frame bound: got %d results, want 1", len(resp.Results))
	}
}

func TestSeries_Errors(t *testing.T) {
	h := newHandler(t, 1)
	cases := []struct {
		path string
		code int
	}{
		{"/api/v1/nodes/nope/series", http.StatusNotFound},
		{"/api/v1/nodes/car/series?start=5&end=1", http.StatusBadRequest},
		{"/api/v1/nodes/car/series?start=x", http.StatusBadRequest},
		{"/api/v1/nodes/car/series?end=1e9", http.StatusBadRequest},
		{"/api/v1/nodes/car/series?start=NaN", http.StatusBadRequest},
		{"/api/v1/nodes/car/series?end=Inf", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rr := get(t, h, tc.path); rr.Code != tc.code {
			t.Errorf("%s: status %d, want %d", tc.path, rr.Code, tc.code)
		}
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_NoEngine(t *testing.T) {
	rr := get(t, newHandler(t, 1), "/api/v1/alerts")
	var resp []interface{}
	decode(t, rr, &resp)
	if len(resp) != 0 {
		t.Errorf("alerts: got %d, want 0", len(resp))
	}
}

func TestAlerts_Firing(t *testing.T) {
	g := newGraph(t)
	ae := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "fast", Node: "car", Condition: "speed > 100", Severity: "critical"},
	}})
	ae.EvaluateAll(g.Evaluate(2))
	ae.Wait()

	h := api.New(g, playhead(2), ae)
	var resp []alerts.Alert
	decode(t, get(t, h, "/api/v1/alerts"), &resp)
	if len(resp) != 1 || resp[0].RuleName != "fast" || resp[0].State != "firing" {
		t.Fatalf("alerts: %+v", resp)
	}

	var health api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &health)
	if health.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", health.AlertCount)
	}
}

// --- /api/v1/health cache counters ------------------------------------------

func TestHealth_CacheStats(t *testing.T) {
	if resp := decodeHealth(t, newHandler(t, 5)); resp.Cache != nil {
		t.Errorf("cache: got %+v, want absent without a store", resp.Cache)
	}

	cfg, err := config.Parse([]byte(sceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	g, err := node.NewGraph(cfg, cache.New(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	h := api.New(g, playhead(5), nil)
	decodeHealth(t, h) // first pass fills the cache
	resp := decodeHealth(t, h)
	if resp.Cache == nil || resp.Cache.Entries == 0 || resp.Cache.Hits == 0 || resp.Cache.Misses == 0 {
		t.Errorf("cache: got %+v, want entries, hits and misses", resp.Cache)
	}
}

func decodeHealth(t *testing.T, h http.Handler) api.HealthResponse {
	t.Helper()
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)
	return resp
}

// --- /api/v1/playhead -------------------------------------------------------

func TestPlayhead_Seek(t *testing.T) {
	clk := playback.New(1, 10)
	h := api.New(newGraph(t), clk, nil)

	var resp api.PlayheadResponse
	decode(t, get(t, h, "/api/v1/playhead"), &resp)
	if resp.Frame != 1 {
		t.Errorf("GET frame = %v, want 1", resp.Frame)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/playhead?frame=7", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST status %d, want 200", rr.Code)
	}
	decode(t, rr, &resp)
	if resp.Frame != 7 || clk.Current() != 7 {
		t.Errorf("after seek: response %v, clock %v, want 7", resp.Frame, clk.Current())
	}

	var nr api.NodeResponse
	decode(t, get(t, h, "/api/v1/nodes/path"), &nr)
	if nr.Result.Frame != 7 {
		t.Errorf("node evaluated at %v, want the seeked frame 7", nr.Result.Frame)
	}
}

func TestPlayhead_Errors(t *testing.T) {
	seekable := api.New(newGraph(t), playback.New(1, 10), nil)
	readOnly := newHandler(t, 1)
	cases := []struct {
		h      http.Handler
		method string
		path   string
		code   int
	}{
		{seekable, http.MethodPost, "/api/v1/playhead", http.StatusBadRequest},
		{seekable, http.MethodPost, "/api/v1/playhead?frame=NaN", http.StatusBadRequest},
		{seekable, http.MethodPost, "/api/v1/playhead?frame=1e17", http.StatusBadRequest},
		{seekable, http.MethodDelete, "/api/v1/playhead", http.StatusMethodNotAllowed},
		{readOnly, http.MethodPost, "/api/v1/playhead?frame=3", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		tc.h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != tc.code {
			t.Errorf("%s %s: status %d, want %d", tc.method, tc.path, rr.Code, tc.code)
		}
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	rr := get(t, newHandler(t, 2), "/api/v1/snapshot")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.SnapshotResponse
	decode(t, rr, &resp)
	if resp.Frame != 2 || len(resp.Nodes) != 4 {
		t.Errorf("frame=%v nodes=%d", resp.Frame, len(resp.Nodes))
	}
	if resp.Scene.FPS != 24 || resp.Scene.LinearUnit != "m" || resp.Scene.DistancePerUnit != 1 {
		t.Errorf("scene: %+v", resp.Scene)
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
}

func TestSnapshot_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandler(t, 1).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/snapshot", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}
