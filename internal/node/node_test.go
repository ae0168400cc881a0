package node

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/speedometer/speedometer/internal/cache"
	"github.com/speedometer/speedometer/internal/compute"
	"github.com/speedometer/speedometer/internal/config"
)

const sceneYAML = `
scene:
  fps: 24
  linear_unit: m
  start_frame: 1
  end_frame: 10
nodes:
  - id: path
    mode: distance
    unit: km/h
    distance:
      infinity: strict
      keys:
        - {frame: 1, value: 0}
        - {frame: 9, value: 4}
        - {frame: 10, value: 10}
  - id: car
    mode: matrix
    unit: m/s
    matrix:
      keys:
        - {frame: 1, translate: [3, 4, 0]}
        - {frame: 2, translate: [0, 0, 0]}
  - id: idle
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
`

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func mustConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg
}

func newGraph(t *testing.T, st *cache.Store) *Graph {
	t.Helper()
	g, err := NewGraph(mustConfig(t, sceneYAML), st)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func TestNode_DistanceScenario(t *testing.T) {
	g := newGraph(t, nil)

	r, err := g.EvaluateNode("path", 10)
	if err != nil {
		t.Fatal(err)
	}
	if r.State != compute.StateOK {
		t.Fatalf("State = %q (%s), want ok", r.State, r.ErrorMessage)
	}
	// 6 m in 1/24 s = 144 m/s = 518.4 km/h
	if !almostEqual(r.Speed, 518.4, 1e-9) {
		t.Errorf("Speed = %v, want 518.4", r.Speed)
	}
	if !almostEqual(r.SpeedMPS, 144, 1e-9) {
		t.Errorf("SpeedMPS = %v, want 144", r.SpeedMPS)
	}
	if r.Displacement != 6 {
		t.Errorf("Displacement = %v, want 6", r.Displacement)
	}
}

func TestNode_MatrixScenario(t *testing.T) {
	g := newGraph(t, nil)

	r, err := g.EvaluateNode("car", 2)
	if err != nil {
		t.Fatal(err)
	}
	// 5 m per frame at 24 fps
	if r.State != compute.StateOK || !almostEqual(r.Speed, 120, 1e-9) {
		t.Errorf("Result = %+v, want ok at 120 m/s", r)
	}
}

func TestNode_ZeroStates(t *testing.T) {
	g := newGraph(t, nil)

	idle, _ := g.EvaluateNode("idle", 5)
	if idle.State != compute.StateNoSource || idle.Speed != 0 {
		t.Errorf("idle = %+v, want no_source zero", idle)
	}
	off, _ := g.EvaluateNode("off", 5)
	if off.State != compute.StateDisabled || off.Speed != 0 {
		t.Errorf("off = %+v, want disabled zero", off)
	}
}

func TestNode_StrictRangeSurfacesError(t *testing.T) {
	g := newGraph(t, nil)

	// Frame 1 needs frame 0, which is before the first key.
	r, err := g.EvaluateNode("path", 1)
	if err != nil {
		t.Fatal(err)
	}
	if r.State != compute.StateError {
		t.Fatalf("State = %q, want error", r.State)
	}
	if !errors.Is(r.Err, compute.ErrSampling) {
		t.Errorf("Err = %v, want ErrSampling", r.Err)
	}
	if r.Speed != 0 {
		t.Errorf("Speed = %v alongside an error", r.Speed)
	}
}

func TestNode_Info(t *testing.T) {
	g := newGraph(t, nil)

	n, ok := g.Node("path")
	if !ok {
		t.Fatal("path not found")
	}
	info := n.Info()
	if info.Mode != "distance" || info.Unit != "km/h" || !info.Connected || info.MatrixConnected {
		t.Errorf("Info = %+v", info)
	}
	if info.FirstKey != 1 || info.LastKey != 10 {
		t.Errorf("key range = %v–%v, want 1–10", info.FirstKey, info.LastKey)
	}
	if !almostEqual(info.FrameDuration, 1.0/24, 1e-15) || info.DistancePerUnit != 1 {
		t.Errorf("constants = %v / %v", info.FrameDuration, info.DistancePerUnit)
	}

	if info.ConfigError != "" {
		t.Errorf("ConfigError = %q, want empty", info.ConfigError)
	}

	idle, _ := g.Node("idle")
	if idle.Connected() {
		t.Error("idle: distance mode with only a matrix channel should be unconnected")
	}
}

func TestNode_InfoReportsInvalidSettings(t *testing.T) {
	scene := config.Scene{TimeUnit: "bogus", LinearUnit: "m"} // no resolvable frame rate
	cfg := mustConfig(t, sceneYAML).Nodes[0]

	n, err := New(scene, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	info := n.Info()
	if !strings.Contains(info.ConfigError, "frame duration") {
		t.Errorf("ConfigError = %q, want a frame duration complaint", info.ConfigError)
	}
	if r := n.Evaluate(2, time.Now()); !errors.Is(r.Err, compute.ErrConfiguration) {
		t.Errorf("Evaluate error = %v, want ErrConfiguration", r.Err)
	}
}

func TestGraph_EvaluateSorted(t *testing.T) {
	g := newGraph(t, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	results := g.Evaluate(5)
	want := []string{"car", "idle", "off", "path"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, id := range want {
		if results[i].NodeID != id {
			t.Errorf("results[%d] = %q, want %q", i, results[i].NodeID, id)
		}
		if results[i].Frame != 5 || !results[i].EvaluatedAt.Equal(fixed) {
			t.Errorf("results[%d] frame/time = %v/%v", i, results[i].Frame, results[i].EvaluatedAt)
		}
	}
}

func TestGraph_Series(t *testing.T) {
	g := newGraph(t, nil)

	series, err := g.Series("path", 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 9 {
		t.Fatalf("len = %d, want 9", len(series))
	}
	// Frames 2..9 move 0.5 m/frame = 12 m/s = 43.2 km/h.
	for _, r := range series[:8] {
		if !almostEqual(r.Speed, 43.2, 1e-9) {
			t.Errorf("frame %v speed = %v, want 43.2", r.Frame, r.Speed)
		}
	}
	if !almostEqual(series[8].Speed, 518.4, 1e-9) {
		t.Errorf("frame 10 speed = %v, want 518.4", series[8].Speed)
	}
}

func TestGraph_Errors(t *testing.T) {
	g := newGraph(t, nil)

	if _, err := g.EvaluateNode("ghost", 1); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("EvaluateNode(ghost) error = %v", err)
	}
	if _, err := g.Series("ghost", 1, 2); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Series(ghost) error = %v", err)
	}
	if _, err := g.Series("path", 10, 1); !errors.Is(err, ErrBadRange) {
		t.Errorf("Series(inverted) error = %v", err)
	}
	if _, err := g.Series("path", 0, 1e9); !errors.Is(err, ErrBadRange) {
		t.Errorf("Series(huge) error = %v", err)
	}
	for _, r := range [][2]float64{
		{math.NaN(), 1},
		{1, math.NaN()},
		{math.Inf(-1), 1},
		{1, math.Inf(1)},
	} {
		if _, err := g.Series("path", r[0], r[1]); !errors.Is(err, ErrBadRange) {
			t.Errorf("Series(%v, %v) error = %v", r[0], r[1], err)
		}
	}
}

func TestGraph_SeriesBeyondFloatPrecision(t *testing.T) {
	g := newGraph(t, nil)

	// f+1 == f at this magnitude; the series must still terminate.
	series, err := g.Series("path", 1e17, 1e17)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 || series[0].Frame != 1e17 {
		t.Fatalf("got %d results, want one at frame 1e17", len(series))
	}

	series, err = g.Series("path", 1e17, 1e17+64)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 65 {
		t.Errorf("len = %d, want 65", len(series))
	}
}

func TestGraph_SeriesFractionalStart(t *testing.T) {
	g := newGraph(t, nil)

	series, err := g.Series("path", 2.5, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 || series[0].Frame != 2.5 || series[1].Frame != 3.5 {
		t.Errorf("got %+v, want frames 2.5 and 3.5", series)
	}
}

func TestGraph_ReloadSwapsNodesAndResetsCache(t *testing.T) {
	st := cache.New(time.Minute)
	g := newGraph(t, st)

	g.Evaluate(5)
	if st.Stats().Entries == 0 {
		t.Fatal("expected cached samples after Evaluate")
	}

	next := mustConfig(t, `
scene:
  fps: 30
nodes:
  - id: solo
    mode: distance
    unit: m/s
    distance:
      keys:
        - {frame: 0, value: 0}
        - {frame: 30, value: 300}
`)
	if err := g.Reload(next); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if st.Stats().Entries != 0 {
		t.Errorf("cache Count after Reload = %d, want 0", st.Stats().Entries)
	}
	if _, ok := g.Node("path"); ok {
		t.Error("old node still present after Reload")
	}
	r, err := g.EvaluateNode("solo", 15)
	if err != nil {
		t.Fatal(err)
	}
	// 10 cm per frame at 30 fps (default linear unit cm) = 3 m/s
	if !almostEqual(r.Speed, 3, 1e-9) {
		t.Errorf("solo speed = %v, want 3", r.Speed)
	}
	if g.Scene().FrameRate() != 30 {
		t.Errorf("Scene().FrameRate() = %v, want 30", g.Scene().FrameRate())
	}
}

func TestGraph_CacheReusesSamples(t *testing.T) {
	st := cache.New(time.Minute)
	g := newGraph(t, st)

	for f := 2.0; f <= 5; f++ {
		if r, _ := g.EvaluateNode("car", f); r.State != compute.StateOK {
			t.Fatalf("frame %v: %+v", f, r)
		}
	}
	if hits := st.Stats().Hits; hits != 3 {
		t.Errorf("cache hits = %d, want 3", hits)
	}
	stats, ok := g.CacheStats()
	if !ok || stats.Hits != 3 {
		t.Errorf("CacheStats() = %+v, %v", stats, ok)
	}
	if _, ok := newGraph(t, nil).CacheStats(); ok {
		t.Error("CacheStats() ok without a cache")
	}
}
