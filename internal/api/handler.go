package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/speedometer/speedometer/internal/alerts"
	"github.com/speedometer/speedometer/internal/compute"
	"github.com/speedometer/speedometer/internal/config"
	"github.com/speedometer/speedometer/internal/node"
)

// Playhead reports the current playback frame.
type Playhead interface {
	Current() float64
}

// Seeker is a Playhead that can also be moved. POST /api/v1/playhead is only
// accepted when the handler's clock implements it.
type Seeker interface {
	Playhead
	Seek(frame float64)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It evaluates the node graph on demand and returns JSON responses.
type Handler struct {
	graph  *node.Graph
	clock  Playhead
	alerts *alerts.Engine
	mux    *http.ServeMux
}

// New creates a Handler wired to the node graph, the playback clock and the
// alert engine, and registers all routes. ae may be nil.
func New(g *node.Graph, clk Playhead, ae *alerts.Engine) http.Handler {
	h := &Handler{graph: g, clock: clk, alerts: ae, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/nodes", h.listNodes)
	h.mux.HandleFunc("/api/v1/nodes/", h.getNode) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/playhead", h.playhead)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: per-state counts at the playhead.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	frame := h.clock.Current()
	results := h.graph.Evaluate(frame)
	resp := HealthResponse{Frame: frame, NodeCount: len(results)}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.FiringCount()
	}
	if st, ok := h.graph.CacheStats(); ok {
		resp.Cache = &CacheResponse{Entries: st.Entries, Hits: st.Hits, Misses: st.Misses}
	}

	for _, res := range results {
		switch res.State {
		case compute.StateOK:
			resp.OKCount++
		case compute.StateDisabled:
			resp.DisabledCount++
		case compute.StateNoSource:
			resp.NoSourceCount++
		case compute.StateError:
			resp.ErrorCount++
		}
	}

	switch {
	case len(results) == 0:
		resp.State = "unknown"
	case resp.ErrorCount > 0:
		resp.State = "degraded"
	default:
		resp.State = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listNodes returns GET /api/v1/nodes: every node's summary.
func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	nodes := h.graph.Nodes()
	out := make([]node.Info, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Info())
	}
	jsonResp(w, http.StatusOK, out)
}

// getNode serves GET /api/v1/nodes/{id} and GET /api/v1/nodes/{id}/series.
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/nodes/")
	if rest == "" {
		h.listNodes(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/series"); ok {
		h.series(w, r, id)
		return
	}

	frame, err := frameParam(r, "frame", h.clock.Current())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	n, ok := h.graph.Node(rest)
	if !ok {
		jsonErr(w, http.StatusNotFound, "node not found")
		return
	}
	res, err := h.graph.EvaluateNode(rest, frame)
	if err != nil { // removed by a concurrent reload
		jsonErr(w, http.StatusNotFound, "node not found")
		return
	}
	info := n.Info()
	jsonResp(w, http.StatusOK, NodeResponse{
		Node:        info,
		Result:      NewResultResponse(res),
		Diagnostics: computeDiagnostics(info, res),
	})
}

// series returns GET /api/v1/nodes/{id}/series, defaulting to the scene range.
func (h *Handler) series(w http.ResponseWriter, r *http.Request, id string) {
	scene := h.graph.Scene()
	start, err := frameParam(r, "start", scene.StartFrame)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := frameParam(r, "end", scene.EndFrame)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.graph.Series(id, start, end)
	switch {
	case errors.Is(err, node.ErrUnknownNode):
		jsonErr(w, http.StatusNotFound, "node not found")
		return
	case err != nil:
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	out := make([]ResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, NewResultResponse(res))
	}
	jsonResp(w, http.StatusOK, SeriesResponse{NodeID: id, Start: start, End: end, Results: out})
}

// playhead serves GET /api/v1/playhead and POST /api/v1/playhead?frame=N.
func (h *Handler) playhead(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		sk, ok := h.clock.(Seeker)
		if !ok {
			jsonErr(w, http.StatusMethodNotAllowed, "playhead is read-only")
			return
		}
		if r.URL.Query().Get("frame") == "" {
			jsonErr(w, http.StatusBadRequest, "frame is required")
			return
		}
		frame, err := frameParam(r, "frame", 0)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		sk.Seek(frame)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, PlayheadResponse{Frame: h.clock.Current()})
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: every node at the playhead.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.graph, h.clock.Current()))
}

// BuildSnapshot evaluates every node of g at frame.
// It is used by the snapshot endpoint and the WebSocket hub.
func BuildSnapshot(g *node.Graph, frame float64) SnapshotResponse {
	return SnapshotFromResults(g, frame, g.Evaluate(frame))
}

// SnapshotFromResults wraps results already evaluated at frame.
func SnapshotFromResults(g *node.Graph, frame float64, results []compute.Result) SnapshotResponse {
	scene := g.Scene()
	nodes := make([]ResultResponse, 0, len(results))
	for _, res := range results {
		nodes = append(nodes, NewResultResponse(res))
	}
	return SnapshotResponse{
		Frame: frame,
		Scene: SceneResponse{
			FPS:             scene.FrameRate(),
			FrameDuration:   scene.FrameDuration(),
			LinearUnit:      scene.LinearUnit,
			DistancePerUnit: scene.DistancePerUnit(),
			StartFrame:      scene.StartFrame,
			EndFrame:        scene.EndFrame,
		},
		Nodes:       nodes,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// frameParam parses a finite frame number from the query, returning def when
// the parameter is absent.
func frameParam(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > config.MaxFrame {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return f, nil
}

// NewResultResponse maps a compute.Result to its JSON representation.
func NewResultResponse(r compute.Result) ResultResponse {
	return ResultResponse{
		NodeID:       r.NodeID,
		Frame:        r.Frame,
		Mode:         r.Mode.String(),
		Unit:         r.Unit.Label(),
		Speed:        r.Speed,
		SpeedMPS:     r.SpeedMPS,
		Displacement: r.Displacement,
		State:        r.State,
		ErrorMessage: r.ErrorMessage,
		EvaluatedAt:  r.EvaluatedAt.UTC().Format(time.RFC3339),
	}
}
