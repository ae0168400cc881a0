package api

import "github.com/speedometer/speedometer/internal/node"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string  `json:"state"` // ok | degraded | unknown
	Frame         float64 `json:"frame"`
	NodeCount     int     `json:"node_count"`
	OKCount       int     `json:"ok_count"`
	DisabledCount int     `json:"disabled_count"`
	NoSourceCount int     `json:"no_source_count"`
	ErrorCount    int     `json:"error_count"`
	AlertCount    int     `json:"alert_count"`

	Cache *CacheResponse `json:"cache,omitempty"` // absent when caching is off
}

// CacheResponse reports the sample cache counters.
type CacheResponse struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// PlayheadResponse is the payload for /api/v1/playhead.
type PlayheadResponse struct {
	Frame float64 `json:"frame"`
}

// ResultResponse is one node evaluated at one frame.
type ResultResponse struct {
	NodeID       string  `json:"node_id"`
	Frame        float64 `json:"frame"`
	Mode         string  `json:"mode"`
	Unit         string  `json:"unit"`
	Speed        float64 `json:"speed"`
	SpeedMPS     float64 `json:"speed_mps"`
	Displacement float64 `json:"displacement"`
	State        string  `json:"state"`
	ErrorMessage string  `json:"error_message,omitempty"`
	EvaluatedAt  string  `json:"evaluated_at"` // RFC3339
}

// NodeResponse is the payload for GET /api/v1/nodes/{id}.
type NodeResponse struct {
	Node        node.Info        `json:"node"`
	Result      ResultResponse   `json:"result"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// SeriesResponse is the payload for GET /api/v1/nodes/{id}/series.
type SeriesResponse struct {
	NodeID  string           `json:"node_id"`
	Start   float64          `json:"start"`
	End     float64          `json:"end"`
	Results []ResultResponse `json:"results"`
}

// SceneResponse describes the scene timing and units.
type SceneResponse struct {
	FPS             float64 `json:"fps"`
	FrameDuration   float64 `json:"frame_duration"`
	LinearUnit      string  `json:"linear_unit"`
	DistancePerUnit float64 `json:"distance_per_unit"`
	StartFrame      float64 `json:"start_frame"`
	EndFrame        float64 `json:"end_frame"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket frame event.
type SnapshotResponse struct {
	Frame       float64          `json:"frame"`
	Scene       SceneResponse    `json:"scene"`
	Nodes       []ResultResponse `json:"nodes"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
