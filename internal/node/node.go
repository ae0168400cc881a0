package node

import (
	"log/slog"
	"time"

	"github.com/speedometer/speedometer/internal/cache"
	"github.com/speedometer/speedometer/internal/compute"
	"github.com/speedometer/speedometer/internal/config"
	"github.com/speedometer/speedometer/internal/timeline"
	"github.com/speedometer/speedometer/pkg/types"
)

// Node is one speedometer bound to its inputs. It is immutable after New.
type Node struct {
	id       string
	base     compute.Params // every field except Frame and Connected
	matrix   timeline.Source
	distance timeline.Source
}

// Info is a read-only summary of a Node for listings.
type Info struct {
	ID                string  `json:"id"`
	Enabled           bool    `json:"enabled"`
	Mode              string  `json:"mode"`
	Unit              string  `json:"unit"`
	Connected         bool    `json:"connected"`
	MatrixConnected   bool    `json:"matrix_connected"`
	DistanceConnected bool    `json:"distance_connected"`
	FrameDuration     float64 `json:"frame_duration"`
	DistancePerUnit   float64 `json:"distance_per_unit"`
	FirstKey          float64 `json:"first_key,omitempty"`
	LastKey           float64 `json:"last_key,omitempty"`
	ConfigError       string  `json:"config_error,omitempty"`
}

// New builds a Node from its configuration. Samples are read through st when
// it is non-nil.
func New(scene config.Scene, cfg config.Node, st *cache.Store) (*Node, error) {
	return build(scene, cfg, st, "")
}

// build is New with cache keys namespaced by prefix.
func build(scene config.Scene, cfg config.Node, st *cache.Store, prefix string) (*Node, error) {
	n := &Node{
		id: cfg.ID,
		base: compute.Params{
			Enabled:         cfg.IsEnabled(),
			Mode:            cfg.ParsedMode(),
			Unit:            cfg.ParsedUnit(),
			FrameDuration:   scene.FrameDuration(),
			DistancePerUnit: scene.DistancePerUnit(),
		},
	}

	if cfg.Matrix != nil {
		src, err := timeline.New(cfg.ID+"/matrix", cfg.Matrix, types.ModeMatrix)
		if err != nil {
			return nil, err
		}
		n.matrix = st.Wrap(prefix+cfg.ID+"/matrix", src)
	}
	if cfg.Distance != nil {
		src, err := timeline.New(cfg.ID+"/distance", cfg.Distance, types.ModeDistance)
		if err != nil {
			return nil, err
		}
		n.distance = st.Wrap(prefix+cfg.ID+"/distance", src)
	}
	if err := compute.Validate(n.base); err != nil {
		slog.Warn("node: invalid settings, evaluations will fail", "node", cfg.ID, "err", err)
	}
	return n, nil
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// Source returns the input selected by the node's mode, or nil when that
// input is not connected.
func (n *Node) Source() timeline.Source {
	if n.base.Mode == types.ModeDistance {
		return n.distance
	}
	return n.matrix
}

// Connected reports whether the input selected by the node's mode has a driver.
func (n *Node) Connected() bool {
	return n.Source() != nil
}

// Params returns the evaluation parameters for frame.
func (n *Node) Params(frame float64) compute.Params {
	p := n.base
	p.Frame = frame
	p.Connected = n.Connected()
	return p
}

// Evaluate computes the node's speed at frame. Failures are reported in the
// Result with StateError rather than as a Go error.
func (n *Node) Evaluate(frame float64, now time.Time) compute.Result {
	p := n.Params(frame)

	var sample compute.SampleFunc
	if src := n.Source(); src != nil {
		sample = src.Sample
	}

	out, err := compute.Compute(p, sample)
	if err != nil {
		slog.Warn("node: evaluation failed", "node", n.id, "frame", frame, "err", err)
	}
	return compute.NewResult(n.id, p, out, err, now)
}

// Info returns a summary of the node.
func (n *Node) Info() Info {
	info := Info{
		ID:                n.id,
		Enabled:           n.base.Enabled,
		Mode:              n.base.Mode.String(),
		Unit:              n.base.Unit.Label(),
		Connected:         n.Connected(),
		MatrixConnected:   n.matrix != nil,
		DistanceConnected: n.distance != nil,
		FrameDuration:     n.base.FrameDuration,
		DistancePerUnit:   n.base.DistancePerUnit,
	}
	if src := n.Source(); src != nil {
		info.FirstKey, info.LastKey = src.Range()
	}
	if err := compute.Validate(n.base); err != nil {
		info.ConfigError = err.Error()
	}
	return info
}
