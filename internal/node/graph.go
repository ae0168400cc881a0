package node

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/speedometer/speedometer/internal/cache"
	"github.com/speedometer/speedometer/internal/compute"
	"github.com/speedometer/speedometer/internal/config"
)

// maxSeriesFrames bounds a single Series request.
const maxSeriesFrames = 100_000

// ErrUnknownNode is returned for lookups of an id not in the graph.
var ErrUnknownNode = errors.New("node: unknown node")

// ErrBadRange is returned for an inverted or oversized Series range.
var ErrBadRange = errors.New("node: invalid frame range")

// Graph is the set of nodes of one scene.
//
// All exported methods are safe for concurrent use.
type Graph struct {
	reload sync.Mutex // serialises Reload

	mu    sync.RWMutex
	scene config.Scene
	nodes map[string]*Node
	order []string // sorted ids
	gen   uint64   // bumped on every Reload; namespaces cache keys

	cache *cache.Store
	now   func() time.Time // injectable for deterministic tests
}

// NewGraph builds every node in cfg. st may be nil to disable caching.
func NewGraph(cfg *config.Config, st *cache.Store) (*Graph, error) {
	g := &Graph{cache: st, now: time.Now}
	if err := g.Reload(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload rebuilds the graph from cfg. On error the previous nodes stay active.
// Samples cached by the previous nodes are never visible to the new ones.
func (g *Graph) Reload(cfg *config.Config) error {
	g.reload.Lock()
	defer g.reload.Unlock()

	g.mu.RLock()
	gen := g.gen + 1
	g.mu.RUnlock()
	prefix := fmt.Sprintf("g%d/", gen)

	nodes := make(map[string]*Node, len(cfg.Nodes))
	order := make([]string, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		n, err := build(cfg.Scene, nc, g.cache, prefix)
		if err != nil {
			return fmt.Errorf("node %q: %w", nc.ID, err)
		}
		nodes[nc.ID] = n
		order = append(order, nc.ID)
	}
	sort.Strings(order)

	g.mu.Lock()
	g.scene = cfg.Scene
	g.nodes = nodes
	g.order = order
	g.gen = gen
	g.mu.Unlock()

	if g.cache != nil {
		g.cache.Reset()
	}
	slog.Info("node: graph built", "nodes", len(order),
		"fps", cfg.Scene.FrameRate(), "linear_unit", cfg.Scene.LinearUnit)
	return nil
}

// Scene returns the scene settings the graph was built from.
func (g *Graph) Scene() config.Scene {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scene
}

// CacheStats reports the sample cache counters. ok is false when the graph
// runs uncached.
func (g *Graph) CacheStats() (stats cache.Stats, ok bool) {
	if g.cache == nil {
		return cache.Stats{}, false
	}
	return g.cache.Stats(), true
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node sorted by id.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Evaluate computes every node at frame, sorted by node id.
func (g *Graph) Evaluate(frame float64) []compute.Result {
	nodes := g.Nodes()
	now := g.now()
	out := make([]compute.Result, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Evaluate(frame, now))
	}
	return out
}

// EvaluateNode computes a single node at frame.
func (g *Graph) EvaluateNode(id string, frame float64) (compute.Result, error) {
	n, ok := g.Node(id)
	if !ok {
		return compute.Result{}, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	return n.Evaluate(frame, g.now()), nil
}

// Series evaluates node id at every whole frame step from start to end
// inclusive.
func (g *Graph) Series(id string, start, end float64) ([]compute.Result, error) {
	if !finite(start) || !finite(end) || end < start || end-start >= maxSeriesFrames {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrBadRange, start, end)
	}
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}

	now := g.now()
	// Step by index: past 2^53 f+1 == f and a float counter never advances.
	count := int(math.Floor(end-start)) + 1
	out := make([]compute.Result, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.Evaluate(start+float64(i), now))
	}
	return out, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
