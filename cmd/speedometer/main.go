// Command speedometer evaluates speedometer nodes over a keyframed scene.
//
// Batch mode (default) prints one JSON result per node per frame to stdout.
// Serve mode (-serve) plays the scene back in real time and exposes the REST
// API, the WebSocket stream and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedometer/speedometer/internal/alerts"
	"github.com/speedometer/speedometer/internal/api"
	"github.com/speedometer/speedometer/internal/auth"
	"github.com/speedometer/speedometer/internal/cache"
	"github.com/speedometer/speedometer/internal/config"
	"github.com/speedometer/speedometer/internal/exporter"
	"github.com/speedometer/speedometer/internal/node"
	"github.com/speedometer/speedometer/internal/playback"
	"github.com/speedometer/speedometer/internal/ws"
)

func main() {
	configPath := flag.String("config", "speedometer.yaml", "path to config file")
	serve := flag.Bool("serve", false, "run the playback server instead of printing results")
	start := flag.Float64("start", 0, "first frame to evaluate (default scene.start_frame)")
	end := flag.Float64("end", 0, "last frame to evaluate (default scene.end_frame)")
	only := flag.String("node", "", "evaluate only this node id")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// stdout carries batch results, so logs always go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"config", *configPath,
		"nodes", len(cfg.Nodes),
		"fps", cfg.Scene.FrameRate(),
		"linear_unit", cfg.Scene.LinearUnit,
	)

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["start"] {
		*start = cfg.Scene.StartFrame
	}
	if !set["end"] {
		*end = cfg.Scene.EndFrame
	}

	if *serve {
		if err := runServer(*configPath, cfg); err != nil {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
		return
	}

	g, err := node.NewGraph(cfg, nil)
	if err != nil {
		slog.Error("failed to build node graph", "err", err)
		os.Exit(1)
	}
	if err := runBatch(os.Stdout, g, *start, *end, *only); err != nil {
		slog.Error("batch evaluation failed", "err", err)
		os.Exit(1)
	}
}

// parseLevel maps a -log-level value to a slog.Level.
func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid -log-level %q: %w", s, err)
	}
	return l, nil
}

// runBatch writes every node (or just only) at each frame in [start, end] as
// JSON lines.
func runBatch(w io.Writer, g *node.Graph, start, end float64, only string) error {
	ids := make([]string, 0)
	if only != "" {
		if _, ok := g.Node(only); !ok {
			return fmt.Errorf("%w: %q", node.ErrUnknownNode, only)
		}
		ids = append(ids, only)
	} else {
		for _, n := range g.Nodes() {
			ids = append(ids, n.ID())
		}
	}

	series := make([][]api.ResultResponse, 0, len(ids))
	for _, id := range ids {
		results, err := g.Series(id, start, end)
		if err != nil {
			return err
		}
		rs := make([]api.ResultResponse, 0, len(results))
		for _, r := range results {
			rs = append(rs, api.NewResultResponse(r))
		}
		series = append(series, rs)
	}

	enc := json.NewEncoder(w)
	if len(series) == 0 {
		return nil
	}
	for i := range series[0] {
		for _, rs := range series {
			if err := enc.Encode(rs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// runServer plays the scene back and serves HTTP until SIGINT or SIGTERM.
func runServer(configPath string, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Sample cache with background TTL eviction.
	st := cache.New(cfg.Server.CacheTTL)
	go st.Run(ctx)

	graph, err := node.NewGraph(cfg, st)
	if err != nil {
		return err
	}

	clk := playback.New(cfg.Scene.StartFrame, cfg.Scene.EndFrame)
	alertEngine := alerts.New(cfg.Alerts)

	hub := ws.New(graph, clk)
	go hub.Run(ctx)

	// Playback loop: evaluate every node on each tick, then alert and stream.
	go clk.Run(ctx, playback.Interval(cfg.Scene.FrameDuration()), func(frame float64) {
		results := graph.Evaluate(frame)
		alertEngine.EvaluateAll(results)
		hub.Publish(frame, results)
	})

	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			if err := graph.Reload(updated); err != nil {
				slog.Error("graph reload failed, keeping previous nodes", "err", err)
				return
			}
			clk.SetRange(updated.Scene.StartFrame, updated.Scene.EndFrame)
			clk.SetInterval(playback.Interval(updated.Scene.FrameDuration()))
			alertEngine.SetConfig(updated.Alerts)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	a := cfg.Server.Auth
	protect := func(h http.Handler) http.Handler {
		return auth.APIKey(a.Mode, a.EffectiveHeader(), a.Key(), h)
	}
	if a.Mode == "apikey" && a.Key() == "" {
		slog.Warn("auth mode is apikey but no key is set; API is open", "key_env", a.KeyEnv)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", protect(api.New(graph, clk, alertEngine)))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", protect(exporter.Handler(graph, clk)))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("speedometer shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	err = httpSrv.Shutdown(shutdownCtx)
	alertEngine.Wait()
	return err
}
