package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/speedometer/speedometer/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTimeUnit   = "film"
	DefaultLinearUnit = "cm"
	DefaultStartFrame = 1
	DefaultEndFrame   = 120
	DefaultMode       = "matrix"
	DefaultUnit       = "km/h"
	DefaultHTTPPort   = 8080
	DefaultCacheTTL   = 5 * time.Minute
)

// MaxFrame bounds the magnitude of every scene and key frame.
const MaxFrame = 1e9

// timeUnits maps the host's named time units to frames per second.
var timeUnits = map[string]float64{
	"game":  15,
	"film":  24,
	"pal":   25,
	"ntsc":  30,
	"show":  48,
	"palf":  50,
	"ntscf": 60,
}

// linearUnits maps a working linear unit to how many of it make one metre.
var linearUnits = map[string]float64{
	"mm": 1000,
	"cm": 100,
	"m":  1,
	"km": 0.001,
	"in": 1 / 0.0254,
	"ft": 1 / 0.3048,
	"yd": 1 / 0.9144,
	"mi": 1 / 1609.344,
}

// Config is the top-level scene configuration.
// Fields map 1:1 to speedometer.example.yaml.
type Config struct {
	Scene  Scene        `yaml:"scene"`
	Nodes  []Node       `yaml:"nodes"`
	Server ServerConfig `yaml:"server"`
	Alerts AlertsConfig `yaml:"alerts"`
}

// Scene holds the host environment settings every node derives its
// constants from.
type Scene struct {
	// TimeUnit is a named time unit (film, pal, ntsc …) or "<n>fps".
	// Ignored when FPS is set.
	TimeUnit string `yaml:"time_unit"`

	// FPS overrides TimeUnit with an explicit frame rate.
	FPS float64 `yaml:"fps"`

	// LinearUnit is the scene's working unit: mm|cm|m|km|in|ft|yd|mi.
	LinearUnit string `yaml:"linear_unit"`

	// StartFrame and EndFrame bound playback and batch evaluation.
	StartFrame float64 `yaml:"start_frame"`
	EndFrame   float64 `yaml:"end_frame"`
}

// FrameRate returns the resolved frames per second, or 0 if the time unit
// cannot be resolved.
func (s Scene) FrameRate() float64 {
	if s.FPS > 0 {
		return s.FPS
	}
	fps, err := parseTimeUnit(s.TimeUnit)
	if err != nil {
		return 0
	}
	return fps
}

// FrameDuration returns the number of seconds one frame represents.
func (s Scene) FrameDuration() float64 {
	fps := s.FrameRate()
	if fps <= 0 {
		return 0
	}
	return 1 / fps
}

// DistancePerUnit returns how many working units make one metre.
func (s Scene) DistancePerUnit() float64 {
	return linearUnits[strings.ToLower(s.LinearUnit)]
}

// Node describes one speedometer node and the channels driving it.
type Node struct {
	// ID is a unique, human-readable identifier for this node.
	ID string `yaml:"id"`

	// Enabled is the master switch; absent means enabled.
	Enabled *bool `yaml:"enabled"`

	// Mode selects the driving input: matrix | distance.
	Mode string `yaml:"mode"`

	// Unit is the output unit: km/h | mph | m/s | f/s.
	Unit string `yaml:"unit"`

	// Matrix is the animated world transform. Nil means not connected.
	Matrix *Channel `yaml:"matrix"`

	// Distance is the animated scalar distance. Nil means not connected.
	Distance *Channel `yaml:"distance"`
}

// IsEnabled reports the effective value of the master switch.
func (n Node) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// ParsedMode returns the typed mode. Valid after Load.
func (n Node) ParsedMode() types.Mode {
	m, _ := types.ParseMode(n.Mode)
	return m
}

// ParsedUnit returns the typed unit. Valid after Load.
func (n Node) ParsedUnit() types.Unit {
	u, _ := types.ParseUnit(n.Unit)
	return u
}

// Channel is a keyframed animation curve.
type Channel struct {
	// Interpolation between keys: linear | step. Defaults to linear.
	Interpolation string `yaml:"interpolation"`

	// Infinity controls sampling outside the key range: constant holds the
	// end value, strict fails. Defaults to constant.
	Infinity string `yaml:"infinity"`

	Keys []Key `yaml:"keys"`
}

// Key is one keyframe. Distance channels use Value; matrix channels use
// either Translate (x, y, z) or a full row-major Matrix.
type Key struct {
	Frame     float64   `yaml:"frame"`
	Value     *float64  `yaml:"value"`
	Translate []float64 `yaml:"translate"`
	Matrix    []float64 `yaml:"matrix"`
}

// ServerConfig holds the HTTP and cache settings used in serve mode.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket stream and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// CacheTTL is how long sampled frames are reused before being resampled.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Auth protects the REST API and /metrics. The WebSocket stream is open.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication in serve mode.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "X-API-Key".
	Header string `yaml:"header"`
}

// Key returns the API key from the configured environment variable.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-API-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

// AlertsConfig holds speed alert rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Node restricts the rule to one node id. Empty applies it to every node.
	Node string `yaml:"node"`

	// Condition is a simple expression: "speed > 120", "speed_mps >= 40",
	// "displacement > 50", "state == error".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyNodeDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Scene: Scene{
			TimeUnit:   DefaultTimeUnit,
			LinearUnit: DefaultLinearUnit,
			StartFrame: DefaultStartFrame,
			EndFrame:   DefaultEndFrame,
		},
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			CacheTTL: DefaultCacheTTL,
		},
	}
}

func applyNodeDefaults(cfg *Config) {
	for i := range cfg.Nodes {
		n := &cfg.Nodes[i]
		if n.Mode == "" {
			n.Mode = DefaultMode
		}
		if n.Unit == "" {
			n.Unit = DefaultUnit
		}
		for _, ch := range []*Channel{n.Matrix, n.Distance} {
			if ch == nil {
				continue
			}
			if ch.Interpolation == "" {
				ch.Interpolation = "linear"
			}
			if ch.Infinity == "" {
				ch.Infinity = "constant"
			}
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if err := validateScene(cfg.Scene); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: id is required", i)
		}
		if seen[n.ID] {
			return fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID)
		}
		seen[n.ID] = true

		if _, err := types.ParseMode(n.Mode); err != nil {
			return fmt.Errorf("nodes[%d] %q: %w", i, n.ID, err)
		}
		if _, err := types.ParseUnit(n.Unit); err != nil {
			return fmt.Errorf("nodes[%d] %q: %w", i, n.ID, err)
		}
		if n.Matrix != nil {
			if err := validateChannel(n.Matrix, types.ModeMatrix); err != nil {
				return fmt.Errorf("nodes[%d] %q: matrix: %w", i, n.ID, err)
			}
		}
		if n.Distance != nil {
			if err := validateChannel(n.Distance, types.ModeDistance); err != nil {
				return fmt.Errorf("nodes[%d] %q: distance: %w", i, n.ID, err)
			}
		}
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	if cfg.Server.CacheTTL <= 0 {
		return fmt.Errorf("server.cache_ttl must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}

	return validateAlerts(cfg.Alerts, seen)
}

func validateScene(s Scene) error {
	if s.FPS < 0 || math.IsNaN(s.FPS) || math.IsInf(s.FPS, 0) {
		return fmt.Errorf("scene.fps must be positive, got %v", s.FPS)
	}
	if s.FPS == 0 {
		if _, err := parseTimeUnit(s.TimeUnit); err != nil {
			return fmt.Errorf("scene.time_unit: %w", err)
		}
	}
	if _, ok := linearUnits[strings.ToLower(s.LinearUnit)]; !ok {
		return fmt.Errorf("scene.linear_unit: unknown unit %q", s.LinearUnit)
	}
	if err := checkFrame(s.StartFrame); err != nil {
		return fmt.Errorf("scene.start_frame: %w", err)
	}
	if err := checkFrame(s.EndFrame); err != nil {
		return fmt.Errorf("scene.end_frame: %w", err)
	}
	if s.EndFrame < s.StartFrame {
		return fmt.Errorf("scene.end_frame %v is before start_frame %v", s.EndFrame, s.StartFrame)
	}
	return nil
}

func validateChannel(ch *Channel, mode types.Mode) error {
	switch ch.Interpolation {
	case "linear", "step":
	default:
		return fmt.Errorf("unknown interpolation %q", ch.Interpolation)
	}
	switch ch.Infinity {
	case "constant", "strict":
	default:
		return fmt.Errorf("unknown infinity %q", ch.Infinity)
	}
	if len(ch.Keys) == 0 {
		return fmt.Errorf("at least one key is required")
	}

	frames := make(map[float64]bool, len(ch.Keys))
	for i, k := range ch.Keys {
		if err := checkFrame(k.Frame); err != nil {
			return fmt.Errorf("keys[%d]: %w", i, err)
		}
		if frames[k.Frame] {
			return fmt.Errorf("keys[%d]: duplicate frame %v", i, k.Frame)
		}
		frames[k.Frame] = true

		switch mode {
		case types.ModeDistance:
			if k.Value == nil {
				return fmt.Errorf("keys[%d]: value is required", i)
			}
			if !finite(*k.Value) {
				return fmt.Errorf("keys[%d]: value must be finite, got %v", i, *k.Value)
			}
		case types.ModeMatrix:
			hasT, hasM := len(k.Translate) > 0, len(k.Matrix) > 0
			switch {
			case hasT == hasM:
				return fmt.Errorf("keys[%d]: exactly one of translate or matrix is required", i)
			case hasT && len(k.Translate) != 3:
				return fmt.Errorf("keys[%d]: translate needs 3 values, got %d", i, len(k.Translate))
			case hasM && len(k.Matrix) != 16:
				return fmt.Errorf("keys[%d]: matrix needs 16 values, got %d", i, len(k.Matrix))
			}
			vals := k.Translate
			if hasM {
				vals = k.Matrix
			}
			for _, v := range vals {
				if !finite(v) {
					return fmt.Errorf("keys[%d]: transform values must be finite, got %v", i, v)
				}
			}
		}
	}
	return nil
}

// checkFrame rejects frames that are non-finite or too large to step through
// one whole frame at a time.
func checkFrame(f float64) error {
	if !finite(f) || math.Abs(f) > MaxFrame {
		return fmt.Errorf("frame %v must be finite and within ±%g", f, MaxFrame)
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func validateAlerts(a AlertsConfig, nodes map[string]bool) error {
	for i, r := range a.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Node != "" && !nodes[r.Node] {
			return fmt.Errorf("alerts.rules[%d] %q: unknown node %q", i, r.Name, r.Node)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range a.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

// parseTimeUnit resolves a named time unit or an "<n>fps" string.
func parseTimeUnit(s string) (float64, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if fps, ok := timeUnits[name]; ok {
		return fps, nil
	}
	if num, ok := strings.CutSuffix(name, "fps"); ok {
		fps, err := strconv.ParseFloat(num, 64)
		if err == nil && fps > 0 {
			return fps, nil
		}
	}
	return 0, fmt.Errorf("unknown time unit %q", s)
}
