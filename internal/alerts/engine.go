package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speedometer/speedometer/internal/compute"
	"github.com/speedometer/speedometer/internal/config"
)

const (
	defaultCooldown   = time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	NodeID     string     `json:"node_id"`
	Severity   string     `json:"severity"`
	Condition  string     `json:"condition"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"` // the field the condition compared
	Unit       string     `json:"unit"`
	Frame      float64    `json:"frame"`
	Speed      float64    `json:"speed"` // in Unit at the firing frame
	SpeedMPS   float64    `json:"speed_mps"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against node results and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:nodeID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client *http.Client
	now    func() time.Time
	wg     sync.WaitGroup // in-flight deliveries
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// SetConfig replaces rules and webhooks, e.g. after a config reload.
// Active alerts for rules that no longer exist are dropped.
func (e *Engine) SetConfig(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks

	keep := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		keep[r.Name] = true
	}
	for k, a := range e.active {
		if !keep[a.RuleName] {
			delete(e.active, k)
		}
	}
}

// EvaluateAll evaluates every result in rs.
func (e *Engine) EvaluateAll(rs []compute.Result) {
	for _, r := range rs {
		e.Evaluate(r)
	}
}

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r compute.Result) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range rules {
		if rule.Node != "" && rule.Node != r.NodeID {
			continue
		}
		key := rule.Name + ":" + r.NodeID
		fires, value := evalCondition(rule.Condition, r)

		e.mu.Lock()
		if fires {
			e.fire(rule, r, key, value, now)
		} else {
			e.resolve(rule, r, key, now)
		}
	}
}

// fire records a firing alert unless it is inside its cooldown. It is called
// with e.mu held and releases it.
func (e *Engine) fire(rule config.AlertRule, r compute.Result, key string, value float64, now time.Time) {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if _, firing := e.active[key]; firing || now.Sub(e.lastFire[key]) <= cooldown {
		e.mu.Unlock()
		return
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        uuid.NewString(),
		RuleName:  rule.Name,
		NodeID:    r.NodeID,
		Severity:  sev,
		Condition: rule.Condition,
		Value:     value,
		Unit:      r.Unit.Label(),
		Frame:     r.Frame,
		Speed:     r.Speed,
		SpeedMPS:  r.SpeedMPS,
		Message: fmt.Sprintf("[%s] %s fired on %s at frame %g: %s (value %.2f %s)",
			sev, rule.Name, r.NodeID, r.Frame, rule.Condition, value, r.Unit.Label()),
		FiredAt: now,
		State:   "firing",
	}
	e.active[key] = a
	e.lastFire[key] = now
	alertCopy := *a
	e.mu.Unlock()

	slog.Warn("alert fired",
		"rule", rule.Name,
		"node", r.NodeID,
		"frame", r.Frame,
		"value", value,
		"severity", sev,
	)
	e.dispatch(&alertCopy)
}

// resolve closes a firing alert. It is called with e.mu held and releases it.
func (e *Engine) resolve(rule config.AlertRule, r compute.Result, key string, now time.Time) {
	a, ok := e.active[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	slog.Info("alert resolved", "rule", rule.Name, "node", r.NodeID, "frame", r.Frame)
	e.dispatch(&alertCopy)
}

func (e *Engine) dispatch(a *Alert) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// Wait blocks until every in-flight webhook delivery has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// FiringCount returns the number of alerts currently firing.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
