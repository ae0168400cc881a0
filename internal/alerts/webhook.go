package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// severityStyle is how a severity is rendered in chat payloads.
type severityStyle struct {
	label string
	color string // Teams themeColor
}

var severityStyles = map[string]severityStyle{
	"critical": {"CRITICAL", "D7263D"},
	"warning":  {"WARNING", "F49D37"},
	"info":     {"INFO", "3F88C5"},
}

func styleFor(severity string) severityStyle {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return severityStyles["info"]
}

// encoders build the request body for each webhook type.
var encoders = map[string]func(*Alert) ([]byte, error){
	"slack": slackBody,
	"teams": teamsBody,
	"http":  httpBody,
}

// deliver posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliver(a *Alert) {
	e.mu.Lock()
	webhooks := e.webhooks
	e.mu.Unlock()

	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		encode, ok := encoders[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := encode(a)
		if err == nil {
			err = e.send(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "node", a.NodeID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type, "rule", a.RuleName, "node", a.NodeID, "state", a.State)
	}
}

// headline is the one-line summary shared by the chat payloads.
func headline(a *Alert) string {
	return fmt.Sprintf("%s %s on %s", a.RuleName, a.State, a.NodeID)
}

// reading formats the speed at the alert frame in the node's unit and in m/s.
func reading(a *Alert) string {
	return fmt.Sprintf("%.2f %s (%.2f m/s)", a.Speed, a.Unit, a.SpeedMPS)
}

func slackBody(a *Alert) ([]byte, error) {
	text := fmt.Sprintf("*[%s]* %s\nnode `%s`, frame %g: %s, `%s`",
		styleFor(a.Severity).label, headline(a), a.NodeID, a.Frame, reading(a), a.Condition)
	return json.Marshal(map[string]string{"text": text})
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Facts         []teamsFact `json:"facts"`
}

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Sections   []teamsSection `json:"sections"`
}

func teamsBody(a *Alert) ([]byte, error) {
	st := styleFor(a.Severity)
	return json.Marshal(teamsCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: st.color,
		Summary:    headline(a),
		Title:      fmt.Sprintf("[%s] %s", st.label, headline(a)),
		Sections: []teamsSection{{
			ActivityTitle: a.Condition,
			Facts: []teamsFact{
				{"Node", a.NodeID},
				{"Frame", fmt.Sprintf("%g", a.Frame)},
				{"Speed", fmt.Sprintf("%.2f %s", a.Speed, a.Unit)},
				{"Speed (m/s)", fmt.Sprintf("%.2f", a.SpeedMPS)},
				{"Rule", a.RuleName},
			},
		}},
	})
}

func httpBody(a *Alert) ([]byte, error) {
	return json.Marshal(struct {
		Alert *Alert `json:"alert"`
	}{a})
}

func (e *Engine) send(url string, body []byte) error {
	resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
