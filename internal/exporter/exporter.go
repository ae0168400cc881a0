package exporter

import (
	"io"
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/speedometer/speedometer/internal/compute"
)

// Metric family names.
const (
	MetricSpeed        = "speedometer_speed"
	MetricSpeedMPS     = "speedometer_speed_mps"
	MetricDisplacement = "speedometer_displacement"
	MetricNodeState    = "speedometer_node_state"
	MetricFrame        = "speedometer_frame"
)

// states lists every node state, exported as a one-hot gauge set.
var states = []string{
	compute.StateOK,
	compute.StateDisabled,
	compute.StateNoSource,
	compute.StateError,
}

// Evaluator computes every node at a frame.
type Evaluator interface {
	Evaluate(frame float64) []compute.Result
}

// Playhead reports the current playback frame.
type Playhead interface {
	Current() float64
}

// Families converts results evaluated at frame into metric families, in a
// stable order.
func Families(results []compute.Result, frame float64) []*dto.MetricFamily {
	speed := gaugeFamily(MetricSpeed, "Speed in the node's display unit.")
	mps := gaugeFamily(MetricSpeedMPS, "Speed in metres per second.")
	disp := gaugeFamily(MetricDisplacement, "Displacement since the previous frame in scene linear units.")
	state := gaugeFamily(MetricNodeState, "Evaluation state of the node (1 for the current state).")

	for _, r := range results {
		speed.Metric = append(speed.Metric, gauge(r.Speed,
			label("node", r.NodeID), label("unit", r.Unit.Label()), label("mode", r.Mode.String())))
		mps.Metric = append(mps.Metric, gauge(r.SpeedMPS, label("node", r.NodeID)))
		disp.Metric = append(disp.Metric, gauge(r.Displacement, label("node", r.NodeID)))
		for _, s := range states {
			v := 0.0
			if r.State == s {
				v = 1
			}
			state.Metric = append(state.Metric, gauge(v, label("node", r.NodeID), label("state", s)))
		}
	}

	fr := gaugeFamily(MetricFrame, "Frame the results were evaluated at.")
	fr.Metric = []*dto.Metric{gauge(frame)}

	return []*dto.MetricFamily{disp, fr, state, speed, mps}
}

// Write encodes families to w in the Prometheus text format.
func Write(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the metrics of every node evaluated at the playhead frame.
func Handler(ev Evaluator, ph Playhead) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		frame := ph.Current()
		families := Families(ev.Evaluate(frame), frame)

		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := Write(w, families); err != nil {
			slog.Error("exporter: encode failed", "err", err)
		}
	})
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
