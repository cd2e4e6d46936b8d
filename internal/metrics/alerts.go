package metrics

import (
	"time"

	"trackcanon/internal/shared"
)

// AlertHighSkipRate fires when the skip rate exceeds its threshold.
const AlertHighSkipRate = "high-skip-rate"

// DefaultSkipRate is the skip-rate threshold used when none is configured.
const DefaultSkipRate = 0.25

// Thresholds configures alert evaluation.
type Thresholds struct {
	SkipRate float64
}

// Alert is one fired threshold.
type Alert struct {
	Type      string  `json:"type"`
	SkipRate  float64 `json:"skipRate"`
	Threshold float64 `json:"threshold"`
}

// Evaluation is the persisted result of an alert check.
type Evaluation struct {
	At      time.Time `json:"at"`
	Alerts  []Alert   `json:"alerts"`
	Metrics Metrics   `json:"metrics"`
}

// Evaluate checks m against t. The comparison is strict: a rate equal to
// the threshold does not alert.
func Evaluate(m Metrics, t Thresholds) []Alert {
	alerts := []Alert{}
	rate := m.SkipRate()
	if rate > t.SkipRate {
		alerts = append(alerts, Alert{Type: AlertHighSkipRate, SkipRate: rate, Threshold: t.SkipRate})
	}
	return alerts
}

// EvaluateAlerts evaluates the recorder's current counters and writes the
// alerts together with the snapshot to path.
func (r *Recorder) EvaluateAlerts(t Thresholds, path string) (Evaluation, error) {
	snap := r.Snapshot()
	ev := Evaluation{
		At:      time.Now().UTC(),
		Alerts:  Evaluate(snap, t),
		Metrics: snap,
	}
	if path == "" {
		return ev, nil
	}
	return ev, shared.WriteJSONFile(path, ev)
}
