package metrics

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"trackcanon/internal/shared"
)

func recorderWith(t *testing.T, processed, skipped int) *Recorder {
	t.Helper()
	r := NewRecorder("")
	for i := 0; i < processed; i++ {
		if err := r.IncProcessed(); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < skipped; i++ {
		if err := r.IncSkipped("no-match"); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func TestEvaluateAlertsThreshold(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		skipped   int
		want      int
	}{
		{"above threshold", 10, 3, 1},
		{"below threshold", 10, 2, 0},
		{"nothing processed", 0, 0, 0},
		{"exactly at threshold", 4, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := recorderWith(t, tt.processed, tt.skipped)
			ev, err := r.EvaluateAlerts(Thresholds{SkipRate: DefaultSkipRate}, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(ev.Alerts) != tt.want {
				t.Fatalf("got %d alerts, want %d", len(ev.Alerts), tt.want)
			}
			if tt.want == 1 {
				a := ev.Alerts[0]
				if a.Type != AlertHighSkipRate || a.Threshold != 0.25 || a.SkipRate != 0.3 {
					t.Errorf("unexpected alert %+v", a)
				}
			}
		})
	}
}

func TestRecorderPersistsEveryIncrement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	r := NewRecorder(path)
	if err := r.IncProcessed(); err != nil {
		t.Fatal(err)
	}
	if err := r.IncSkipped("low-confidence"); err != nil {
		t.Fatal(err)
	}

	var onDisk Metrics
	if err := shared.ReadJSONFile(path, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.Processed != 1 || onDisk.Skipped != 1 || onDisk.ByReason["low-confidence"] != 1 {
		t.Fatalf("unexpected persisted metrics %+v", onDisk)
	}

	resumed, err := OpenRecorder(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := resumed.IncAccepted(); err != nil {
		t.Fatal(err)
	}
	snap := resumed.Snapshot()
	if snap.Processed != 1 || snap.Accepted != 1 {
		t.Errorf("counters not resumed: %+v", snap)
	}
}

func TestAlertsFileContainsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.json")
	r := recorderWith(t, 10, 3)
	if _, err := r.EvaluateAlerts(Thresholds{SkipRate: 0.25}, path); err != nil {
		t.Fatal(err)
	}
	var ev Evaluation
	if err := shared.ReadJSONFile(path, &ev); err != nil {
		t.Fatal(err)
	}
	if len(ev.Alerts) != 1 || ev.Metrics.Processed != 10 || ev.At.IsZero() {
		t.Fatalf("unexpected alerts file %+v", ev)
	}
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder("")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.IncProcessed()
			_ = r.IncQueued()
		}()
	}
	wg.Wait()
	if s := r.Snapshot(); s.Processed != 50 || s.Queued != 50 {
		t.Fatalf("lost increments: %+v", s)
	}
}

func TestRenderTables(t *testing.T) {
	r := recorderWith(t, 4, 2)
	snap := r.Snapshot()
	if out := RenderCounters(snap); !strings.Contains(out, "processed") || !strings.Contains(out, "50.0%") {
		t.Errorf("counters table missing data:\n%s", out)
	}
	if out := RenderReasons(snap); !strings.Contains(out, "no-match") {
		t.Errorf("reasons table missing data:\n%s", out)
	}
}

func TestSaveWritesZeroedCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	if err := shared.WriteJSONFile(path, Metrics{Processed: 3, Skipped: 3}); err != nil {
		t.Fatal(err)
	}
	if err := NewRecorder(path).Save(); err != nil {
		t.Fatal(err)
	}
	var onDisk Metrics
	if err := shared.ReadJSONFile(path, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.Processed != 0 || onDisk.Skipped != 0 {
		t.Errorf("expected zeroed counters, got %+v", onDisk)
	}
}
