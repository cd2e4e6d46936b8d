package batch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

func TestChunkArray(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{"uneven", []int{1, 2, 3, 4, 5}, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"exact", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"larger than input", []int{1, 2}, 5, [][]int{{1, 2}}},
		{"empty", nil, 3, [][]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChunkArray(tt.items, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChunkArray(%v, %d) = %v, want %v", tt.items, tt.size, got, tt.want)
			}
		})
	}
}

func TestChunkArrayDefaultSize(t *testing.T) {
	items := make([]int, 25)
	if got := len(ChunkArray(items, 0)); got != 3 {
		t.Fatalf("expected 3 chunks of default size, got %d", got)
	}
}

func TestRunInBatchesCallsWorkerPerItem(t *testing.T) {
	var calls atomic.Int32
	snapshot := func(context.Context) (int32, error) { return calls.Load(), nil }

	got, err := RunInBatches(context.Background(), []string{"a", "b", "c", "d"}, 2,
		func(context.Context, string) error {
			calls.Add(1)
			return nil
		}, snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Fatalf("expected 4 worker calls, got %d", got)
	}
}

func TestRunInBatchesChunksAreSequential(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		order    []int
	)
	worker := func(_ context.Context, n int) error {
		mu.Lock()
		inFlight++
		maxSeen = max(maxSeen, inFlight)
		order = append(order, n)
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}
	if _, err := RunInBatches[int, struct{}](context.Background(), []int{1, 2, 3, 4, 5, 6}, 3, worker, nil); err != nil {
		t.Fatal(err)
	}
	if maxSeen > 3 {
		t.Fatalf("more than one chunk in flight: %d", maxSeen)
	}
	// Items of the first chunk always precede items of the second.
	for i, n := range order {
		if (i < 3) != (n <= 3) {
			t.Fatalf("chunks interleaved: %v", order)
		}
	}
}

func TestRunInBatchesStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	_, err := RunInBatches[int, struct{}](context.Background(), []int{1, 2, 3, 4}, 2,
		func(_ context.Context, n int) error {
			calls.Add(1)
			if n == 1 {
				return boom
			}
			return nil
		}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("second chunk should not run, got %d calls", calls.Load())
	}
}
