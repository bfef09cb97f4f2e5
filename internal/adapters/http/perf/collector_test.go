package perf

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()

	c.Record(Entry{Kind: KindRequest, Path: "GET /dashboard", StatusCode: 200, DurationMs: 10, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "GET /dashboard", StatusCode: 200, DurationMs: 30, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "POST /login", StatusCode: 503, DurationMs: 50, Timestamp: now})
	c.Record(Entry{Kind: KindQuery, Path: "SELECT account", DurationMs: 5, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", snap.TotalRequests)
	}
	if snap.WindowRequests != 3 || snap.ServerErrors != 1 {
		t.Errorf("window = %d errors = %d, want 3 and 1", snap.WindowRequests, snap.ServerErrors)
	}
	if len(snap.SlowestPaths) != 2 {
		t.Fatalf("SlowestPaths len = %d, want 2", len(snap.SlowestPaths))
	}
	if got := snap.SlowestPaths[0]; got.Path != "POST /login" || got.AvgMs != 50 {
		t.Errorf("slowest = %+v", got)
	}
	if got := snap.SlowestPaths[1]; got.AvgMs != 20 || got.MaxMs != 30 || got.Count != 2 {
		t.Errorf("dashboard stat = %+v", got)
	}
	if len(snap.SlowestQueries) != 1 || snap.SlowestQueries[0].Path != "SELECT account" {
		t.Errorf("SlowestQueries = %+v", snap.SlowestQueries)
	}
}

func TestCollector_TopN(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	for i, p := range []string{"GET /a", "GET /b", "GET /c", "GET /d"} {
		c.Record(Entry{Kind: KindRequest, Path: p, DurationMs: float64(i), Timestamp: now})
	}

	snap := c.Snapshot(now.Add(-time.Minute), 2)
	if len(snap.SlowestPaths) != 2 {
		t.Fatalf("len = %d, want 2", len(snap.SlowestPaths))
	}
	if snap.SlowestPaths[0].Path != "GET /d" || snap.SlowestPaths[1].Path != "GET /c" {
		t.Errorf("order = %+v", snap.SlowestPaths)
	}
}

func TestCollector_RingOverwrites(t *testing.T) {
	c := NewCollector(3)
	now := time.Now()
	for i := range 5 {
		c.Record(Entry{Kind: KindRequest, Path: "GET /portal", DurationMs: float64(i), Timestamp: now})
	}

	if c.TotalRecorded() != 5 {
		t.Errorf("TotalRecorded = %d, want 5", c.TotalRecorded())
	}
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.SlowestPaths[0].Count != 3 {
		t.Errorf("Count = %d, want 3", snap.SlowestPaths[0].Count)
	}
	if snap.SlowestPaths[0].AvgMs != 3 {
		t.Errorf("AvgMs = %v, want 3 (entries 2,3,4)", snap.SlowestPaths[0].AvgMs)
	}
}

func TestCollector_Percentiles(t *testing.T) {
	c := NewCollector(200)
	now := time.Now()
	for i := 1; i <= 100; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "GET /p", DurationMs: float64(i), Timestamp: now})
	}

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	tests := []struct {
		name     string
		got      float64
		lo, high float64
	}{
		{"p50", snap.RequestP50Ms, 49, 51},
		{"p95", snap.RequestP95Ms, 94, 96},
		{"p99", snap.RequestP99Ms, 98, 100},
	}
	for _, tt := range tests {
		if tt.got < tt.lo || tt.got > tt.high {
			t.Errorf("%s = %v, want in [%v, %v]", tt.name, tt.got, tt.lo, tt.high)
		}
	}
}

func TestCollector_SnapshotWindow(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	c.Record(Entry{Kind: KindRequest, Path: "GET /old", DurationMs: 100, Timestamp: now.Add(-2 * time.Hour)})
	c.Record(Entry{Kind: KindRequest, Path: "GET /new", DurationMs: 10, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Hour), 10)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Path != "GET /new" {
		t.Errorf("SlowestPaths = %+v, want only GET /new", snap.SlowestPaths)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(10)
	now := time.Now()
	c.Record(Entry{Kind: KindRequest, Path: "GET /", Timestamp: now})
	c.Reset()

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 0 || snap.WindowRequests != 0 {
		t.Errorf("snapshot after reset = %+v", snap)
	}
	if c.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", c.TotalRecorded())
	}
}

func TestCollector_DefaultSize(t *testing.T) {
	if got := len(NewCollector(0).entries); got != DefaultRingSize {
		t.Errorf("size = %d, want %d", got, DefaultRingSize)
	}
}

func TestCollector_ConcurrentWrites(t *testing.T) {
	c := NewCollector(1000)
	now := time.Now()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 10 {
				c.Record(Entry{Kind: KindRequest, Path: "GET /c", DurationMs: float64(n), Timestamp: now})
			}
		}(i)
	}
	wg.Wait()
	if c.TotalRecorded() != 1000 {
		t.Errorf("TotalRecorded = %d, want 1000", c.TotalRecorded())
	}
}

func BenchmarkCollectorRecord_Parallel(b *testing.B) {
	c := NewCollector(DefaultRingSize)
	e := Entry{Kind: KindRequest, Path: "GET /bench", StatusCode: 200, DurationMs: 1.5, Timestamp: time.Now()}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Record(e)
		}
	})
}

func BenchmarkCollectorSnapshot(b *testing.B) {
	c := NewCollector(DefaultRingSize)
	now := time.Now()
	for i := range DefaultRingSize {
		c.Record(Entry{Kind: KindRequest, Path: "GET /bench", StatusCode: 200, DurationMs: float64(i % 100), Timestamp: now})
	}
	since := now.Add(-time.Hour)
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		c.Snapshot(since, 10)
	}
}
