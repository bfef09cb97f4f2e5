// Package perf keeps a bounded window of request and store timings for the admin view.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes request vs query entries.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
)

// Entry is a single timing record.
type Entry struct {
	Kind       EntryKind
	Path       string // "METHOD /route" or a statement label
	StatusCode int    // HTTP status, 0 for queries
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring of entries. When full the oldest entry is overwritten.
// Aggregation happens on read.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	pos     int

	count atomic.Int64 // entries ever written
}

// NewCollector creates a collector holding up to size entries.
// POST: non-positive size falls back to DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record stores e, overwriting the oldest entry when the ring is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()
	c.count.Add(1)
}

// TotalRecorded returns the number of entries ever recorded, including overwritten ones.
func (c *Collector) TotalRecorded() int64 {
	return c.count.Load()
}

// Reset empties the ring. TotalRecorded is kept.
func (c *Collector) Reset() {
	c.mu.Lock()
	clear(c.entries)
	c.pos = 0
	c.mu.Unlock()
}

// Snapshot holds aggregated performance data.
type Snapshot struct {
	TotalRequests  int64 // ever recorded, requests and queries
	WindowRequests int   // requests inside the window
	ServerErrors   int   // requests inside the window answered 5xx
	RequestP50Ms   float64
	RequestP95Ms   float64
	RequestP99Ms   float64
	SlowestPaths   []PathStat
	SlowestQueries []PathStat
}

// PathStat aggregates timing for one route or statement.
type PathStat struct {
	Path    string
	AvgMs   float64
	MaxMs   float64
	Count   int
	TotalMs float64
}

type statSet map[string]*PathStat

func (s statSet) add(e Entry) {
	ps, ok := s[e.Path]
	if !ok {
		ps = &PathStat{Path: e.Path}
		s[e.Path] = ps
	}
	ps.Count++
	ps.TotalMs += e.DurationMs
	ps.MaxMs = max(ps.MaxMs, e.DurationMs)
}

// top returns the n slowest entries by average, ties broken by path.
func (s statSet) top(n int) []PathStat {
	list := make([]PathStat, 0, len(s))
	for _, ps := range s {
		ps.AvgMs = ps.TotalMs / float64(ps.Count)
		list = append(list, *ps)
	}
	slices.SortFunc(list, func(a, b PathStat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if n >= 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// Snapshot aggregates entries recorded at or after since.
// It copies the ring and sorts, so call it only when rendering stats.
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.entries)
	c.mu.Unlock()

	var durations []float64
	requests, queries := statSet{}, statSet{}
	snap := Snapshot{TotalRequests: c.TotalRecorded()}

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		switch e.Kind {
		case KindRequest:
			durations = append(durations, e.DurationMs)
			requests.add(e)
			if e.StatusCode >= 500 {
				snap.ServerErrors++
			}
		case KindQuery:
			queries.add(e)
		}
	}

	snap.WindowRequests = len(durations)
	snap.SlowestPaths = requests.top(topN)
	snap.SlowestQueries = queries.top(topN)
	if len(durations) > 0 {
		slices.Sort(durations)
		snap.RequestP50Ms = percentile(durations, 50)
		snap.RequestP95Ms = percentile(durations, 95)
		snap.RequestP99Ms = percentile(durations, 99)
	}
	return snap
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower, upper := int(math.Floor(idx)), int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
