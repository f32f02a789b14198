package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/malabook/mala/server/internal/log"
)

// ringSize bounds the per-endpoint duration history.
const ringSize = 1000

type endpointMetrics struct {
	durations []time.Duration
	next      int
	requests  int64
	errors    int64
}

func (m *endpointMetrics) record(d time.Duration, status int) {
	if len(m.durations) < ringSize {
		m.durations = append(m.durations, d)
	} else {
		m.durations[m.next] = d
		m.next = (m.next + 1) % ringSize
	}
	m.requests++
	if status >= 400 {
		m.errors++
	}
}

func (m *endpointMetrics) stats() (avg, min, max time.Duration) {
	if len(m.durations) == 0 {
		return 0, 0, 0
	}
	min = m.durations[0]
	max = m.durations[0]
	var total time.Duration
	for _, d := range m.durations {
		total += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return total / time.Duration(len(m.durations)), min, max
}

// EndpointSummary is a point-in-time view over the retained samples.
type EndpointSummary struct {
	Endpoint string        `json:"endpoint"`
	Requests int64         `json:"requests"`
	Errors   int64         `json:"errors"`
	Avg      time.Duration `json:"avg"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
}

// SystemMetrics is a snapshot of the process itself.
type SystemMetrics struct {
	Goroutines    int     `json:"goroutines"`
	HeapAlloc     uint64  `json:"heap_alloc_bytes"`
	HeapSys       uint64  `json:"heap_sys_bytes"`
	NumGC         uint32  `json:"num_gc"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Collector keeps the last 1000 request durations per route pattern
// plus process totals.
type Collector struct {
	mu        sync.Mutex
	endpoints map[string]*endpointMetrics
	startedAt time.Time

	totalRequests atomic.Int64
	totalErrors   atomic.Int64
}

func NewCollector() *Collector {
	return &Collector{
		endpoints: make(map[string]*endpointMetrics),
		startedAt: time.Now(),
	}
}

// Record adds one request observation for endpoint.
func (c *Collector) Record(endpoint string, duration time.Duration, status int) {
	c.totalRequests.Inc()
	if status >= 400 {
		c.totalErrors.Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.endpoints[endpoint]
	if !ok {
		m = &endpointMetrics{}
		c.endpoints[endpoint] = m
	}
	m.record(duration, status)
}

func (c *Collector) TotalRequests() int64 {
	return c.totalRequests.Load()
}

func (c *Collector) TotalErrors() int64 {
	return c.totalErrors.Load()
}

func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

// Summaries returns per-endpoint stats ordered by request count.
func (c *Collector) Summaries() []EndpointSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summaries := make([]EndpointSummary, 0, len(c.endpoints))
	for endpoint, m := range c.endpoints {
		avg, min, max := m.stats()
		summaries = append(summaries, EndpointSummary{
			Endpoint: endpoint,
			Requests: m.requests,
			Errors:   m.errors,
			Avg:      avg,
			Min:      min,
			Max:      max,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Requests != summaries[j].Requests {
			return summaries[i].Requests > summaries[j].Requests
		}
		return summaries[i].Endpoint < summaries[j].Endpoint
	})
	return summaries
}

// SlowEndpoints lists endpoints whose average exceeds threshold.
func (c *Collector) SlowEndpoints(threshold time.Duration) []EndpointSummary {
	var slow []EndpointSummary
	for _, s := range c.Summaries() {
		if s.Avg > threshold {
			slow = append(slow, s)
		}
	}
	return slow
}

// System snapshots runtime counters for the health endpoint.
func (c *Collector) System() SystemMetrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return SystemMetrics{
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     memStats.HeapAlloc,
		HeapSys:       memStats.HeapSys,
		NumGC:         memStats.NumGC,
		UptimeSeconds: c.Uptime().Seconds(),
	}
}

// LogSummary writes the periodic report: totals, system snapshot and
// the five busiest endpoints.
func (c *Collector) LogSummary(ctx context.Context, slowThreshold time.Duration) {
	system := c.System()
	log.Info(ctx, "Request metrics",
		"requests", c.TotalRequests(),
		"errors", c.TotalErrors(),
		"goroutines", system.Goroutines,
		"heap_alloc", system.HeapAlloc,
		"uptime", c.Uptime().Round(time.Second).String(),
	)
	for i, s := range c.Summaries() {
		if i == 5 {
			break
		}
		log.Info(ctx, "Endpoint metrics",
			"endpoint", s.Endpoint,
			"requests", s.Requests,
			"errors", s.Errors,
			"avg", s.Avg.Round(time.Microsecond).String(),
			"max", s.Max.Round(time.Microsecond).String(),
		)
	}
	for _, s := range c.SlowEndpoints(slowThreshold) {
		log.Warning(ctx, "Slow endpoint",
			"endpoint", s.Endpoint, "avg", s.Avg.Round(time.Millisecond).String())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// Middleware records every request under its route pattern, falling
// back to the raw path for unmatched routes.
func Middleware(c *Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			endpoint := r.Pattern
			if endpoint == "" {
				endpoint = r.Method + " " + r.URL.Path
			}
			c.Record(endpoint, time.Since(start), sw.status)
		})
	}
}
