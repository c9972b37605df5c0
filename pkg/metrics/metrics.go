package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from handshake sessions.
type Collector struct {
	// Session metrics
	sessionsActive      atomic.Uint64
	handshakesTotal     atomic.Uint64
	handshakesSucceeded atomic.Uint64
	handshakesFailed    atomic.Uint64
	handshakeLatency    *Histogram

	// Traffic metrics
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	kexInitsRecv  atomic.Uint64

	// Error metrics
	protocolErrors atomic.Uint64
	rateLimited    atomic.Uint64

	mu          sync.Mutex
	failures    map[string]uint64     // by error kind
	stepLatency map[string]*Histogram // by handshake step

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		failures:         make(map[string]uint64),
		stepLatency:      make(map[string]*Histogram),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms, in milliseconds.
var (
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	StepLatencyBuckets      = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}
)

// --- Session Metrics ---

// SessionStarted increments the active session gauge and the handshake
// counter.
func (c *Collector) SessionStarted() {
	c.sessionsActive.Add(1)
	c.handshakesTotal.Add(1)
}

// SessionEnded decrements the active session gauge.
func (c *Collector) SessionEnded() {
	for {
		current := c.sessionsActive.Load()
		if current == 0 {
			return
		}
		if c.sessionsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// HandshakeSucceeded records a completed negotiation phase.
func (c *Collector) HandshakeSucceeded(d time.Duration) {
	c.handshakesSucceeded.Add(1)
	c.handshakeLatency.ObserveDuration(d)
}

// HandshakeFailed records a failed handshake under its error kind.
func (c *Collector) HandshakeFailed(kind string) {
	c.handshakesFailed.Add(1)
	if kind == "" {
		kind = "unknown"
	}
	c.mu.Lock()
	c.failures[kind]++
	c.mu.Unlock()
}

// RecordStepLatency records how long one handshake step took.
func (c *Collector) RecordStepLatency(step string, d time.Duration) {
	c.mu.Lock()
	h, ok := c.stepLatency[step]
	if !ok {
		h = NewHistogram(StepLatencyBuckets)
		c.stepLatency[step] = h
	}
	c.mu.Unlock()
	h.ObserveDuration(d)
}

// --- Traffic Metrics ---

// RecordBytesSent adds to the bytes sent counter.
func (c *Collector) RecordBytesSent(n uint64) {
	c.bytesSent.Add(n)
}

// RecordBytesReceived adds to the bytes received counter.
func (c *Collector) RecordBytesReceived(n uint64) {
	c.bytesReceived.Add(n)
}

// RecordKexInit counts a decoded server KEXINIT.
func (c *Collector) RecordKexInit() {
	c.kexInitsRecv.Add(1)
}

// RecordProtocolError increments the protocol error counter.
func (c *Collector) RecordProtocolError() {
	c.protocolErrors.Add(1)
}

// RecordRateLimited counts a handshake delayed by the rate limiter.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Add(1)
}

// --- Snapshot ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	SessionsActive      uint64
	HandshakesTotal     uint64
	HandshakesSucceeded uint64
	HandshakesFailed    uint64

	BytesSent     uint64
	BytesReceived uint64
	KexInitsRecv  uint64

	ProtocolErrors uint64
	RateLimited    uint64

	// FailuresByKind is keyed by errors.Kind.
	FailuresByKind map[string]uint64

	HandshakeLatency HistogramSummary
	StepLatency      map[string]HistogramSummary

	Labels Labels
}

// FailureKinds returns the keys of FailuresByKind in sorted order.
func (s Snapshot) FailureKinds() []string {
	kinds := make([]string, 0, len(s.FailuresByKind))
	for k := range s.FailuresByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	failures := make(map[string]uint64, len(c.failures))
	for k, v := range c.failures {
		failures[k] = v
	}
	steps := make(map[string]HistogramSummary, len(c.stepLatency))
	for k, h := range c.stepLatency {
		steps[k] = h.Summary()
	}
	createdAt := c.createdAt
	c.mu.Unlock()

	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(createdAt),
		SessionsActive:      c.sessionsActive.Load(),
		HandshakesTotal:     c.handshakesTotal.Load(),
		HandshakesSucceeded: c.handshakesSucceeded.Load(),
		HandshakesFailed:    c.handshakesFailed.Load(),
		BytesSent:           c.bytesSent.Load(),
		BytesReceived:       c.bytesReceived.Load(),
		KexInitsRecv:        c.kexInitsRecv.Load(),
		ProtocolErrors:      c.protocolErrors.Load(),
		RateLimited:         c.rateLimited.Load(),
		FailuresByKind:      failures,
		HandshakeLatency:    c.handshakeLatency.Summary(),
		StepLatency:         steps,
		Labels:              c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.sessionsActive.Store(0)
	c.handshakesTotal.Store(0)
	c.handshakesSucceeded.Store(0)
	c.handshakesFailed.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.kexInitsRecv.Store(0)
	c.protocolErrors.Store(0)
	c.rateLimited.Store(0)
	c.handshakeLatency.Reset()

	c.mu.Lock()
	c.failures = make(map[string]uint64)
	c.stepLatency = make(map[string]*Histogram)
	c.createdAt = time.Now()
	c.mu.Unlock()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
	globalCollectorMu   sync.RWMutex
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollectorMu.Lock()
		if globalCollector == nil {
			globalCollector = NewCollector(Labels{"instance": "default"})
		}
		globalCollectorMu.Unlock()
	})
	globalCollectorMu.RLock()
	defer globalCollectorMu.RUnlock()
	return globalCollector
}

// SetGlobal sets the global metrics collector.
func SetGlobal(c *Collector) {
	globalCollectorOnce.Do(func() {})
	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	globalCollector = c
}
