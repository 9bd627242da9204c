package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	gatewayCount   map[string]int64
	gatewayLatency map[string]time.Duration
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	GatewayCalls   map[string]int64 `json:"gateway_calls"`
	GatewayLatency map[string]int64 `json:"gateway_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		gatewayCount:   make(map[string]int64),
		gatewayLatency: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for console requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordGatewayCall counts a backend call by operation and outcome ("ok" or an error code).
func (m *Metrics) RecordGatewayCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	key := operation + "|" + outcome
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gatewayCount[key]++
	m.gatewayLatency[operation] += duration
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Requests:       map[string]int64{},
		Errors:         map[string]int64{},
		GatewayCalls:   map[string]int64{},
		GatewayLatency: map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.gatewayCount {
		snap.GatewayCalls[k] = v
	}
	for k, v := range m.gatewayLatency {
		snap.GatewayLatency[k] = v.Milliseconds()
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
