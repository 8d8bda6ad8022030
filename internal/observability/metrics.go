package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	requestDuration map[string]time.Duration
	errorCount      map[string]int64
	transitions     map[string]int64
	escalations     map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	RequestMillis map[string]int64 `json:"request_millis"`
	Errors        map[string]int64 `json:"errors"`
	Transitions   map[string]int64 `json:"transitions"`
	Escalations   map[string]int64 `json:"escalations"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		requestDuration: make(map[string]time.Duration),
		errorCount:      make(map[string]int64),
		transitions:     make(map[string]int64),
		escalations:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestDuration[key] += duration
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

// RecordTransition counts an applied state change.
func (m *Metrics) RecordTransition(kind domain.Kind, from, to domain.State) {
	if m == nil {
		return
	}
	key := string(kind) + "|" + string(from) + "|" + string(to)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[key]++
}

// RecordEscalation counts a published SLA escalation.
func (m *Metrics) RecordEscalation(kind domain.Kind) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations[string(kind)]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	millis := make(map[string]int64, len(m.requestDuration))
	for k, d := range m.requestDuration {
		millis[k] = d.Milliseconds()
	}
	return Snapshot{
		Requests:      copyCounts(m.requestCount),
		RequestMillis: millis,
		Errors:        copyCounts(m.errorCount),
		Transitions:   copyCounts(m.transitions),
		Escalations:   copyCounts(m.escalations),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
