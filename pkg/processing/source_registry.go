package processing

import (
	"sort"
	"sync"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// Input sources known to the service
const (
	SourceZeroMQ    = "zeromq"
	SourceRequest   = "zeromq_req"
	SourceHTTP      = "http"
	SourceWebSocket = "websocket"
)

// SourceInfo holds counters for one input source
type SourceInfo struct {
	Name         string `json:"name"`
	Accepted     int64  `json:"accepted"`
	Rejected     int64  `json:"rejected"`
	LastReceived int64  `json:"last_received_ns"`
}

// SourceRegistry keeps per-source input statistics
type SourceRegistry struct {
	logger  customlog.Logger
	sources map[string]*SourceInfo
	mu      sync.RWMutex
}

// NewSourceRegistry creates a new source registry
func NewSourceRegistry(logger customlog.Logger) *SourceRegistry {
	return &SourceRegistry{
		logger:  logger,
		sources: make(map[string]*SourceInfo),
	}
}

// Register adds a source with zeroed counters. Registering twice is a no-op.
func (r *SourceRegistry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return
	}
	r.sources[name] = &SourceInfo{Name: name}
	r.logger.Debugf("Registered input source %s", name)
}

// RecordInput updates statistics for a source
func (r *SourceRegistry) RecordInput(name string, timestamp int64, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.sources[name]
	if !exists {
		info = &SourceInfo{Name: name}
		r.sources[name] = info
	}

	if accepted {
		info.Accepted++
	} else {
		info.Rejected++
	}
	info.LastReceived = timestamp
}

// GetSourceInfo gets a copy of the information for a source
func (r *SourceRegistry) GetSourceInfo(name string) (SourceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.sources[name]
	if !exists {
		return SourceInfo{}, false
	}
	return *info, true
}

// GetAllSources returns the registered source names in sorted order
func (r *SourceRegistry) GetAllSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSourceStats returns a copy of every source's counters
func (r *SourceRegistry) GetSourceStats() map[string]SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]SourceInfo, len(r.sources))
	for name, info := range r.sources {
		stats[name] = *info
	}
	return stats
}
