package diagnostic

import (
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/processing"
	"github.com/open-teleop/commandbot/services"
)

// MotionSource exposes the controller's state and counters
type MotionSource interface {
	CurrentState() motion.State
	Stats() motion.Stats
}

// PipelineSource exposes the input pipeline's counters
type PipelineSource interface {
	GetPoolMetrics() processing.PoolMetrics
	GetQueueStats() (length, capacity int)
	GetRegistry() *processing.SourceRegistry
}

// OutcomeSource exposes the command service's results
type OutcomeSource interface {
	LastOutcome() *services.Outcome
	ErrorCounts() services.ErrorCounts
}

// MotionStatus is the motion section of a snapshot
type MotionStatus struct {
	Phase string       `json:"phase"`
	State motion.State `json:"state"`
	Stats motion.Stats `json:"stats"`
}

// PipelineStatus is the input pipeline section of a snapshot
type PipelineStatus struct {
	Pool          processing.PoolMetrics           `json:"pool"`
	QueueLength   int                              `json:"queue_length"`
	QueueCapacity int                              `json:"queue_capacity"`
	Sources       map[string]processing.SourceInfo `json:"sources"`
}

// RuntimeStatus reports process-level figures
type RuntimeStatus struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
}

// Snapshot represents the service's diagnostics at one instant
type Snapshot struct {
	Timestamp     time.Time            `json:"timestamp"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	Motion        MotionStatus         `json:"motion"`
	Pipeline      *PipelineStatus      `json:"pipeline,omitempty"`
	Errors        services.ErrorCounts `json:"errors"`
	LastOutcome   *services.Outcome    `json:"last_outcome,omitempty"`
	Runtime       RuntimeStatus        `json:"runtime"`
}

// DiagnosticService aggregates diagnostics from the running components
type DiagnosticService struct {
	mu       sync.RWMutex
	started  time.Time
	motion   MotionSource
	pipeline PipelineSource
	outcomes OutcomeSource
}

// NewDiagnosticService creates a new diagnostic service instance. pipeline may be nil.
func NewDiagnosticService(motionSource MotionSource, pipeline PipelineSource, outcomes OutcomeSource) *DiagnosticService {
	return &DiagnosticService{
		started:  time.Now(),
		motion:   motionSource,
		pipeline: pipeline,
		outcomes: outcomes,
	}
}

// SetPipeline attaches the input pipeline after construction
func (s *DiagnosticService) SetPipeline(pipeline PipelineSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = pipeline
}

// GetSnapshot collects the current diagnostics
func (s *DiagnosticService) GetSnapshot() Snapshot {
	s.mu.RLock()
	pipeline := s.pipeline
	s.mu.RUnlock()

	now := time.Now()
	state := s.motion.CurrentState()
	snapshot := Snapshot{
		Timestamp:     now,
		UptimeSeconds: now.Sub(s.started).Seconds(),
		Motion: MotionStatus{
			Phase: state.Phase(),
			State: state,
			Stats: s.motion.Stats(),
		},
		Errors:      s.outcomes.ErrorCounts(),
		LastOutcome: s.outcomes.LastOutcome(),
	}

	if pipeline != nil {
		length, capacity := pipeline.GetQueueStats()
		snapshot.Pipeline = &PipelineStatus{
			Pool:          pipeline.GetPoolMetrics(),
			QueueLength:   length,
			QueueCapacity: capacity,
			Sources:       pipeline.GetRegistry().GetSourceStats(),
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	snapshot.Runtime = RuntimeStatus{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}

	return snapshot
}

// GetMetricsHandler handles API requests for diagnostics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetSnapshot(),
	})
}
