package processing

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// DirectorOptions holds configuration options for the InputDirector
type DirectorOptions struct {
	Workers   int
	QueueSize int

	// MaxInputsPerSecond limits admission across all sources. Zero disables the limit.
	MaxInputsPerSecond float64
	Burst              int
}

// InputDirector admits raw inputs from every transport into the processing pool
type InputDirector struct {
	logger   customlog.Logger
	pool     *ProcessingPool
	registry *SourceRegistry
	limiter  *rate.Limiter
}

// NewInputDirector creates a new input director
func NewInputDirector(
	logger customlog.Logger,
	registry *SourceRegistry,
	options *DirectorOptions,
) *InputDirector {
	if options == nil {
		options = &DirectorOptions{
			Workers:   1,
			QueueSize: 16,
		}
	}

	d := &InputDirector{
		logger:   logger,
		pool:     NewProcessingPool("INPUT", options.Workers, options.QueueSize, logger),
		registry: registry,
	}

	if options.MaxInputsPerSecond > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(options.MaxInputsPerSecond), burst)
		logger.Infof("Input admission limited to %.2f/s (burst %d)", options.MaxInputsPerSecond, burst)
	}

	return d
}

// SetProcessor sets the job processor
func (d *InputDirector) SetProcessor(processor JobProcessor) {
	d.pool.SetProcessor(processor)
}

// SetResultHandler sets the result handler
func (d *InputDirector) SetResultHandler(handler ResultHandler) {
	d.pool.SetResultHandler(handler)
}

// Start starts the processing pool
func (d *InputDirector) Start() {
	d.pool.Start()
	d.logger.Infof("Input Director started")
}

// Stop drains and stops the processing pool
func (d *InputDirector) Stop() {
	d.pool.Stop()
	d.logger.Infof("Input Director stopped")
}

// Submit queues text from source for processing and returns the job id.
// done may be nil.
func (d *InputDirector) Submit(source, text string, done func(result *ProcessResult)) (string, error) {
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Source:     source,
		Text:       text,
		ReceivedAt: now,
		Done:       done,
	}

	if d.limiter != nil && !d.limiter.AllowN(now, 1) {
		d.registry.RecordInput(source, now.UnixNano(), false)
		d.logger.Warnf("Rate limit exceeded, rejecting input %s from %s", job.ID, source)
		return job.ID, ErrRateLimited
	}

	if err := d.pool.Submit(job); err != nil {
		d.registry.RecordInput(source, now.UnixNano(), false)
		return job.ID, err
	}

	d.registry.RecordInput(source, now.UnixNano(), true)
	d.logger.Debugf("Queued input %s from %s", job.ID, source)
	return job.ID, nil
}

// GetPoolMetrics returns the processing pool metrics
func (d *InputDirector) GetPoolMetrics() PoolMetrics {
	return d.pool.GetMetrics()
}

// GetQueueStats returns the current queue length and capacity
func (d *InputDirector) GetQueueStats() (length, capacity int) {
	return d.pool.GetQueueLength(), d.pool.GetQueueCapacity()
}

// GetRegistry returns the source registry
func (d *InputDirector) GetRegistry() *SourceRegistry {
	return d.registry
}
