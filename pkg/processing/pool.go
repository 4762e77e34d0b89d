package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// Admission errors
var (
	ErrPoolStopped = errors.New("processing pool is not running")
	ErrQueueFull   = errors.New("processing queue is full")
	ErrRateLimited = errors.New("input rate limit exceeded")
)

// Job is one raw input waiting to be classified and applied.
type Job struct {
	ID         string
	Source     string
	Text       string
	ReceivedAt time.Time

	// Done, when set, is called once with the job's result on the worker goroutine.
	Done func(result *ProcessResult)
}

// ProcessResult is the result of processing a job
type ProcessResult struct {
	Job      *Job
	Value    interface{}
	Error    error
	Duration time.Duration
}

// ResultHandler is a function that handles processed results
type ResultHandler func(result *ProcessResult)

// JobProcessor processes a job in a worker
type JobProcessor func(ctx context.Context, job *Job) (interface{}, error)

// ProcessingPool is a bounded FIFO queue drained by a fixed set of workers.
// With one worker, jobs complete in submission order.
type ProcessingPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	jobQueue      chan *Job
	running       bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	processor     JobProcessor
	resultHandler ResultHandler
	queueSize     int
	metrics       *PoolMetrics
	cancel        context.CancelFunc
}

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	LastProcessedTime int64 `json:"last_processed_ns"`
	ProcessingTimeAvg int64 `json:"processing_time_avg_us"`
	ProcessingTimeMax int64 `json:"processing_time_max_us"`
	mu                sync.Mutex
}

// NewProcessingPool creates a new processing pool
func NewProcessingPool(
	name string,
	workerCount int,
	queueSize int,
	logger customlog.Logger,
) *ProcessingPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &ProcessingPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger,
		jobQueue:    make(chan *Job, queueSize),
		metrics:     &PoolMetrics{},
	}
}

// SetProcessor sets the job processor function
func (p *ProcessingPool) SetProcessor(processor JobProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

// SetResultHandler sets the result handler function
func (p *ProcessingPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// Submit adds a job to the queue without blocking.
func (p *ProcessingPool) Submit(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, discarding input %s", p.name, job.ID)
		return ErrPoolStopped
	}

	select {
	case p.jobQueue <- job:
		p.metrics.mu.Lock()
		p.metrics.QueuedCount++
		p.metrics.mu.Unlock()
		return nil
	default:
		p.metrics.mu.Lock()
		p.metrics.DroppedCount++
		p.metrics.mu.Unlock()
		p.logger.Warnf("%s pool queue is full, discarding input %s", p.name, job.ID)
		return ErrQueueFull
	}
}

// Start starts the processing pool workers
func (p *ProcessingPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true
	p.logger.Infof("Starting %s pool with %d workers (queue %d)", p.name, p.workerCount, p.queueSize)
	if p.workerCount > 1 {
		p.logger.Warnf("%s pool has %d workers; inputs may be applied out of arrival order", p.name, p.workerCount)
	}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop closes the queue, lets workers drain it and waits for them.
// In-flight jobs see a cancelled context.
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	// Submit holds p.mu while sending, so no send can race this close.
	close(p.jobQueue)
	cancel := p.cancel
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	cancel()
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

// worker processes jobs from the queue
func (p *ProcessingPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for job := range p.jobQueue {
		p.logger.Debugf("%s pool worker %d processing input %s from %s", p.name, id, job.ID, job.Source)

		p.mu.Lock()
		processor := p.processor
		resultHandler := p.resultHandler
		p.mu.Unlock()

		if processor == nil {
			p.logger.Errorf("No job processor set for %s pool", p.name)
			continue
		}

		startTime := time.Now()
		value, err := processor(ctx, job)
		elapsed := time.Since(startTime)

		p.recordMetrics(elapsed.Microseconds(), err)

		result := &ProcessResult{
			Job:      job,
			Value:    value,
			Error:    err,
			Duration: elapsed,
		}

		if resultHandler != nil {
			resultHandler(result)
		}
		if job.Done != nil {
			job.Done(result)
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

func (p *ProcessingPool) recordMetrics(processingTime int64, err error) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.ProcessedCount++
	p.metrics.LastProcessedTime = time.Now().UnixNano()

	if p.metrics.ProcessingTimeAvg == 0 {
		p.metrics.ProcessingTimeAvg = processingTime
	} else {
		// Simple moving average
		p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
	}
	if processingTime > p.metrics.ProcessingTimeMax {
		p.metrics.ProcessingTimeMax = processingTime
	}
	if err != nil {
		p.metrics.ErrorCount++
	}
}

// GetMetrics returns a copy of the current metrics
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

// logMetrics logs the current metrics
func (p *ProcessingPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, metrics.ProcessedCount, metrics.ErrorCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the job queue
func (p *ProcessingPool) GetQueueLength() int {
	return len(p.jobQueue)
}

// GetQueueCapacity returns the capacity of the job queue
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize
}
