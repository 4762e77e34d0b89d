package motion

import (
	"context"
	"sync"
	"time"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// DefaultTickInterval is how often the held velocity is re-published.
const DefaultTickInterval = 100 * time.Millisecond

// Sink receives velocity commands. It keeps no memory of earlier commands.
type Sink interface {
	PublishVelocity(v Velocity) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(v Velocity) error

// PublishVelocity calls the function
func (f SinkFunc) PublishVelocity(v Velocity) error {
	return f(v)
}

// State is a snapshot of the held motion.
type State struct {
	Active  bool     `json:"active"`
	Current Velocity `json:"current"`
}

// Phase names the two logical controller states.
func (s State) Phase() string {
	if s.Active {
		return "MOVING"
	}
	return "IDLE"
}

// Stats counts controller activity since start-up.
type Stats struct {
	MovesApplied int64 `json:"moves_applied"`
	StopsApplied int64 `json:"stops_applied"`
	Ticks        int64 `json:"ticks"`
	Emissions    int64 `json:"emissions"`
	SinkErrors   int64 `json:"sink_errors"`
}

// Controller owns the single motion state. ApplyIntent and Tick are mutually
// exclusive and emit while holding the lock, so a tick can never publish a
// velocity that a concurrent Stop already cleared. Sinks must not call back
// into the Controller.
type Controller struct {
	sink     Sink
	logger   customlog.Logger
	interval time.Duration

	mu    sync.Mutex
	state State
	stats Stats
}

// NewController creates an idle controller. A zero interval selects
// DefaultTickInterval.
func NewController(sink Sink, interval time.Duration, logger customlog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &Controller{
		sink:     sink,
		logger:   logger,
		interval: interval,
	}
}

// Interval returns the tick period.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// ApplyIntent replaces the held motion. A Stop also publishes one zero
// velocity before returning, even when the controller is already idle.
func (c *Controller) ApplyIntent(intent Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch intent.Kind {
	case IntentStop:
		c.state = State{}
		c.stats.StopsApplied++
		c.emitLocked(Velocity{})
		c.logger.Infof("Stop command received. Robot stopped immediately.")
	default:
		c.state = State{Active: true, Current: intent.Velocity}
		c.stats.MovesApplied++
		c.logger.Infof("Holding %s until a new command arrives", intent)
	}
}

// Tick publishes the held velocity when active and does nothing when idle.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Ticks++
	if !c.state.Active {
		return
	}
	c.emitLocked(c.state.Current)
}

// CurrentState returns a consistent snapshot.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a copy of the counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run ticks on a fixed period until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Infof("Motion controller ticking every %s", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("Motion controller stopped")
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

func (c *Controller) emitLocked(v Velocity) {
	c.stats.Emissions++
	if c.sink == nil {
		return
	}
	if err := c.sink.PublishVelocity(v); err != nil {
		c.stats.SinkErrors++
		c.logger.Errorf("Failed to publish velocity (linear=%.2f, angular=%.2f): %v", v.Linear, v.Angular, err)
	}
}
