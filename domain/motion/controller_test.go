package motion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects every published velocity.
type recordingSink struct {
	mu   sync.Mutex
	sent []Velocity
	err  error
}

func (s *recordingSink) PublishVelocity(v Velocity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, v)
	return s.err
}

func (s *recordingSink) Sent() []Velocity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Velocity, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestControllerStartsIdle(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, 0, nil)

	assert.Equal(t, State{}, c.CurrentState())
	assert.Equal(t, "IDLE", c.CurrentState().Phase())
	assert.Equal(t, DefaultTickInterval, c.Interval())

	for i := 0; i < 5; i++ {
		c.Tick()
	}
	assert.Empty(t, sink.Sent())
}

func TestTickRepublishesHeldVelocity(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, time.Millisecond, nil)

	c.ApplyIntent(Move(0.5, 0.0))
	assert.Empty(t, sink.Sent(), "move must not emit outside the tick")

	for i := 0; i < 4; i++ {
		c.Tick()
	}
	want := Velocity{Linear: 0.5}
	assert.Equal(t, []Velocity{want, want, want, want}, sink.Sent())
	assert.Equal(t, State{Active: true, Current: want}, c.CurrentState())
}

func TestLaterMoveOverridesEarlier(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, time.Millisecond, nil)

	c.ApplyIntent(Move(0.5, 0.0))
	c.ApplyIntent(Move(0.0, -0.5))
	c.Tick()

	assert.Equal(t, []Velocity{{Linear: 0.0, Angular: -0.5}}, sink.Sent())
}

func TestStopEmitsImmediatelyAndClearsState(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, time.Millisecond, nil)

	c.ApplyIntent(Move(-0.5, 0.0))
	c.ApplyIntent(Stop())

	require.Equal(t, []Velocity{{}}, sink.Sent())
	assert.Equal(t, State{}, c.CurrentState())

	c.Tick()
	c.Tick()
	assert.Len(t, sink.Sent(), 1, "ticks after stop emit nothing")

	c.ApplyIntent(Move(0.0, 0.5))
	c.Tick()
	assert.Equal(t, []Velocity{{}, {Angular: 0.5}}, sink.Sent())
}

func TestStopWhileIdleStillEmits(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, time.Millisecond, nil)

	c.ApplyIntent(Stop())
	c.ApplyIntent(Stop())

	assert.Equal(t, []Velocity{{}, {}}, sink.Sent())
	assert.Equal(t, int64(2), c.Stats().StopsApplied)
}

func TestSinkErrorsDoNotChangeState(t *testing.T) {
	sink := &recordingSink{err: errors.New("socket closed")}
	c := NewController(sink, time.Millisecond, nil)

	c.ApplyIntent(Move(0.5, 0.0))
	c.Tick()
	c.ApplyIntent(Stop())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.SinkErrors)
	assert.Equal(t, int64(2), stats.Emissions)
	assert.Equal(t, State{}, c.CurrentState())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, 5*time.Millisecond, nil)
	c.ApplyIntent(Move(0.5, 0.0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.Sent()) >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	for _, v := range sink.Sent() {
		assert.Equal(t, Velocity{Linear: 0.5}, v)
	}
}

// Every emitted velocity must be one of the pairs that was applied as a whole.
func TestConcurrentApplyAndTickNeverTear(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, time.Millisecond, nil)

	intents := []Intent{Move(0.5, 0.0), Move(-0.5, 0.0), Move(0.0, 0.5), Move(0.0, -0.5), Stop()}
	allowed := map[Velocity]bool{{}: true}
	for _, in := range intents {
		allowed[in.Velocity] = true
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			c.ApplyIntent(intents[i%len(intents)])
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			c.Tick()
		}
	}()
	wg.Wait()

	for _, v := range sink.Sent() {
		assert.True(t, allowed[v], "torn velocity %+v", v)
	}
}
