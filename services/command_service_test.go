package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/classifier"
	customlog "github.com/open-teleop/commandbot/pkg/log"
)

type recordingSink struct {
	mu        sync.Mutex
	published []motion.Velocity
}

func (r *recordingSink) PublishVelocity(v motion.Velocity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, v)
	return nil
}

func (r *recordingSink) all() []motion.Velocity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Velocity(nil), r.published...)
}

type recordingCodes struct {
	codes []motion.CommandCode
	err   error
}

func (r *recordingCodes) PublishCommandCode(code motion.CommandCode) error {
	r.codes = append(r.codes, code)
	return r.err
}

// fixedClassifier answers every input from a table.
func fixedClassifier(answers map[string]string) classifier.Classifier {
	return classifier.Func(func(ctx context.Context, text string) (string, error) {
		answer, ok := answers[text]
		if !ok {
			return "", errors.New("model unavailable")
		}
		return answer, nil
	})
}

func newTestService(t *testing.T, cls classifier.Classifier) (CommandService, *motion.Controller, *recordingSink, *recordingCodes) {
	t.Helper()
	sink := &recordingSink{}
	controller := motion.NewController(sink, 0, customlog.NewNopLogger())
	svc, err := NewCommandService(cls, controller, customlog.NewNopLogger())
	require.NoError(t, err)
	codes := &recordingCodes{}
	svc.SetCodePublisher(codes)
	return svc, controller, sink, codes
}

func TestHandleInputForwardThenTicks(t *testing.T) {
	svc, controller, sink, codes := newTestService(t, fixedClassifier(map[string]string{"go forward": "1"}))

	outcome, err := svc.HandleInput(context.Background(), "  go forward\n")
	require.NoError(t, err)
	assert.Equal(t, "go forward", outcome.Input)
	assert.Equal(t, 1, outcome.Code)
	assert.Equal(t, "forward", outcome.Command)
	assert.Empty(t, outcome.Error)

	assert.Equal(t, motion.State{Active: true, Current: motion.Velocity{Linear: 0.5}}, svc.MotionState())
	assert.Equal(t, []motion.CommandCode{motion.CommandForward}, codes.codes)
	assert.Empty(t, sink.all(), "a move is only published by ticks")

	controller.Tick()
	controller.Tick()
	controller.Tick()
	assert.Equal(t, []motion.Velocity{{Linear: 0.5}, {Linear: 0.5}, {Linear: 0.5}}, sink.all())
}

func TestHandleInputStopEmitsImmediately(t *testing.T) {
	svc, controller, sink, codes := newTestService(t, fixedClassifier(map[string]string{
		"left": "4",
		"halt": "5",
	}))

	_, err := svc.HandleInput(context.Background(), "left")
	require.NoError(t, err)
	controller.Tick()

	_, err = svc.HandleInput(context.Background(), "halt")
	require.NoError(t, err)

	assert.Equal(t, []motion.Velocity{{Angular: -0.5}, {}}, sink.all())
	assert.Equal(t, motion.State{}, svc.MotionState())
	assert.Equal(t, []motion.CommandCode{motion.CommandTurnLeft, motion.CommandStop}, codes.codes)

	controller.Tick()
	assert.Len(t, sink.all(), 2, "idle ticks publish nothing")
}

func TestHandleInputRejectionsKeepState(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		count   func(ErrorCounts) int64
	}{
		{"out of range", "spin", motion.ErrOutOfRangeCommand, func(c ErrorCounts) int64 { return c.OutOfRange }},
		{"zero", "nothing", motion.ErrOutOfRangeCommand, func(c ErrorCounts) int64 { return c.OutOfRange }},
		{"non-numeric", "chat", motion.ErrNonNumericResponse, func(c ErrorCounts) int64 { return c.NonNumeric }},
		{"classifier failure", "unknown", motion.ErrClassifierFailure, func(c ErrorCounts) int64 { return c.ClassifierFailure }},
		{"empty", "   ", ErrEmptyInput, func(c ErrorCounts) int64 { return c.EmptyInput }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, controller, sink, codes := newTestService(t, fixedClassifier(map[string]string{
				"back":    "2",
				"spin":    "7",
				"nothing": "0",
				"chat":    "abc",
			}))

			_, err := svc.HandleInput(context.Background(), "back")
			require.NoError(t, err)
			before := svc.MotionState()

			outcome, err := svc.HandleInput(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, outcome)
			assert.NotEmpty(t, outcome.Error)
			assert.Zero(t, outcome.Code)

			assert.Equal(t, before, svc.MotionState())
			assert.Equal(t, []motion.CommandCode{motion.CommandBackward}, codes.codes)
			assert.EqualValues(t, 1, tt.count(svc.ErrorCounts()))

			controller.Tick()
			assert.Equal(t, []motion.Velocity{{Linear: -0.5}}, sink.all())
		})
	}
}

func TestClassifierFailureAlsoMatchesNonNumeric(t *testing.T) {
	svc, _, _, _ := newTestService(t, fixedClassifier(nil))

	_, err := svc.HandleInput(context.Background(), "anything")
	assert.ErrorIs(t, err, motion.ErrClassifierFailure)
	assert.ErrorIs(t, err, motion.ErrNonNumericResponse)

	counts := svc.ErrorCounts()
	assert.EqualValues(t, 1, counts.ClassifierFailure)
	assert.Zero(t, counts.NonNumeric)
}

func TestLastInputWins(t *testing.T) {
	svc, controller, sink, _ := newTestService(t, fixedClassifier(map[string]string{
		"forward": "1",
		"right":   "3",
	}))

	_, err := svc.HandleInput(context.Background(), "forward")
	require.NoError(t, err)
	_, err = svc.HandleInput(context.Background(), "right")
	require.NoError(t, err)

	controller.Tick()
	assert.Equal(t, []motion.Velocity{{Angular: 0.5}}, sink.all())

	last := svc.LastOutcome()
	require.NotNil(t, last)
	assert.Equal(t, "right", last.Input)
	assert.Equal(t, "turn_right", last.Command)
}

func TestStopWithoutClassifier(t *testing.T) {
	called := false
	cls := classifier.Func(func(ctx context.Context, text string) (string, error) {
		called = true
		return "1", nil
	})
	svc, _, sink, codes := newTestService(t, cls)

	require.NoError(t, svc.Stop(context.Background()))

	assert.False(t, called)
	assert.Equal(t, []motion.Velocity{{}}, sink.all(), "stop while idle still publishes zero")
	assert.Equal(t, []motion.CommandCode{motion.CommandStop}, codes.codes)
	assert.Nil(t, svc.LastOutcome())
}

func TestCodePublishFailureStillApplies(t *testing.T) {
	svc, _, _, codes := newTestService(t, fixedClassifier(map[string]string{"go": "1"}))
	codes.err = errors.New("socket closed")

	_, err := svc.HandleInput(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, svc.MotionState().Active)
}

func TestNewCommandServiceRequiresDependencies(t *testing.T) {
	controller := motion.NewController(nil, 0, nil)

	_, err := NewCommandService(nil, controller, nil)
	assert.Error(t, err)

	_, err = NewCommandService(fixedClassifier(nil), nil, nil)
	assert.Error(t, err)
}
