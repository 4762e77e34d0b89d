package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/classifier"
	customlog "github.com/open-teleop/commandbot/pkg/log"
	"github.com/open-teleop/commandbot/pkg/telemetry"
)

// ErrEmptyInput is returned for input that is blank after trimming.
var ErrEmptyInput = errors.New("empty input")

// CodePublisher defines the interface for publishing validated command codes.
// This avoids a direct dependency on the ZeroMQ publisher.
type CodePublisher interface {
	PublishCommandCode(code motion.CommandCode) error
}

// Outcome describes what happened to one input.
type Outcome struct {
	Input    string    `json:"input"`
	Response string    `json:"response,omitempty"`
	Code     int       `json:"code,omitempty"`
	Command  string    `json:"command,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// ErrorCounts counts rejected inputs per error kind.
type ErrorCounts struct {
	EmptyInput        int64 `json:"empty_input"`
	NonNumeric        int64 `json:"non_numeric"`
	OutOfRange        int64 `json:"out_of_range"`
	ClassifierFailure int64 `json:"classifier_failure"`
}

// CommandService defines the interface for turning text inputs into motion.
type CommandService interface {
	// HandleInput classifies text and applies the resulting intent. The
	// returned Outcome is never nil, even when err is not.
	HandleInput(ctx context.Context, text string) (*Outcome, error)
	// Stop halts the robot without consulting the classifier.
	Stop(ctx context.Context) error
	MotionState() motion.State
	LastOutcome() *Outcome
	ErrorCounts() ErrorCounts
	SetCodePublisher(p CodePublisher)
}

// commandService implements the CommandService interface.
type commandService struct {
	classifier    classifier.Classifier
	controller    *motion.Controller
	codePublisher CodePublisher
	logger        customlog.Logger
	tracer        trace.Tracer

	mu     sync.RWMutex
	last   *Outcome
	counts ErrorCounts
}

// NewCommandService creates a new CommandService. The code publisher can be
// set later via SetCodePublisher.
func NewCommandService(cls classifier.Classifier, controller *motion.Controller, logger customlog.Logger) (CommandService, error) {
	if cls == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if controller == nil {
		return nil, fmt.Errorf("motion controller cannot be nil")
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}

	return &commandService{
		classifier: cls,
		controller: controller,
		logger:     logger,
		tracer:     telemetry.Tracer(),
	}, nil
}

// HandleInput runs one input through classification, interpretation and the
// controller. The classifier is called with no lock held.
func (s *commandService) HandleInput(ctx context.Context, text string) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "commandbot.HandleInput")
	defer span.End()

	text = strings.TrimSpace(text)
	outcome := &Outcome{Input: text, At: time.Now()}
	span.SetAttributes(attribute.Int("input.length", len(text)))

	if text == "" {
		return s.reject(span, outcome, ErrEmptyInput)
	}

	s.logger.Infof("Received input: %q", text)

	response, err := s.classify(ctx, text)
	outcome.Response = response
	if err != nil {
		// Callers matching the non-numeric case see classifier failures too.
		return s.reject(span, outcome, fmt.Errorf("%w: %w", motion.ErrNonNumericResponse, err))
	}

	code, err := motion.Interpret(response)
	if err != nil {
		return s.reject(span, outcome, err)
	}

	outcome.Code = int(code)
	outcome.Command = code.String()
	span.SetAttributes(attribute.Int("command.code", int(code)))

	s.apply(code)
	s.record(outcome, nil)
	return outcome, nil
}

func (s *commandService) classify(ctx context.Context, text string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "classifier.Classify")
	defer span.End()

	response, err := s.classifier.Classify(ctx, text)
	if err != nil {
		if !errors.Is(err, motion.ErrClassifierFailure) {
			err = fmt.Errorf("%w: %v", motion.ErrClassifierFailure, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// apply publishes the code, then hands its intent to the controller.
func (s *commandService) apply(code motion.CommandCode) {
	s.mu.RLock()
	publisher := s.codePublisher
	s.mu.RUnlock()

	if publisher != nil {
		if err := publisher.PublishCommandCode(code); err != nil {
			s.logger.Warnf("Failed to publish command code %d: %v", int(code), err)
		}
	}

	s.controller.ApplyIntent(motion.ToIntent(code))
}

func (s *commandService) reject(span trace.Span, outcome *Outcome, err error) (*Outcome, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case errors.Is(err, motion.ErrClassifierFailure):
		s.logger.Errorf("Classifier failed for %q: %v", outcome.Input, err)
	case errors.Is(err, motion.ErrOutOfRangeCommand):
		s.logger.Warnf("Invalid command number: %v", err)
	case errors.Is(err, motion.ErrNonNumericResponse):
		s.logger.Warnf("Classifier did not return a number: %v", err)
	default:
		s.logger.Debugf("Ignoring input: %v", err)
	}

	s.record(outcome, err)
	return outcome, err
}

func (s *commandService) record(outcome *Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		outcome.Error = err.Error()
		switch {
		case errors.Is(err, ErrEmptyInput):
			s.counts.EmptyInput++
		case errors.Is(err, motion.ErrClassifierFailure):
			s.counts.ClassifierFailure++
		case errors.Is(err, motion.ErrOutOfRangeCommand):
			s.counts.OutOfRange++
		case errors.Is(err, motion.ErrNonNumericResponse):
			s.counts.NonNumeric++
		}
	}
	s.last = outcome
}

// Stop publishes the stop code and clears the held motion immediately.
func (s *commandService) Stop(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "commandbot.Stop")
	defer span.End()

	s.apply(motion.CommandStop)
	return nil
}

// MotionState returns the controller's current state.
func (s *commandService) MotionState() motion.State {
	return s.controller.CurrentState()
}

// LastOutcome returns a copy of the most recent input outcome, or nil.
func (s *commandService) LastOutcome() *Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.last == nil {
		return nil
	}
	last := *s.last
	return &last
}

// ErrorCounts returns a copy of the per-kind error counters.
func (s *commandService) ErrorCounts() ErrorCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// SetCodePublisher allows injecting the CodePublisher after initialization.
func (s *commandService) SetCodePublisher(p CodePublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codePublisher = p
	s.logger.Infof("CodePublisher injected into CommandService.")
}
