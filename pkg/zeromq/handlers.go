package zeromq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/open-teleop/commandbot/domain/motion"
	customlog "github.com/open-teleop/commandbot/pkg/log"
	"github.com/open-teleop/commandbot/pkg/processing"
)

// InputSubmitter queues raw text for processing
type InputSubmitter interface {
	Submit(source, text string, done func(result *processing.ProcessResult)) (string, error)
}

// MotionService exposes the held motion and the direct stop path
type MotionService interface {
	Stop(ctx context.Context) error
	MotionState() motion.State
}

// SubmitInputData is the data of a SUBMIT_INPUT request
type SubmitInputData struct {
	Text string `json:"text"`
	// Wait makes the reply carry the processing result instead of an ack
	Wait bool `json:"wait,omitempty"`
}

// SubmitAckData is the data of a SUBMIT_ACK reply
type SubmitAckData struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

// InputResultData is the data of an INPUT_RESULT reply
type InputResultData struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// MotionStateData is the data of MOTION_STATE_RESPONSE and STOP_ACK replies
type MotionStateData struct {
	Phase string       `json:"phase"`
	State motion.State `json:"state"`
}

// parseRequest decodes msg and checks its type
func parseRequest(data []byte, want string) (incomingMessage, error) {
	var msg incomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type != want {
		return msg, fmt.Errorf("%w: unexpected message type: %s", ErrInvalidMessage, msg.Type)
	}
	return msg, nil
}

// SubmitInputHandler handles SUBMIT_INPUT requests
type SubmitInputHandler struct {
	submitter   InputSubmitter
	waitTimeout time.Duration
	logger      customlog.Logger
}

// NewSubmitInputHandler creates a handler that queues inputs. Waiting
// requests give up after waitTimeout.
func NewSubmitInputHandler(submitter InputSubmitter, waitTimeout time.Duration, logger customlog.Logger) *SubmitInputHandler {
	return &SubmitInputHandler{
		submitter:   submitter,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

// HandleMessage processes a SUBMIT_INPUT message
func (h *SubmitInputHandler) HandleMessage(data []byte) ([]byte, error) {
	msg, err := parseRequest(data, MsgTypeSubmitInput)
	if err != nil {
		return nil, err
	}

	var req SubmitInputData
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidMessage)
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidMessage)
	}

	var results chan *processing.ProcessResult
	var done func(*processing.ProcessResult)
	if req.Wait {
		results = make(chan *processing.ProcessResult, 1)
		done = func(result *processing.ProcessResult) { results <- result }
	}

	id, err := h.submitter.Submit(processing.SourceRequest, req.Text, done)
	if err != nil {
		return nil, err
	}

	if !req.Wait {
		return newResponse(MsgTypeSubmitAck, SubmitAckData{ID: id, Queued: true})
	}

	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()

	select {
	case result := <-results:
		resp := InputResultData{ID: id, Result: result.Value}
		if result.Error != nil {
			resp.Error = result.Error.Error()
		}
		return newResponse(MsgTypeInputResult, resp)
	case <-timer.C:
		h.logger.Warnf("Timed out waiting for input %s", id)
		return newResponse(MsgTypeSubmitAck, SubmitAckData{ID: id, Queued: true})
	}
}

// MotionStateHandler handles MOTION_STATE_REQUEST messages
type MotionStateHandler struct {
	motion MotionService
}

// NewMotionStateHandler creates a new handler for motion state requests
func NewMotionStateHandler(svc MotionService) *MotionStateHandler {
	return &MotionStateHandler{motion: svc}
}

// HandleMessage processes a MOTION_STATE_REQUEST message
func (h *MotionStateHandler) HandleMessage(data []byte) ([]byte, error) {
	if _, err := parseRequest(data, MsgTypeMotionStateRequest); err != nil {
		return nil, err
	}
	state := h.motion.MotionState()
	return newResponse(MsgTypeMotionStateResponse, MotionStateData{Phase: state.Phase(), State: state})
}

// StopHandler handles STOP_REQUEST messages
type StopHandler struct {
	motion MotionService
	logger customlog.Logger
}

// NewStopHandler creates a new handler for stop requests
func NewStopHandler(svc MotionService, logger customlog.Logger) *StopHandler {
	return &StopHandler{motion: svc, logger: logger}
}

// HandleMessage processes a STOP_REQUEST message
func (h *StopHandler) HandleMessage(data []byte) ([]byte, error) {
	if _, err := parseRequest(data, MsgTypeStopRequest); err != nil {
		return nil, err
	}

	h.logger.Infof("Stop requested over ZeroMQ")
	if err := h.motion.Stop(context.Background()); err != nil {
		return nil, err
	}

	state := h.motion.MotionState()
	return newResponse(MsgTypeStopAck, MotionStateData{Phase: state.Phase(), State: state})
}

// RegisterRequestHandlers registers the request handlers on the service
func RegisterRequestHandlers(
	service *ZeroMQService,
	submitter InputSubmitter,
	motionSvc MotionService,
	waitTimeout time.Duration,
	logger customlog.Logger,
) {
	service.RegisterHandler(MsgTypeSubmitInput, NewSubmitInputHandler(submitter, waitTimeout, logger))
	service.RegisterHandler(MsgTypeMotionStateRequest, NewMotionStateHandler(motionSvc))
	service.RegisterHandler(MsgTypeStopRequest, NewStopHandler(motionSvc, logger))

	logger.Infof("Registered request handlers")
}
