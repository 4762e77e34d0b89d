package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/commandbot/pkg/config"
	customlog "github.com/open-teleop/commandbot/pkg/log"
	"github.com/open-teleop/commandbot/pkg/processing"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeSubmitInput         = "SUBMIT_INPUT"
	MsgTypeSubmitAck           = "SUBMIT_ACK"
	MsgTypeInputResult         = "INPUT_RESULT"
	MsgTypeMotionStateRequest  = "MOTION_STATE_REQUEST"
	MsgTypeMotionStateResponse = "MOTION_STATE_RESPONSE"
	MsgTypeStopRequest         = "STOP_REQUEST"
	MsgTypeStopAck             = "STOP_ACK"
	MsgTypeError               = "ERROR"
)

const (
	pollTimeout   = 500 * time.Millisecond
	socketTimeout = 1 * time.Second
)

// ZeroMQMessage represents a generic message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// incomingMessage is ZeroMQMessage with the data left undecoded for the handler
type incomingMessage struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse represents an error response message
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler defines the interface for handlers that process specific message types
type MessageHandler interface {
	HandleMessage(data []byte) ([]byte, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(data []byte) ([]byte, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(data []byte) ([]byte, error) {
	return f(data)
}

// InputHandler receives one raw text input from the input topic
type InputHandler func(text string) error

func timestampNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// newResponse serializes a typed response envelope
func newResponse(messageType string, data interface{}) ([]byte, error) {
	resp := ZeroMQMessage{
		Type:      messageType,
		Timestamp: timestampNow(),
		Data:      data,
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s response: %w", messageType, err)
	}
	return out, nil
}

// errorCode maps a handler error to the numeric code carried in ERROR replies
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrUnknownMessageType):
		return 400
	case errors.Is(err, processing.ErrRateLimited):
		return 429
	case errors.Is(err, processing.ErrQueueFull), errors.Is(err, processing.ErrPoolStopped):
		return 503
	default:
		return 500
	}
}

// newErrorResponse builds the ERROR reply for err
func newErrorResponse(err error) []byte {
	data, marshalErr := newResponse(MsgTypeError, ErrorResponse{
		Message: err.Error(),
		Code:    errorCode(err),
	})
	if marshalErr != nil {
		return []byte(`{"type":"ERROR","data":{"message":"internal error","code":500}}`)
	}
	return data
}

// MessageReceiver answers requests on a REP socket
type MessageReceiver struct {
	address    string
	socket     *zmq4.Socket
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     customlog.Logger
	running    atomic.Bool
	wg         *sync.WaitGroup
}

// newMessageReceiver creates a new MessageReceiver
func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger customlog.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	// Timeouts keep shutdown from blocking on a half-finished exchange
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("MessageReceiver initialized on %s", address)

	return &MessageReceiver{
		address:    address,
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		wg:         wg,
	}, nil
}

// Start begins the message receiving loop. The loop owns the socket and
// closes it on exit.
func (r *MessageReceiver) Start() {
	if r.running.Swap(true) {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.socket.Close()
		r.logger.Infof("MessageReceiver started")

		for r.running.Load() {
			sockets, err := r.poller.Poll(pollTimeout)
			if err != nil {
				if r.running.Load() {
					r.logger.Errorf("Error polling request socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running.Load() {
					r.logger.Errorf("Error receiving request: %v", err)
				}
				continue
			}

			r.logger.Debugf("Received request (%d bytes)", len(msg))

			response, err := r.dispatcher.Dispatch(msg)
			if err != nil {
				r.logger.Warnf("Error dispatching request: %v", err)
				response = newErrorResponse(err)
			}

			if _, err := r.socket.SendBytes(response, 0); err != nil && r.running.Load() {
				r.logger.Errorf("Error sending response: %v", err)
			}
		}

		r.logger.Infof("MessageReceiver stopped")
	}()
}

// Stop asks the receiving loop to exit after its current poll
func (r *MessageReceiver) Stop() {
	r.running.Store(false)
}

// MessageSender publishes topic-framed messages on a PUB socket
type MessageSender struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// newMessageSender creates a new MessageSender
func newMessageSender(ctx *zmq4.Context, address string, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("MessageSender initialized on %s", address)

	return &MessageSender{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	// Topic frame first so subscribers can filter on it
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// InputListener receives raw text inputs on a SUB socket
type InputListener struct {
	topic   string
	socket  *zmq4.Socket
	poller  *zmq4.Poller
	logger  customlog.Logger
	running atomic.Bool
	wg      *sync.WaitGroup

	mu      sync.RWMutex
	handler InputHandler
}

// newInputListener creates a SUB socket bound to address and subscribed to topic
func newInputListener(ctx *zmq4.Context, address, topic string, logger customlog.Logger, wg *sync.WaitGroup) (*InputListener, error) {
	socket, err := ctx.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.SetSubscribe(topic); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("InputListener initialized on %s", address)

	return &InputListener{
		topic:  topic,
		socket: socket,
		poller: poller,
		logger: logger,
		wg:     wg,
	}, nil
}

// SetHandler sets the function that receives each decoded input
func (l *InputListener) SetHandler(handler InputHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = handler
}

// Start begins the receive loop. The loop owns the socket and closes it on exit.
func (l *InputListener) Start() {
	if l.running.Swap(true) {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.socket.Close()
		l.logger.Infof("Listening for text input on topic '%s'", l.topic)

		for l.running.Load() {
			sockets, err := l.poller.Poll(pollTimeout)
			if err != nil {
				if l.running.Load() {
					l.logger.Errorf("Error polling input socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			frames, err := l.socket.RecvMessageBytes(0)
			if err != nil {
				if l.running.Load() {
					l.logger.Errorf("Error receiving input: %v", err)
				}
				continue
			}

			text, err := decodeInputFrames(l.topic, frames)
			if err != nil {
				l.logger.Warnf("Discarding input message: %v", err)
				continue
			}

			l.mu.RLock()
			handler := l.handler
			l.mu.RUnlock()

			if handler == nil {
				l.logger.Warnf("No input handler set, discarding input")
				continue
			}
			if err := handler(text); err != nil {
				l.logger.Warnf("Input rejected: %v", err)
			}
		}

		l.logger.Infof("InputListener stopped")
	}()
}

// Stop asks the receive loop to exit after its current poll
func (l *InputListener) Stop() {
	l.running.Store(false)
}

// decodeInputFrames extracts the text from a [topic][text] message. A single
// frame of the form "<topic> <text>" is also accepted.
func decodeInputFrames(topic string, frames [][]byte) (string, error) {
	switch len(frames) {
	case 2:
		if string(frames[0]) != topic {
			return "", fmt.Errorf("%w: unexpected topic '%s'", ErrInvalidMessage, frames[0])
		}
		return string(frames[1]), nil
	case 1:
		frame := string(frames[0])
		if !strings.HasPrefix(frame, topic) {
			return "", fmt.Errorf("%w: missing topic prefix", ErrInvalidMessage)
		}
		rest := frame[len(topic):]
		if rest != "" && rest[0] != ' ' {
			return "", fmt.Errorf("%w: unexpected topic '%s'", ErrInvalidMessage, frame)
		}
		return strings.TrimPrefix(rest, " "), nil
	default:
		return "", fmt.Errorf("%w: expected 2 frames, got %d", ErrInvalidMessage, len(frames))
	}
}

// MessageDispatcher routes messages to the appropriate handlers
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// Dispatch parses a JSON request and routes it to the handler for its type
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg incomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}

	d.logger.Debugf("Dispatching JSON message of type: %s", msg.Type)

	d.mu.RLock()
	handler, exists := d.handlers[msg.Type]
	d.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
	return handler.HandleMessage(data)
}

// ZeroMQService coordinates the input, publish and request sockets. Any of
// them is left out when its address is empty.
type ZeroMQService struct {
	config     config.ZeroMQConfig
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	listener   *InputListener
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	running    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// NewZeroMQService creates and binds the configured sockets
func NewZeroMQService(cfg config.ZeroMQConfig, logger customlog.Logger) (*ZeroMQService, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	s := &ZeroMQService{
		config:     cfg,
		ctx:        ctx,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
	}

	if cfg.PublishAddress != "" {
		if s.sender, err = newMessageSender(ctx, cfg.PublishAddress, logger); err != nil {
			s.closeSockets()
			return nil, err
		}
	}

	if cfg.InputAddress != "" {
		if s.listener, err = newInputListener(ctx, cfg.InputAddress, cfg.InputTopic, logger, &s.wg); err != nil {
			s.closeSockets()
			return nil, err
		}
	}

	if cfg.RequestAddress != "" {
		if s.receiver, err = newMessageReceiver(ctx, cfg.RequestAddress, s.dispatcher, logger, &s.wg); err != nil {
			s.closeSockets()
			return nil, err
		}
	}

	return s, nil
}

// closeSockets releases sockets that were never started, then the context
func (s *ZeroMQService) closeSockets() {
	if s.sender != nil {
		s.sender.Close()
	}
	if s.listener != nil {
		s.listener.socket.Close()
	}
	if s.receiver != nil {
		s.receiver.socket.Close()
	}
	s.ctx.Term()
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func([]byte) ([]byte, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// SetInputHandler sets the function that receives inputs from the input topic
func (s *ZeroMQService) SetInputHandler(handler InputHandler) {
	if s.listener != nil {
		s.listener.SetHandler(handler)
	}
}

// Start begins the ZeroMQ service
func (s *ZeroMQService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.running = true
	s.logger.Infof("Starting ZeroMQ service")

	if s.listener != nil {
		s.listener.Start()
	}
	if s.receiver != nil {
		s.receiver.Start()
	}

	return nil
}

// Stop halts the loops, waits for them and terminates the context
func (s *ZeroMQService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Infof("Stopping ZeroMQ service")
	s.running = false

	if s.listener != nil {
		s.listener.Stop()
	}
	if s.receiver != nil {
		s.receiver.Stop()
	}
	if s.sender != nil {
		s.sender.Close()
	}

	s.logger.Debugf("Waiting for socket goroutines to finish...")
	s.wg.Wait()

	if s.ctx != nil {
		s.ctx.Term()
		s.ctx = nil
	}

	s.logger.Infof("ZeroMQ service stopped")
}

// PublishMessage sends a message with the given topic. Without a publish
// address the message is dropped.
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	if s.sender == nil {
		s.logger.Debugf("No publish socket configured, dropping message on '%s'", topic)
		return nil
	}
	return s.sender.PublishMessage(topic, message)
}
