package api

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/commandbot/pkg/log"
	"github.com/open-teleop/commandbot/pkg/processing"
	"github.com/open-teleop/commandbot/services"
)

// RegisterWebSocketRoutes registers the command websocket at /ws/command.
func RegisterWebSocketRoutes(app *fiber.App, submitter InputSubmitter, logger customlog.Logger) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/command", websocket.New(func(conn *websocket.Conn) {
		CommandWebSocketHandler(conn, logger, submitter)
	}))

	logger.Infof("Registered command WebSocket under /ws/command")
}

// frameText extracts the input from a text frame: either {"text": "..."}
// or the frame itself.
func frameText(msg []byte) string {
	trimmed := strings.TrimSpace(string(msg))
	if strings.HasPrefix(trimmed, "{") {
		var req CommandRequest
		if err := json.Unmarshal(msg, &req); err == nil {
			return req.Text
		}
	}
	return string(msg)
}

// resultFromProcess converts a pool result into the websocket reply.
func resultFromProcess(id string, result *processing.ProcessResult) InputResult {
	reply := InputResult{ID: id}
	if result.Job != nil {
		reply.Input = strings.TrimSpace(result.Job.Text)
	}
	if outcome, ok := result.Value.(*services.Outcome); ok && outcome != nil {
		reply.Input = outcome.Input
		reply.Code = outcome.Code
		reply.Command = outcome.Command
	}
	if result.Error != nil {
		reply.Error = result.Error.Error()
	}
	return reply
}

// wsWriter serializes writes from the read loop and the pool workers.
type wsWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger customlog.Logger
}

func (w *wsWriter) writeJSON(v interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(v); err != nil {
		w.logger.Debugf("Command WS write failed: %v", err)
	}
}

// CommandWebSocketHandler reads one input per text frame and replies with
// its result once processed.
func CommandWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, submitter InputSubmitter) {
	logger.Infof("Command WebSocket connected: %s", conn.RemoteAddr())
	writer := &wsWriter{conn: conn, logger: logger}

	// Replies still pending when the client leaves must not write to a closed conn
	var pending sync.WaitGroup
	defer pending.Wait()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Command WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Command WS connection closed: %v", err)
			} else {
				logger.Infof("Command WS connection closed normally.")
			}
			break
		}

		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Command WS message type: %d", mt)
			continue
		}

		text := frameText(msg)
		if strings.TrimSpace(text) == "" {
			writer.writeJSON(InputResult{Error: services.ErrEmptyInput.Error()})
			continue
		}

		pending.Add(1)
		id, err := submitter.Submit(processing.SourceWebSocket, text, func(result *processing.ProcessResult) {
			defer pending.Done()
			writer.writeJSON(resultFromProcess(result.Job.ID, result))
		})
		if err != nil {
			pending.Done()
			logger.Warnf("Rejected WS command: %v", err)
			writer.writeJSON(InputResult{ID: id, Input: strings.TrimSpace(text), Error: err.Error()})
		}
	}

	logger.Infof("Command WebSocket disconnected: %s", conn.RemoteAddr())
}
