package test

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/commandbot/pkg/zeromq"
)

// These tests talk to a running commandbot with the sample config
// (config/commandbot.yaml). Run them manually with COMMANDBOT_ZMQ_LIVE=1.
func requireLive(t *testing.T) {
	t.Helper()
	if os.Getenv("COMMANDBOT_ZMQ_LIVE") != "1" {
		t.Skip("set COMMANDBOT_ZMQ_LIVE=1 to run against a live commandbot")
	}
}

// Message represents a generic message structure for ZeroMQ communication
type Message struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func request(t *testing.T, req map[string]interface{}) Message {
	t.Helper()

	ctx, err := zmq4.NewContext()
	if err != nil {
		t.Fatalf("Failed to create ZMQ context: %v", err)
	}
	defer ctx.Term()

	socket, err := ctx.NewSocket(zmq4.REQ)
	if err != nil {
		t.Fatalf("Failed to create REQ socket: %v", err)
	}
	defer socket.Close()
	socket.SetLinger(0)

	if err := socket.Connect("tcp://localhost:5562"); err != nil {
		t.Fatalf("Failed to connect to commandbot: %v", err)
	}

	req["timestamp"] = float64(time.Now().Unix())
	reqData, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	if _, err := socket.SendBytes(reqData, 0); err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}

	socket.SetRcvtimeo(35 * time.Second)
	respData, err := socket.RecvBytes(0)
	if err != nil {
		t.Fatalf("Failed to receive response: %v", err)
	}

	var resp Message
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return resp
}

// TestMotionStateRequest asks for the held motion
func TestMotionStateRequest(t *testing.T) {
	requireLive(t)

	resp := request(t, map[string]interface{}{"type": zeromq.MsgTypeMotionStateRequest})
	if resp.Type != zeromq.MsgTypeMotionStateResponse {
		t.Errorf("Expected response type '%s', got '%s'", zeromq.MsgTypeMotionStateResponse, resp.Type)
	}
	fmt.Printf("Motion state: %s\n", resp.Data)
}

// TestSubmitAndStop submits a text input, waits for its result and stops
func TestSubmitAndStop(t *testing.T) {
	requireLive(t)

	resp := request(t, map[string]interface{}{
		"type": zeromq.MsgTypeSubmitInput,
		"data": map[string]interface{}{"text": "drive forward", "wait": true},
	})
	if resp.Type != zeromq.MsgTypeInputResult && resp.Type != zeromq.MsgTypeSubmitAck {
		t.Errorf("Unexpected response type '%s': %s", resp.Type, resp.Data)
	}
	fmt.Printf("Submit result: %s\n", resp.Data)

	resp = request(t, map[string]interface{}{"type": zeromq.MsgTypeStopRequest})
	if resp.Type != zeromq.MsgTypeStopAck {
		t.Errorf("Expected response type '%s', got '%s'", zeromq.MsgTypeStopAck, resp.Type)
	}
}

// TestVelocitySubscriber prints velocity commands for a few seconds
func TestVelocitySubscriber(t *testing.T) {
	requireLive(t)

	ctx, err := zmq4.NewContext()
	if err != nil {
		t.Fatalf("Failed to create ZMQ context: %v", err)
	}
	defer ctx.Term()

	socket, err := ctx.NewSocket(zmq4.SUB)
	if err != nil {
		t.Fatalf("Failed to create SUB socket: %v", err)
	}
	defer socket.Close()
	socket.SetLinger(0)

	if err := socket.Connect("tcp://localhost:5561"); err != nil {
		t.Fatalf("Failed to connect to commandbot: %v", err)
	}
	if err := socket.SetSubscribe("cmd_vel"); err != nil {
		t.Fatalf("Failed to set subscription: %v", err)
	}
	socket.SetRcvtimeo(1 * time.Second)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frames, err := socket.RecvMessageBytes(0)
		if err != nil {
			continue
		}
		if len(frames) != 2 {
			t.Errorf("Expected 2 frames, got %d", len(frames))
			continue
		}
		v, err := zeromq.DecodeVelocity(frames[1])
		if err != nil {
			t.Errorf("Failed to decode velocity: %v", err)
			continue
		}
		fmt.Printf("cmd_vel linear=%.2f angular=%.2f\n", v.Linear, v.Angular)
	}
}

// TestPublishInput sends one text input on the input topic
func TestPublishInput(t *testing.T) {
	requireLive(t)

	ctx, err := zmq4.NewContext()
	if err != nil {
		t.Fatalf("Failed to create ZMQ context: %v", err)
	}
	defer ctx.Term()

	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		t.Fatalf("Failed to create PUB socket: %v", err)
	}
	defer socket.Close()
	socket.SetLinger(time.Second)

	if err := socket.Connect("tcp://localhost:5560"); err != nil {
		t.Fatalf("Failed to connect to commandbot: %v", err)
	}
	// Give the subscription time to propagate
	time.Sleep(500 * time.Millisecond)

	if _, err := socket.SendMessage("ollama_input", "turn left"); err != nil {
		t.Fatalf("Failed to publish input: %v", err)
	}
}
