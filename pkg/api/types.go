package api

import "github.com/open-teleop/commandbot/domain/motion"

// Vector3 defines a standard 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TwistMsg represents a command velocity message, matching geometry_msgs/Twist.
type TwistMsg struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// TwistFromVelocity expands a planar velocity into a Twist.
func TwistFromVelocity(v motion.Velocity) TwistMsg {
	return TwistMsg{
		Linear:  Vector3{X: v.Linear},
		Angular: Vector3{Z: v.Angular},
	}
}

// CommandRequest is the JSON body of POST /api/v1/command and of websocket
// frames that are not plain text.
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandAccepted is returned when an input has been queued.
type CommandAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InputResult reports the processing result of one input.
type InputResult struct {
	ID      string `json:"id"`
	Input   string `json:"input"`
	Code    int    `json:"code,omitempty"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MotionResponse describes the held motion.
type MotionResponse struct {
	Phase  string   `json:"phase"`
	Active bool     `json:"active"`
	Twist  TwistMsg `json:"twist"`
}

func newMotionResponse(state motion.State) MotionResponse {
	return MotionResponse{
		Phase:  state.Phase(),
		Active: state.Active,
		Twist:  TwistFromVelocity(state.Current),
	}
}
