// Package motion turns classifier output into velocity intents and holds the
// last commanded motion so it can be re-published on a fixed cadence.
package motion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Interpretation errors. All of them leave the controller state unchanged.
var (
	ErrNonNumericResponse = errors.New("non-numeric classifier response")
	ErrOutOfRangeCommand  = errors.New("command code out of range")
	ErrClassifierFailure  = errors.New("classifier failure")
)

// CommandCode is a validated command number in 1..5.
type CommandCode int

// Valid command codes
const (
	CommandForward   CommandCode = 1
	CommandBackward  CommandCode = 2
	CommandTurnRight CommandCode = 3
	CommandTurnLeft  CommandCode = 4
	CommandStop      CommandCode = 5
)

// Speed is the magnitude used for every move command.
const Speed = 0.5

func (c CommandCode) String() string {
	switch c {
	case CommandForward:
		return "forward"
	case CommandBackward:
		return "backward"
	case CommandTurnRight:
		return "turn_right"
	case CommandTurnLeft:
		return "turn_left"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("invalid(%d)", int(c))
	}
}

// Valid reports whether c is one of the five known commands.
func (c CommandCode) Valid() bool {
	return c >= CommandForward && c <= CommandStop
}

// Velocity is a planar velocity command: linear along x, angular about z.
type Velocity struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// IsZero reports whether v is the stop velocity.
func (v Velocity) IsZero() bool {
	return v.Linear == 0 && v.Angular == 0
}

// IntentKind tags an Intent.
type IntentKind int

const (
	IntentMove IntentKind = iota
	IntentStop
)

func (k IntentKind) String() string {
	if k == IntentStop {
		return "stop"
	}
	return "move"
}

// Intent is either a Move carrying a Velocity or a Stop with no payload.
type Intent struct {
	Kind     IntentKind
	Velocity Velocity
}

// Move builds a move intent.
func Move(linear, angular float64) Intent {
	return Intent{Kind: IntentMove, Velocity: Velocity{Linear: linear, Angular: angular}}
}

// Stop builds a stop intent.
func Stop() Intent {
	return Intent{Kind: IntentStop}
}

func (i Intent) String() string {
	if i.Kind == IntentStop {
		return "Stop"
	}
	return fmt.Sprintf("Move{linear=%.2f, angular=%.2f}", i.Velocity.Linear, i.Velocity.Angular)
}

// Interpret validates raw classifier output. Surrounding whitespace is
// ignored; what remains must be ASCII digits naming a code in 1..5.
func Interpret(raw string) (CommandCode, error) {
	text := strings.TrimSpace(raw)
	if !isDigits(text) {
		return 0, fmt.Errorf("%w: %q", ErrNonNumericResponse, text)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		// Only ErrRange is possible here; the value is numeric but huge.
		return 0, fmt.Errorf("%w: %s", ErrOutOfRangeCommand, text)
	}
	return ParseCommandCode(n)
}

// ParseCommandCode converts an integer to a CommandCode.
func ParseCommandCode(n int) (CommandCode, error) {
	code := CommandCode(n)
	if !code.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRangeCommand, n)
	}
	return code, nil
}

// ToIntent maps a valid code to its fixed intent.
func ToIntent(code CommandCode) Intent {
	switch code {
	case CommandForward:
		return Move(Speed, 0.0)
	case CommandBackward:
		return Move(-Speed, 0.0)
	case CommandTurnRight:
		return Move(0.0, Speed)
	case CommandTurnLeft:
		return Move(0.0, -Speed)
	default:
		return Stop()
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
