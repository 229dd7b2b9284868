// Package turn runs the robot's turn-taking loop.
//
// A single goroutine owns the turn state and the idle timer. Each Step
// advances the state machine by exactly one state:
//
//	IDLE -> ARMED -> CAPTURING -> RECOGNIZING -> GENERATING -> SPEAKING -> IDLE
//
// Any state moves to SHUTTING_DOWN once cancellation is observed.
package turn

import (
	"fmt"
	"time"
)

// State is a turn state.
type State int

const (
	Idle State = iota
	Armed
	Capturing
	Recognizing
	Generating
	Speaking
	ShuttingDown
)

var stateNames = [...]string{
	Idle:         "IDLE",
	Armed:        "ARMED",
	Capturing:    "CAPTURING",
	Recognizing:  "RECOGNIZING",
	Generating:   "GENERATING",
	Speaking:     "SPEAKING",
	ShuttingDown: "SHUTTING_DOWN",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Busy reports whether a turn is in flight.
func (s State) Busy() bool {
	return s != Idle && s != ShuttingDown
}

// TurnState is owned by the orchestrator loop.
type TurnState struct {
	State        State
	TurnID       string
	LastActivity time.Time
	ArmedAt      time.Time
	Window       []float32
	Transcript   string
	Reply        string
}

// reset clears per-turn fields and returns to IDLE.
func (t *TurnState) reset(now time.Time) {
	*t = TurnState{State: Idle, LastActivity: now}
}

// Snapshot is a copy of the loop state safe to hand to other goroutines.
type Snapshot struct {
	State        State     `json:"state"`
	TurnID       string    `json:"turn_id,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	WindowMs     int       `json:"window_ms"`
	Transcript   string    `json:"transcript,omitempty"`
	Reply        string    `json:"reply,omitempty"`
	Turns        int       `json:"turns"`
	Blinks       int       `json:"blinks"`
	LastBlink    time.Time `json:"last_blink"`
}
