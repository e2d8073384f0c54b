package command

import "time"

// State is the lifecycle state of a Command.
type State int

const (
	// Idle means no execution is in flight.
	Idle State = iota

	// Executing means a body is running or waiting to run.
	Executing

	// Completed means the last execution returned without error.
	Completed

	// Canceled means the last execution was canceled. Not an error.
	Canceled

	// Faulted means the last execution failed or panicked.
	Faulted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends an execution.
func (s State) Terminal() bool {
	return s == Completed || s == Canceled || s == Faulted
}

// Result describes one finished execution.
type Result struct {
	// Seq numbers executions of one command from 1.
	Seq uint64

	// State is Completed, Canceled or Faulted.
	State State

	// Err is the fault. Nil unless State is Faulted.
	Err error

	// Started is when the execution was requested.
	Started time.Time

	// Duration is the time from Start until the execution resolved.
	Duration time.Duration
}
