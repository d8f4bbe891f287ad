// Package actuator turns per-frame verdicts into debounced reject commands and
// delivers them to the reject device over a serial link.
package actuator

import (
	"fmt"
	"time"
)

// Defaults for the debounce timing.
const (
	DefaultHoldDuration = 5 * time.Second
	DefaultCooldown     = 1 * time.Second
)

// State is the actuator's debounced condition.
type State int

const (
	StateClear State = iota
	StateDefectHolding
)

func (s State) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateDefectHolding:
		return "defect_holding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON and logs.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Command is an instruction for the reject device.
type Command int

const (
	CommandNone Command = iota
	CommandClear
	CommandDefect
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandClear:
		return "clear"
	case CommandDefect:
		return "defect"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// MarshalText renders the command name.
func (c Command) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Token is the newline-terminated wire form, empty for CommandNone.
func (c Command) Token() string {
	switch c {
	case CommandClear:
		return "clear\n"
	case CommandDefect:
		return "defect\n"
	default:
		return ""
	}
}

// Transition reports the outcome of one Step.
type Transition struct {
	From             State         `json:"from"`
	To               State         `json:"to"`
	Command          Command       `json:"command"`
	Emitted          bool          `json:"emitted"`
	At               time.Time     `json:"at"`
	SinceLastCommand time.Duration `json:"since_last_command,omitempty"`
	WithinCooldown   bool          `json:"within_cooldown,omitempty"`
}

// Snapshot is a copy of the machine's state for reporting.
type Snapshot struct {
	State         State      `json:"state"`
	HoldDeadline  *time.Time `json:"hold_deadline,omitempty"`
	LastCommand   Command    `json:"last_command"`
	LastCommandAt *time.Time `json:"last_command_at,omitempty"`
}

// StateMachine debounces verdicts into commands. A command is produced only
// on a state change, never per frame. It is not safe for concurrent use.
type StateMachine struct {
	hold     time.Duration
	cooldown time.Duration

	state        State
	holdDeadline time.Time
	lastCommand  Command
	lastSent     time.Time
}

// NewStateMachine creates a machine in StateClear. A non-positive hold or a
// negative cooldown falls back to the default; a zero cooldown disables the
// advisory spacing.
func NewStateMachine(hold, cooldown time.Duration) *StateMachine {
	if hold <= 0 {
		hold = DefaultHoldDuration
	}
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &StateMachine{hold: hold, cooldown: cooldown}
}

// Step applies one frame's verdict observed at t.
//
// Without an object, a held defect is released only once the deadline has
// passed. With an object, a defect arms the hold (without extending an active
// one) and a clean object clears immediately.
func (m *StateMachine) Step(t time.Time, present, defective bool) Transition {
	tr := Transition{From: m.state, To: m.state, At: t}

	switch {
	case !present:
		if m.state == StateDefectHolding && !t.Before(m.holdDeadline) {
			tr.To, tr.Command = StateClear, CommandClear
		}
	case defective:
		if m.state != StateDefectHolding {
			tr.To, tr.Command = StateDefectHolding, CommandDefect
		}
	default:
		if m.state != StateClear {
			tr.To, tr.Command = StateClear, CommandClear
		}
	}

	if tr.Command == CommandNone {
		return tr
	}

	tr.Emitted = true
	if m.lastCommand != CommandNone {
		tr.SinceLastCommand = t.Sub(m.lastSent)
		tr.WithinCooldown = tr.SinceLastCommand < m.cooldown
	}

	m.state = tr.To
	m.lastCommand = tr.Command
	m.lastSent = t
	if m.state == StateDefectHolding {
		m.holdDeadline = t.Add(m.hold)
	} else {
		m.holdDeadline = time.Time{}
	}
	return tr
}

// State returns the current state.
func (m *StateMachine) State() State { return m.state }

// HoldDeadline returns the deadline while holding.
func (m *StateMachine) HoldDeadline() (time.Time, bool) {
	if m.state != StateDefectHolding {
		return time.Time{}, false
	}
	return m.holdDeadline, true
}

// LastCommandAt is the time of the last emitted command, zero if none.
func (m *StateMachine) LastCommandAt() time.Time { return m.lastSent }

// HoldDuration returns the configured hold.
func (m *StateMachine) HoldDuration() time.Duration { return m.hold }

// Cooldown returns the configured advisory spacing.
func (m *StateMachine) Cooldown() time.Duration { return m.cooldown }

// Snapshot copies the current state.
func (m *StateMachine) Snapshot() Snapshot {
	s := Snapshot{State: m.state, LastCommand: m.lastCommand}
	if d, ok := m.HoldDeadline(); ok {
		s.HoldDeadline = &d
	}
	if m.lastCommand != CommandNone {
		at := m.lastSent
		s.LastCommandAt = &at
	}
	return s
}
