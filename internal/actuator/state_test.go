package actuator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestNewStateMachineDefaults(t *testing.T) {
	m := NewStateMachine(0, -1)
	assert.Equal(t, DefaultHoldDuration, m.HoldDuration())
	assert.Equal(t, DefaultCooldown, m.Cooldown())
	assert.Equal(t, StateClear, m.State())
	_, holding := m.HoldDeadline()
	assert.False(t, holding)
	assert.True(t, m.LastCommandAt().IsZero())
}

func TestZeroCooldownNeverFlagsCommands(t *testing.T) {
	m := NewStateMachine(time.Second, 0)
	assert.Equal(t, time.Duration(0), m.Cooldown())

	tr := m.Step(at(0), true, true)
	require.True(t, tr.Emitted)
	tr = m.Step(at(time.Millisecond), true, false)
	require.True(t, tr.Emitted)
	assert.Equal(t, time.Millisecond, tr.SinceLastCommand)
	assert.False(t, tr.WithinCooldown)
}

func TestStepTable(t *testing.T) {
	tests := []struct {
		name      string
		start     State
		present   bool
		defective bool
		offset    time.Duration // from entering defect_holding
		want      State
		cmd       Command
	}{
		{"clear, nothing seen", StateClear, false, false, 0, StateClear, CommandNone},
		{"clear, defect ignored without object", StateClear, false, true, 0, StateClear, CommandNone},
		{"clear, clean object", StateClear, true, false, 0, StateClear, CommandNone},
		{"clear, defective object", StateClear, true, true, 0, StateDefectHolding, CommandDefect},
		{"holding, gone before deadline", StateDefectHolding, false, false, 4 * time.Second, StateDefectHolding, CommandNone},
		{"holding, gone at deadline", StateDefectHolding, false, false, 5 * time.Second, StateClear, CommandClear},
		{"holding, still defective", StateDefectHolding, true, true, time.Second, StateDefectHolding, CommandNone},
		{"holding, clean object clears early", StateDefectHolding, true, false, time.Second, StateClear, CommandClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateMachine(5*time.Second, time.Second)
			if tt.start == StateDefectHolding {
				require.True(t, m.Step(t0, true, true).Emitted)
			}

			tr := m.Step(at(tt.offset), tt.present, tt.defective)
			assert.Equal(t, tt.start, tr.From)
			assert.Equal(t, tt.want, tr.To)
			assert.Equal(t, tt.want, m.State())
			assert.Equal(t, tt.cmd, tr.Command)
			assert.Equal(t, tt.cmd != CommandNone, tr.Emitted)
		})
	}
}

func TestHoldingIsIdempotent(t *testing.T) {
	m := NewStateMachine(5*time.Second, time.Second)
	require.Equal(t, CommandDefect, m.Step(t0, true, true).Command)

	for i := 1; i < 50; i++ {
		tr := m.Step(at(time.Duration(i)*90*time.Millisecond), true, true)
		assert.False(t, tr.Emitted, "frame %d", i)
	}
	deadline, ok := m.HoldDeadline()
	require.True(t, ok)
	assert.Equal(t, at(5*time.Second), deadline, "re-entrant defects must not extend the hold")
}

func TestHoldTiming(t *testing.T) {
	m := NewStateMachine(5*time.Second, time.Second)
	m.Step(t0, true, true)

	tr := m.Step(at(4900*time.Millisecond), false, false)
	assert.False(t, tr.Emitted)
	assert.Equal(t, StateDefectHolding, m.State())

	tr = m.Step(at(5100*time.Millisecond), false, false)
	assert.True(t, tr.Emitted)
	assert.Equal(t, CommandClear, tr.Command)
	assert.Equal(t, StateClear, m.State())
	_, holding := m.HoldDeadline()
	assert.False(t, holding)
}

func TestEndToEndScenario(t *testing.T) {
	m := NewStateMachine(5*time.Second, time.Second)
	var cmds []Command
	step := func(d time.Duration, present, defective bool) {
		if tr := m.Step(at(d), present, defective); tr.Emitted {
			cmds = append(cmds, tr.Command)
		}
	}

	step(-time.Second, true, false)
	assert.Empty(t, cmds)

	step(0, true, true)
	assert.Equal(t, []Command{CommandDefect}, cmds)
	assert.Equal(t, StateDefectHolding, m.State())

	step(time.Second, false, false)
	assert.Equal(t, []Command{CommandDefect}, cmds)

	step(6*time.Second, false, false)
	assert.Equal(t, []Command{CommandDefect, CommandClear}, cmds)
	assert.Equal(t, StateClear, m.State())
}

func TestCooldownIsAdvisory(t *testing.T) {
	m := NewStateMachine(5*time.Second, time.Second)

	first := m.Step(t0, true, true)
	assert.False(t, first.WithinCooldown)
	assert.Zero(t, first.SinceLastCommand)

	// A clean object clears immediately even inside the cooldown window.
	second := m.Step(at(300*time.Millisecond), true, false)
	require.True(t, second.Emitted)
	assert.True(t, second.WithinCooldown)
	assert.Equal(t, 300*time.Millisecond, second.SinceLastCommand)

	third := m.Step(at(2*time.Second), true, true)
	require.True(t, third.Emitted)
	assert.False(t, third.WithinCooldown)
	assert.Equal(t, at(2*time.Second), m.LastCommandAt())
}

func TestSnapshot(t *testing.T) {
	m := NewStateMachine(5*time.Second, time.Second)
	s := m.Snapshot()
	assert.Equal(t, StateClear, s.State)
	assert.Nil(t, s.HoldDeadline)
	assert.Nil(t, s.LastCommandAt)

	m.Step(t0, true, true)
	s = m.Snapshot()
	require.NotNil(t, s.HoldDeadline)
	assert.Equal(t, at(5*time.Second), *s.HoldDeadline)
	assert.Equal(t, CommandDefect, s.LastCommand)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"defect_holding"`)
	assert.Contains(t, string(raw), `"last_command":"defect"`)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "clear", StateClear.String())
	assert.Equal(t, "defect_holding", StateDefectHolding.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.Equal(t, "defect\n", CommandDefect.Token())
	assert.Equal(t, "clear\n", CommandClear.Token())
	assert.Empty(t, CommandNone.Token())
	assert.Equal(t, "none", CommandNone.String())
}
