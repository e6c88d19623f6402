package healthcheck

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		states   []State
		expected Outcome
	}{
		{"empty", nil, Outcome{}},
		{"single ok", []State{Ok}, Outcome{AnySucceeded: true}},
		{"single failed", []State{Failed}, Outcome{AnyFailed: true}},
		{"all ok", []State{Ok, Ok, Ok}, Outcome{AnySucceeded: true}},
		{"all failed", []State{Failed, Failed}, Outcome{AnyFailed: true}},
		{"mixed", []State{Ok, Failed}, Outcome{AnyFailed: true, AnySucceeded: true}},
		{"mixed reversed", []State{Failed, Ok, Ok}, Outcome{AnyFailed: true, AnySucceeded: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Aggregate(tt.states))
		})
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	states := []State{Ok, Ok, Failed, Ok}
	want := Aggregate(states)
	for i := range states {
		rotated := append(append([]State{}, states[i:]...), states[:i]...)
		assert.Equal(t, want, Aggregate(rotated))
	}
}

func TestParseState(t *testing.T) {
	st, err := ParseState("ok")
	require.NoError(t, err)
	assert.Equal(t, Ok, st)

	st, err = ParseState("failed")
	require.NoError(t, err)
	assert.Equal(t, Failed, st)

	for _, bad := range []string{"", "OK", "pending", "unknown"} {
		_, err := ParseState(bad)
		assert.ErrorIs(t, err, ErrInvalidState, bad)
	}
}

func TestValidateTimeout(t *testing.T) {
	assert.NoError(t, validateTimeout(nil))
	assert.NoError(t, validateTimeout(intPtr(5)))
	assert.Error(t, validateTimeout(intPtr(0)))
	assert.Error(t, validateTimeout(intPtr(-3)))
	assert.Error(t, validateTimeout(intPtr(math.MaxInt)))
}

func intPtr(v int) *int { return &v }
