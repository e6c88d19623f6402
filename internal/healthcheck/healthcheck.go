// Package healthcheck defines the probe capability, the probe-type registry and
// the per-group aggregation rule used by the service loop.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// State is the outcome of a single probe evaluation.
type State string

const (
	Ok     State = "ok"
	Failed State = "failed"
)

// ErrInvalidState is returned when a state is neither "ok" nor "failed".
var ErrInvalidState = errors.New("invalid health check state")

// Valid reports whether s is one of the two known states.
func (s State) Valid() bool {
	return s == Ok || s == Failed
}

// ParseState converts the configuration spelling of a state.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidState, s, Ok, Failed)
	}
	return st, nil
}

// Result holds the outcome of one probe evaluation.
type Result struct {
	State   State
	Latency time.Duration
	Err     error
}

// Pass builds an Ok result.
func Pass(latency time.Duration) Result {
	return Result{State: Ok, Latency: latency}
}

// Fail builds a Failed result carrying the cause.
func Fail(latency time.Duration, err error) Result {
	return Result{State: Failed, Latency: latency, Err: err}
}

// Probe is the configuration of one probe. Every probe type implements it.
type Probe interface {
	// ProbeName returns the optional identity name.
	ProbeName() string
	// Target is a short description of what is probed, used in logs and spans.
	Target() string
	// Validate checks the static shape of the probe configuration.
	Validate() error
}

// Checker evaluates probes of one type. Check never returns an error: every
// failure mode resolves to a Failed result.
type Checker[C Probe] interface {
	Check(ctx context.Context, cfg C) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc[C Probe] func(ctx context.Context, cfg C) Result

// Check calls f.
func (f CheckerFunc[C]) Check(ctx context.Context, cfg C) Result {
	return f(ctx, cfg)
}

// Outcome is the reduction of one group's states.
type Outcome struct {
	AnyFailed    bool
	AnySucceeded bool
}

// Aggregate reduces a sequence of states. Both flags are false for an empty
// sequence and both may be true for a mixed one.
func Aggregate(states []State) Outcome {
	var out Outcome
	for _, st := range states {
		switch st {
		case Failed:
			out.AnyFailed = true
		case Ok:
			out.AnySucceeded = true
		}
		if out.AnyFailed && out.AnySucceeded {
			break
		}
	}
	return out
}

// timeoutContext derives a context bounded by seconds. A nil timeout leaves the
// request unbounded.
func timeoutContext(ctx context.Context, seconds *int) (context.Context, context.CancelFunc) {
	if seconds == nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(*seconds)*time.Second)
}

func displayName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}

// maxTimeout is the longest timeout, in seconds, a time.Duration can hold.
const maxTimeout = math.MaxInt64 / int64(time.Second)

func validateTimeout(seconds *int) error {
	if seconds == nil {
		return nil
	}
	if *seconds <= 0 {
		return fmt.Errorf("timeout must be a positive number of seconds, got %d", *seconds)
	}
	if int64(*seconds) > maxTimeout {
		return fmt.Errorf("timeout cannot exceed %d seconds, got %d", maxTimeout, *seconds)
	}
	return nil
}
