// Package configuration holds the per-check configuration model and loads it
// from the files in the configuration directory.
package configuration

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jerkytreats/handyman/internal/healthcheck"
)

// Handler is a shell command bound to a trigger state.
type Handler struct {
	Name    string            `mapstructure:"name" yaml:"name,omitempty"`
	Command string            `mapstructure:"command" yaml:"command"`
	State   healthcheck.State `mapstructure:"state" yaml:"state"`
	// Timeout is accepted and validated but not enforced by the dispatcher.
	Timeout *int `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// DisplayName returns the handler name, or "unnamed".
func (h Handler) DisplayName() string {
	if h.Name == "" {
		return "unnamed"
	}
	return h.Name
}

// Executable returns the first word of the command.
func (h Handler) Executable() string {
	fields := strings.Fields(h.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (h Handler) Validate() error {
	if h.Executable() == "" {
		return fmt.Errorf("handler %s: %q is not a valid command", h.DisplayName(), h.Command)
	}
	if !h.State.Valid() {
		return fmt.Errorf("handler %s: %w: %q", h.DisplayName(), healthcheck.ErrInvalidState, h.State)
	}
	if h.Timeout != nil && *h.Timeout <= 0 {
		return fmt.Errorf("handler %s: timeout must be positive, got %d", h.DisplayName(), *h.Timeout)
	}
	return nil
}

// Configuration is one loaded configuration file. It is not modified after
// loading.
type Configuration struct {
	Name     string
	Interval *int
	Handlers []Handler
	// Groups holds one entry per declared probe type, in registry order.
	Groups []healthcheck.Group
	// Source is the file the configuration was read from, if any.
	Source string
}

// DisplayName returns the configuration name, or "unnamed".
func (c *Configuration) DisplayName() string {
	if c.Name == "" {
		return "unnamed"
	}
	return c.Name
}

// MaxInterval is the longest interval, in seconds, a time.Duration can hold.
const MaxInterval = math.MaxInt64 / int64(time.Second)

// Wait returns the polling interval counted in unit, and whether one is
// configured. Intervals too long for a time.Duration saturate.
func (c *Configuration) Wait(unit time.Duration) (time.Duration, bool) {
	if c.Interval == nil {
		return 0, false
	}
	if unit <= 0 {
		unit = time.Second
	}
	n := int64(*c.Interval)
	if n > math.MaxInt64/int64(unit) {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(n) * unit, true
}

// ProbeCount returns the number of probes across all groups.
func (c *Configuration) ProbeCount() int {
	n := 0
	for _, g := range c.Groups {
		n += g.Len()
	}
	return n
}

// Validate checks interval and handlers. Probe configs are validated while
// their groups are decoded.
func (c *Configuration) Validate() error {
	var errs []error
	if c.Interval != nil && *c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval cannot be negative, got %d", *c.Interval))
	}
	if c.Interval != nil && int64(*c.Interval) > MaxInterval {
		errs = append(errs, fmt.Errorf("interval cannot exceed %d seconds, got %d", MaxInterval, *c.Interval))
	}
	for _, h := range c.Handlers {
		if err := h.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
