package healthcheck

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jerkytreats/handyman/pkg/validation"
)

// TCPProbe succeeds when a connection to Address can be established.
type TCPProbe struct {
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	Address string `mapstructure:"address" yaml:"address"`
	Timeout *int   `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

func (p *TCPProbe) ProbeName() string { return p.Name }
func (p *TCPProbe) Target() string    { return p.Address }

func (p *TCPProbe) Validate() error {
	if err := validation.ValidateHostPort(p.Address); err != nil {
		return err
	}
	return validateTimeout(p.Timeout)
}

// TCPChecker dials probes over TCP.
type TCPChecker struct {
	dialer net.Dialer
}

func NewTCPChecker() *TCPChecker {
	return &TCPChecker{}
}

func (c *TCPChecker) Check(ctx context.Context, p *TCPProbe) Result {
	start := time.Now()

	ctx, cancel := timeoutContext(ctx, p.Timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("dial %s: %w", p.Address, err))
	}
	latency := time.Since(start)
	_ = conn.Close()
	return Pass(latency)
}
