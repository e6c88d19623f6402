package healthcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/jerkytreats/handyman/pkg/validation"
)

const (
	defaultDNSQuery = "."
	defaultDNSType  = "A"
)

// DNSProbe sends one query to a server and expects RCODE NOERROR.
type DNSProbe struct {
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	Server  string `mapstructure:"server" yaml:"server"`
	Query   string `mapstructure:"query" yaml:"query,omitempty"`
	Type    string `mapstructure:"type" yaml:"type,omitempty"`
	Timeout *int   `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

func (p *DNSProbe) ProbeName() string { return p.Name }

func (p *DNSProbe) Target() string {
	return fmt.Sprintf("%s %s @%s", p.QueryName(), p.RecordType(), p.Server)
}

// QueryName returns the question name, the root zone when unset.
func (p *DNSProbe) QueryName() string {
	if p.Query == "" {
		return defaultDNSQuery
	}
	return p.Query
}

// RecordType returns the upper-cased question type, A when unset.
func (p *DNSProbe) RecordType() string {
	if p.Type == "" {
		return defaultDNSType
	}
	return strings.ToUpper(p.Type)
}

func (p *DNSProbe) Validate() error {
	if p.Server == "" {
		return fmt.Errorf("server is required")
	}
	if err := validation.ValidateHostPort(p.Server); err != nil {
		return err
	}
	if err := validation.ValidateQueryName(p.QueryName()); err != nil {
		return err
	}
	if _, ok := dns.StringToType[p.RecordType()]; !ok {
		return fmt.Errorf("unknown record type %q", p.Type)
	}
	return validateTimeout(p.Timeout)
}

// DNSChecker evaluates DNS probes over UDP.
type DNSChecker struct {
	net string
}

// NewDNSChecker returns a UDP checker.
func NewDNSChecker() *DNSChecker {
	return &DNSChecker{net: "udp"}
}

func (c *DNSChecker) Check(ctx context.Context, p *DNSProbe) Result {
	start := time.Now()

	qtype, ok := dns.StringToType[p.RecordType()]
	if !ok {
		return Fail(time.Since(start), fmt.Errorf("unknown record type %q", p.Type))
	}

	ctx, cancel := timeoutContext(ctx, p.Timeout)
	defer cancel()

	client := dns.Client{Net: c.net}
	m := dns.Msg{}
	m.SetQuestion(dns.Fqdn(p.QueryName()), qtype)
	m.RecursionDesired = true

	r, _, err := client.ExchangeContext(ctx, &m, p.Server)
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("dns query to %s failed: %w", p.Server, err))
	}
	if r.Rcode != dns.RcodeSuccess {
		return Fail(time.Since(start), fmt.Errorf("dns query returned %s", dns.RcodeToString[r.Rcode]))
	}
	return Pass(time.Since(start))
}
