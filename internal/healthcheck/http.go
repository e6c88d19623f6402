package healthcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jerkytreats/handyman/pkg/validation"
)

// HTTPProbe issues a GET and expects a 2xx status.
type HTTPProbe struct {
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	URL     string `mapstructure:"url" yaml:"url"`
	Timeout *int   `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

func (p *HTTPProbe) ProbeName() string { return p.Name }
func (p *HTTPProbe) Target() string    { return p.URL }

func (p *HTTPProbe) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	return validateTimeout(p.Timeout)
}

// CheckTarget reports a URL that could never be requested. Loading does not
// call it: such a probe still loads and evaluates to Failed.
func (p *HTTPProbe) CheckTarget() error {
	return validation.ValidateHTTPURL(p.URL)
}

// HTTPChecker evaluates HTTP probes with one shared client. The client has no
// timeout of its own; each request is bounded by its probe's timeout.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker returns a checker using a dedicated client.
func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{client: &http.Client{}}
}

// NewHTTPCheckerWithClient returns a checker using client.
func NewHTTPCheckerWithClient(client *http.Client) *HTTPChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPChecker{client: client}
}

func (c *HTTPChecker) Check(ctx context.Context, p *HTTPProbe) Result {
	start := time.Now()

	if err := validation.ValidateHTTPURL(p.URL); err != nil {
		return Fail(time.Since(start), err)
	}

	ctx, cancel := timeoutContext(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("build request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Fail(time.Since(start), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return Pass(time.Since(start))
}
