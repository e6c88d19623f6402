package healthcheck

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	cfapi "github.com/cloudflare/cloudflare-go"

	"github.com/jerkytreats/handyman/pkg/validation"
)

const defaultCloudflareTokenEnv = "CLOUDFLARE_API_TOKEN"

// CloudflareProbe succeeds when the zone holds at least one record matching
// Record (and Type, when set).
type CloudflareProbe struct {
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
	ZoneID   string `mapstructure:"zone_id" yaml:"zone_id"`
	Record   string `mapstructure:"record" yaml:"record"`
	Type     string `mapstructure:"type" yaml:"type,omitempty"`
	TokenEnv string `mapstructure:"token_env" yaml:"token_env,omitempty"`
	Timeout  *int   `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

func (p *CloudflareProbe) ProbeName() string { return p.Name }

func (p *CloudflareProbe) Target() string {
	if p.Type == "" {
		return p.Record
	}
	return p.Record + " " + strings.ToUpper(p.Type)
}

// TokenVariable names the environment variable holding the API token.
func (p *CloudflareProbe) TokenVariable() string {
	if p.TokenEnv == "" {
		return defaultCloudflareTokenEnv
	}
	return p.TokenEnv
}

func (p *CloudflareProbe) Validate() error {
	if p.ZoneID == "" {
		return fmt.Errorf("zone_id is required")
	}
	if p.Record == "" {
		return fmt.Errorf("record is required")
	}
	if err := validation.ValidateFQDN(p.Record); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return validateTimeout(p.Timeout)
}

// CloudflareChecker looks records up through the Cloudflare API. One API
// client is kept per token.
type CloudflareChecker struct {
	options []cfapi.Option

	mu      sync.Mutex
	clients map[string]*cfapi.API
}

// NewCloudflareChecker returns a checker; opts are passed to every API client.
func NewCloudflareChecker(opts ...cfapi.Option) *CloudflareChecker {
	return &CloudflareChecker{options: opts, clients: make(map[string]*cfapi.API)}
}

func (c *CloudflareChecker) client(token string) (*cfapi.API, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if api, ok := c.clients[token]; ok {
		return api, nil
	}
	api, err := cfapi.NewWithAPIToken(token, c.options...)
	if err != nil {
		return nil, fmt.Errorf("could not create Cloudflare API client: %w", err)
	}
	c.clients[token] = api
	return api, nil
}

func (c *CloudflareChecker) Check(ctx context.Context, p *CloudflareProbe) Result {
	start := time.Now()

	token := os.Getenv(p.TokenVariable())
	if token == "" {
		return Fail(time.Since(start), fmt.Errorf("environment variable %s is not set", p.TokenVariable()))
	}

	api, err := c.client(token)
	if err != nil {
		return Fail(time.Since(start), err)
	}

	ctx, cancel := timeoutContext(ctx, p.Timeout)
	defer cancel()

	records, _, err := api.ListDNSRecords(ctx, cfapi.ZoneIdentifier(p.ZoneID), cfapi.ListDNSRecordsParams{
		Name:       p.Record,
		Type:       strings.ToUpper(p.Type),
		ResultInfo: cfapi.ResultInfo{Page: 1, PerPage: 100},
	})
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("could not list DNS records for %s: %w", p.Record, err))
	}
	if len(records) == 0 {
		return Fail(time.Since(start), fmt.Errorf("no DNS records found for %s", p.Target()))
	}
	return Pass(time.Since(start))
}
