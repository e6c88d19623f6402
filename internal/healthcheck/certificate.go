package healthcheck

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
)

const defaultMinValidityDays = 7

// CertificateProbe checks that a PEM certificate on disk stays valid for at
// least MinValidity days.
type CertificateProbe struct {
	Name        string `mapstructure:"name" yaml:"name,omitempty"`
	Path        string `mapstructure:"path" yaml:"path"`
	MinValidity *int   `mapstructure:"min_validity" yaml:"min_validity,omitempty"`
}

func (p *CertificateProbe) ProbeName() string { return p.Name }
func (p *CertificateProbe) Target() string    { return p.Path }

// MinValidityDays returns the configured threshold, 7 days when unset.
func (p *CertificateProbe) MinValidityDays() int {
	if p.MinValidity == nil {
		return defaultMinValidityDays
	}
	return *p.MinValidity
}

func (p *CertificateProbe) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	if p.MinValidity != nil && *p.MinValidity < 0 {
		return fmt.Errorf("min_validity cannot be negative, got %d", *p.MinValidity)
	}
	return nil
}

// CertificateChecker reads the certificate on every evaluation so renewals are
// picked up without a restart.
type CertificateChecker struct {
	now func() time.Time
}

func NewCertificateChecker() *CertificateChecker {
	return &CertificateChecker{now: time.Now}
}

func (c *CertificateChecker) Check(_ context.Context, p *CertificateProbe) Result {
	start := time.Now()

	certBytes, err := os.ReadFile(p.Path)
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("read certificate: %w", err))
	}

	cert, err := certcrypto.ParsePEMCertificate(certBytes)
	if err != nil {
		return Fail(time.Since(start), fmt.Errorf("parse certificate %s: %w", p.Path, err))
	}

	now := c.now()
	if now.Before(cert.NotBefore) {
		return Fail(time.Since(start), fmt.Errorf("certificate not valid before %s", cert.NotBefore.Format(time.RFC3339)))
	}

	deadline := now.Add(time.Duration(p.MinValidityDays()) * 24 * time.Hour)
	if cert.NotAfter.Before(deadline) {
		return Fail(time.Since(start), fmt.Errorf("certificate expires %s, within %d days",
			cert.NotAfter.Format(time.RFC3339), p.MinValidityDays()))
	}
	return Pass(time.Since(start))
}
