package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ValidateHTTPURL checks that raw is an absolute http or https URL with a host.
func ValidateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url '%s' is invalid: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url '%s' must use http or https, got scheme '%s'", raw, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("url '%s' has no host", raw)
	}
	return nil
}

// ValidateHostPort checks an address of the form host:port. The host may be an
// IP literal or a hostname; the port must be in 1..65535.
func ValidateHostPort(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("address '%s' is not host:port: %w", address, err)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("address '%s' has invalid port '%s'", address, port)
	}

	if host == "" {
		return fmt.Errorf("address '%s' has no host", address)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	return ValidateHostname(host)
}
