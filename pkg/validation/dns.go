// Package validation checks the shape of probe targets before a configuration is accepted.
package validation

import (
	"fmt"
	"strings"
)

const maxLabelLength = 63

// ValidateFQDN checks if a hostname is a valid FQDN
func ValidateFQDN(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}

	if !strings.Contains(hostname, ".") {
		return fmt.Errorf("hostname '%s' is not a valid FQDN - must contain at least one domain separator (.)", hostname)
	}

	if strings.HasPrefix(hostname, ".") || strings.HasSuffix(hostname, ".") {
		return fmt.Errorf("hostname '%s' is not a valid FQDN - cannot start or end with a dot", hostname)
	}

	if !IsValidFQDN(hostname) {
		return fmt.Errorf("hostname '%s' is not a valid FQDN - contains invalid characters or format", hostname)
	}

	return nil
}

// IsValidFQDN checks if a string is a valid FQDN format
func IsValidFQDN(hostname string) bool {
	if hostname == "" || !strings.Contains(hostname, ".") {
		return false
	}

	if strings.HasPrefix(hostname, ".") || strings.HasSuffix(hostname, ".") {
		return false
	}

	for _, part := range strings.Split(hostname, ".") {
		if !isValidLabel(part) {
			return false
		}
	}

	return true
}

// ValidateHostname accepts single-label names ("localhost", "db") as well as FQDNs.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}
	for _, part := range strings.Split(hostname, ".") {
		if !isValidLabel(part) {
			return fmt.Errorf("hostname '%s' contains an invalid label '%s'", hostname, part)
		}
	}
	return nil
}

// ValidateQueryName checks a DNS question name. The root "." and
// fully-qualified names with a trailing dot are allowed.
func ValidateQueryName(name string) error {
	if name == "" {
		return fmt.Errorf("query name cannot be empty")
	}
	if name == "." {
		return nil
	}

	trimmed := strings.TrimSuffix(name, ".")
	for _, part := range strings.Split(trimmed, ".") {
		// Service labels such as _dmarc or _sip._tcp are legal in queries
		if !isValidLabel(strings.TrimPrefix(part, "_")) {
			return fmt.Errorf("query name '%s' contains an invalid label '%s'", name, part)
		}
	}
	return nil
}

func isValidLabel(part string) bool {
	if part == "" || len(part) > maxLabelLength {
		return false
	}

	if !isAlphanumeric(part[0]) || !isAlphanumeric(part[len(part)-1]) {
		return false
	}

	for _, char := range part {
		if !isAlphanumericOrHyphen(char) {
			return false
		}
	}
	return true
}

// isAlphanumeric checks if a byte is alphanumeric
func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// isAlphanumericOrHyphen checks if a rune is alphanumeric or hyphen
func isAlphanumericOrHyphen(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-'
}
