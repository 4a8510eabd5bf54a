// Package urlcheck validates the destination URLs submitted for shortening.
package urlcheck

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL        = errors.New("empty url")
	ErrInvalidURL      = errors.New("invalid url")
	ErrForbiddenTarget = errors.New("url points to this service")
)

const defaultScheme = "http://"

// Normalize trims the candidate and prepends http:// when no scheme is
// given, then requires an absolute http or https URL with a host. Missing
// schemes are completed rather than rejected.
func Normalize(candidate string) (string, error) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return "", ErrEmptyURL
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = defaultScheme + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return trimmed, nil
}

// RejectInternal fails when candidate points at ownDomain. Ports, letter
// case and a leading "www." are ignored on both sides.
func RejectInternal(candidate, ownDomain string) error {
	own := hostOf(ownDomain)
	if own == "" {
		return nil
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if canonicalHost(u.Hostname()) == own {
		return fmt.Errorf("%w: %s", ErrForbiddenTarget, u.Hostname())
	}

	return nil
}

// hostOf accepts either a bare host[:port] or a full base URL.
func hostOf(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, "://") {
		domain = defaultScheme + domain
	}

	u, err := url.Parse(domain)
	if err != nil {
		return ""
	}
	return canonicalHost(u.Hostname())
}

func canonicalHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// Validator applies Normalize and RejectInternal against a fixed own domain.
type Validator struct {
	ownDomain string
}

func NewValidator(ownDomain string) *Validator {
	return &Validator{ownDomain: ownDomain}
}

func (v *Validator) Validate(candidate string) (string, error) {
	normalized, err := Normalize(candidate)
	if err != nil {
		return "", err
	}

	if err := RejectInternal(normalized, v.ownDomain); err != nil {
		return "", err
	}

	return normalized, nil
}
