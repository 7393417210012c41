package entity

import (
	"fmt"
	"net"
	"net/url"
)

// maxURLLength defines the maximum allowed length for endpoint URLs.
const maxURLLength = 2048

// ValidateEndpointURL validates the format and safety of a provider endpoint
// URL before any dispatcher is allowed to POST recipient data to it.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a
// valid host, and blocks private address ranges so a misconfigured endpoint
// cannot be pointed at internal infrastructure.
// Returns a ValidationError if the URL is invalid or empty.
func ValidateEndpointURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "endpoint",
			Message: fmt.Sprintf("endpoint must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse endpoint URL: %w", err)
	}

	// HTTPまたはHTTPSスキームのみ許可
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "endpoint", Message: "endpoint must use http or https scheme"}
	}

	// ホスト名の検証
	if parsedURL.Host == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint must have a valid host"}
	}

	// SSRF対策: プライベートIPアドレスをブロック
	host := parsedURL.Hostname()
	ips, err := net.LookupIP(host)
	if err == nil && len(ips) > 0 {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return &ValidationError{
					Field:   "endpoint",
					Message: "endpoint cannot point to private network",
				}
			}
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is in a private or restricted range:
// localhost, link-local (which includes the 169.254.169.254 cloud metadata
// endpoint), and the RFC 1918 private networks.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate()
}
