// Package auth provides pure credential extraction and comparison.
// This package has NO dependencies on I/O or external packages.
package auth

import (
	"crypto/subtle"
	"strings"
)

// Credentials carries the raw credential material a request may present.
// Clients reach the gateway with several conventions; all of them
// resolve to a single client key.
type Credentials struct {
	Authorization string // Authorization header, "Bearer sk-xxxx" form
	GoogAPIKey    string // x-goog-api-key header
	QueryKey      string // key query parameter
}

// ClientKey extracts the API key a request presented, or "" when none
// was provided. Precedence: x-goog-api-key header, then key query
// parameter, then bearer token.
func ClientKey(c Credentials) string {
	if c.GoogAPIKey != "" {
		return c.GoogAPIKey
	}
	if c.QueryKey != "" {
		return c.QueryKey
	}
	if strings.HasPrefix(c.Authorization, "Bearer ") {
		return strings.TrimPrefix(c.Authorization, "Bearer ")
	}
	return ""
}

// Valid compares a client-provided key against the configured key in
// constant time. A missing key on either side never validates.
func Valid(provided, configured string) bool {
	if provided == "" || configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}
