// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may create shares.
//
// A host entry without a port matches the origin's hostname on any
// port; an entry with a port must match host:port exactly. Matching is
// case-insensitive and never by prefix or suffix.
type OriginPolicy struct {
	// PrimaryHost is the deployment's own hostname.
	PrimaryHost string

	// ProductionHosts are additional hosts allowed in production.
	ProductionHosts []string
}

// Allowed reports whether origin, the value of an Origin header, is
// permitted. An empty origin is never permitted.
func (p OriginPolicy) Allowed(origin string) bool {
	if origin == "" || origin == "null" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if matchHost(p.PrimaryHost, parsed) {
		return true
	}
	for _, host := range p.ProductionHosts {
		if matchHost(host, parsed) {
			return true
		}
	}
	return false
}

func matchHost(allowed string, origin *url.URL) bool {
	if allowed == "" {
		return false
	}
	if strings.Contains(allowed, ":") {
		return strings.EqualFold(allowed, origin.Host)
	}
	return strings.EqualFold(allowed, origin.Hostname())
}
