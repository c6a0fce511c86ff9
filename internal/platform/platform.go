// Package platform classifies support-site URLs and defines the capability
// boundary for per-platform page access.
package platform

import (
	"net/url"
	"strings"
)

// ID identifies a supported customer-support platform.
type ID string

const (
	Zendesk   ID = "zendesk"
	Freshdesk ID = "freshdesk"
	Facebook  ID = "facebook"
	Hootsuite ID = "hootsuite"
	Freshchat ID = "freshchat"
	Intercom  ID = "intercom"
	Unknown   ID = "unknown"
)

// markers is the ordered detection list. First substring match wins, so the
// order is part of the contract.
var markers = []ID{Zendesk, Freshdesk, Facebook, Hootsuite, Freshchat, Intercom}

// All returns the supported platforms, in detection order.
func All() []ID {
	out := make([]ID, len(markers))
	copy(out, markers)
	return out
}

// Valid reports whether id is a known platform identifier (including Unknown).
func Valid(id ID) bool {
	if id == Unknown {
		return true
	}
	for _, m := range markers {
		if m == id {
			return true
		}
	}
	return false
}

// Detect classifies a hostname or full URL. It is pure and total: any input
// that matches no marker, including garbage, classifies as Unknown. The same
// function runs in the daemon (tab navigation) and in content contexts (own
// location), so both always agree on a given URL.
func Detect(hostnameOrURL string) ID {
	host := strings.ToLower(hostnameOrURL)
	if u, err := url.Parse(hostnameOrURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}

	for _, m := range markers {
		if strings.Contains(host, string(m)) {
			return m
		}
	}
	return Unknown
}
