package serp

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL reduces a result URL to scheme+host+path with the query
// and fragment stripped, a lowercased host, and the trailing slash
// collapsed. Returns false for unparseable or host-less input.
func NormalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)
	path := u.EscapedPath()
	if path == "/" {
		path = ""
	} else {
		path = strings.TrimSuffix(path, "/")
	}

	return scheme + "://" + host + path, true
}

// Host extracts the lowercased host of a URL, without port.
func Host(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

// RegistrableDomain maps a host to its effective-TLD-plus-one
// ("shop.example.co.uk" → "example.co.uk"), falling back to the host
// itself when the public-suffix list cannot place it.
func RegistrableDomain(host string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return strings.ToLower(host)
	}
	return domain
}
