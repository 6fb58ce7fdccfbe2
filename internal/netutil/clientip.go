// Package netutil resolves client IP addresses for the login rate
// limiter, audit log, and the loop-back-only push ingest endpoint.
package netutil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address to attribute a request to: the direct
// peer, unless it parses as a private or loopback address, in which case
// X-Forwarded-For (first hop) or X-Real-IP is trusted instead. This
// matches a reverse-proxy deployment where the proxy is on the loopback
// or an RFC1918 address and the real client is further upstream.
func ClientIP(r *http.Request) string {
	direct := directPeer(r)
	ip := net.ParseIP(direct)
	if ip == nil || !(ip.IsPrivate() || ip.IsLoopback()) {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	return direct
}

func directPeer(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsPrivateOrLoopback reports whether addr (host, no port) parses as a
// private or loopback IP. Used to gate the embedded backend's loop-back
// push ingest endpoint.
func IsPrivateOrLoopback(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback()
}
