package netutil

import (
	"net/http"
	"testing"
)

func TestClientIPPrefersForwardedForPrivatePeer(t *testing.T) {
	r := &http.Request{
		RemoteAddr: "10.0.0.5:54321",
		Header:     http.Header{"X-Forwarded-For": []string{"203.0.113.7, 10.0.0.5"}},
	}
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("ClientIP = %q, want 203.0.113.7", got)
	}
}

func TestClientIPIgnoresForwardedForPublicPeer(t *testing.T) {
	r := &http.Request{
		RemoteAddr: "203.0.113.9:443",
		Header:     http.Header{"X-Forwarded-For": []string{"1.2.3.4"}},
	}
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want 203.0.113.9 (direct peer is public, forwarded header must be ignored)", got)
	}
}

func TestClientIPLoopbackFallsBackToXRealIP(t *testing.T) {
	r := &http.Request{
		RemoteAddr: "127.0.0.1:8080",
		Header:     http.Header{"X-Real-Ip": []string{"198.51.100.2"}},
	}
	if got := ClientIP(r); got != "198.51.100.2" {
		t.Errorf("ClientIP = %q, want 198.51.100.2", got)
	}
}

func TestIsPrivateOrLoopback(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":    true,
		"10.0.0.1":     true,
		"192.168.1.1":  true,
		"203.0.113.10": false,
		"not-an-ip":    false,
	}
	for addr, want := range cases {
		if got := IsPrivateOrLoopback(addr); got != want {
			t.Errorf("IsPrivateOrLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}
