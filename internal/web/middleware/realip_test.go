package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{name: "untrusted peer keeps its address", trusted: []string{"10.0.0.0/8"}, remoteAddr: "203.0.113.7:5555", realIP: "1.2.3.4", want: "203.0.113.7"},
		{name: "trusted proxy with X-Real-IP", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5555", realIP: "198.51.100.9", want: "198.51.100.9"},
		{name: "X-Real-IP wins over X-Forwarded-For", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5555", realIP: "198.51.100.9", forwarded: "192.0.2.1", want: "198.51.100.9"},
		{name: "first X-Forwarded-For entry", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5555", forwarded: "192.0.2.1, 10.1.2.3", want: "192.0.2.1"},
		{name: "single address entry", trusted: []string{"127.0.0.1"}, remoteAddr: "127.0.0.1:80", forwarded: "192.0.2.1", want: "192.0.2.1"},
		{name: "invalid header ignored", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5555", realIP: "not-an-ip", want: "10.1.2.3"},
		{name: "no trusted proxies", remoteAddr: "10.1.2.3:5555", realIP: "198.51.100.9", want: "10.1.2.3"},
		{name: "invalid CIDR skipped", trusted: []string{"garbage", "10.0.0.0/8"}, remoteAddr: "10.1.2.3:5555", realIP: "198.51.100.9", want: "198.51.100.9"},
		{name: "ipv6 proxy", trusted: []string{"::1/128"}, remoteAddr: "[::1]:443", realIP: "2001:db8::5", want: "2001:db8::5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
