// Package realip resolves the client address behind trusted reverse proxies.
package realip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies holds the proxy ranges whose forwarding headers are believed.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// New parses CIDRs or bare addresses. Unlike NewLenient it rejects bad entries.
func New(entries []string) (*TrustedProxies, error) {
	tp := &TrustedProxies{}
	for _, e := range entries {
		p, ok := parseEntry(e)
		if !ok {
			return nil, fmt.Errorf("invalid trusted proxy %q", e)
		}
		tp.prefixes = append(tp.prefixes, p)
	}
	return tp, nil
}

// NewLenient is New that skips unparsable entries.
func NewLenient(entries []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, e := range entries {
		if p, ok := parseEntry(e); ok {
			tp.prefixes = append(tp.prefixes, p)
		}
	}
	return tp
}

func parseEntry(e string) (netip.Prefix, bool) {
	e = strings.TrimSpace(e)
	if p, err := netip.ParsePrefix(e); err == nil {
		return p.Masked(), true
	}
	if a, err := netip.ParseAddr(e); err == nil {
		return netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()), true
	}
	return netip.Prefix{}, false
}

// IsTrusted reports whether addr falls in a trusted range.
func (tp *TrustedProxies) IsTrusted(addr netip.Addr) bool {
	if tp == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or the first forwarded address when the
// peer is a trusted proxy. X-Forwarded-For wins over X-Real-IP.
func (tp *TrustedProxies) ClientIP(r *http.Request) (netip.Addr, bool) {
	direct, ok := remoteAddr(r.RemoteAddr)
	if !ok || !tp.IsTrusted(direct) {
		return direct, ok
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if a, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
				return a.Unmap(), true
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if a, err := netip.ParseAddr(xri); err == nil {
			return a.Unmap(), true
		}
	}
	return direct, true
}

// GetClientIPString is ClientIP for logs and rate-limit keys; "unknown" when unparsable.
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	a, ok := tp.ClientIP(r)
	if !ok {
		return "unknown"
	}
	return a.String()
}

func remoteAddr(addr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
