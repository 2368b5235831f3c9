package workers

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

// IPRoyal sticky-session endpoint. The session name pins the same egress IP
// to one worker identity for 168 hours.
const (
	proxyHost = "geo.iproyal.com"
	proxyPort = 12321
)

// ProxyAuth holds the shared IPRoyal credentials ("user:password" in env).
type ProxyAuth struct {
	Username     string
	BasePassword string
}

// ParseProxyAuth splits the IPROYAL_PROXY_AUTH value.
func ParseProxyAuth(raw string) (ProxyAuth, error) {
	user, pass, ok := strings.Cut(raw, ":")
	if !ok || user == "" || pass == "" {
		return ProxyAuth{}, fmt.Errorf("proxy auth must be user:password")
	}
	return ProxyAuth{Username: user, BasePassword: pass}, nil
}

// StickyPassword derives the per-identity sticky-session password. The
// identity name doubles as the session key, minus the leading "+".
func (a ProxyAuth) StickyPassword(identity string) string {
	name := strings.TrimSpace(strings.TrimPrefix(identity, "+"))
	return fmt.Sprintf("%s_session-%s_lifetime-168h", a.BasePassword, name)
}

// stickyDialer builds a SOCKS5 context dialer bound to the identity's
// sticky session.
func stickyDialer(auth ProxyAuth, identity string) (proxy.ContextDialer, error) {
	addr := net.JoinHostPort(proxyHost, strconv.Itoa(proxyPort))
	d, err := proxy.SOCKS5("tcp", addr, &proxy.Auth{
		User:     auth.Username,
		Password: auth.StickyPassword(identity),
	}, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer for %s: %w", identity, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s: no context dial support", identity)
	}
	return cd, nil
}
