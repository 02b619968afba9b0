package muxhandlers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gorilla/mux"
)

// ErrInvalidProxy is returned for a TrustedProxies entry that is neither an
// address nor a prefix.
var ErrInvalidProxy = errors.New("proxy headers: invalid proxy entry")

// DefaultTrustedProxies covers loopback and private ranges.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
}

// ProxyHeadersConfig configures ProxyHeadersMiddleware.
type ProxyHeadersConfig struct {
	// TrustedProxies lists addresses and prefixes allowed to set forwarding
	// headers. Defaults to DefaultTrustedProxies.
	TrustedProxies []string
}

// ProxyHeadersMiddleware rewrites the request as the client sent it when the
// peer is a trusted proxy:
//   - r.RemoteAddr from X-Forwarded-For, walking right to left past trusted
//     hops, then X-Real-IP
//   - r.URL.Scheme from X-Forwarded-Proto
//   - r.Host from X-Forwarded-Host
//
// Requests from untrusted peers are passed through untouched.
func ProxyHeadersMiddleware(cfg ProxyHeadersConfig) (mux.MiddlewareFunc, error) {
	entries := cfg.TrustedProxies
	if len(entries) == 0 {
		entries = DefaultTrustedProxies
	}

	trusted, err := parsePrefixes(entries)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := peerAddr(r.RemoteAddr)
			if !ok || !trusted.contains(peer) {
				next.ServeHTTP(w, r)
				return
			}

			r = r.Clone(r.Context())

			if ip, ok := trusted.clientFromForwardedFor(r.Header.Values("X-Forwarded-For")); ok {
				r.RemoteAddr = ip.String()
			} else if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
				r.RemoteAddr = ip.Unmap().String()
			}

			switch proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto {
			case "http", "https":
				r.URL.Scheme = proto
			}

			if host := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); host != "" {
				r.Host = host
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// prefixSet is the list of trusted proxy networks.
type prefixSet []netip.Prefix

// parsePrefixes parses CIDR ranges and bare addresses into a prefixSet.
func parsePrefixes(entries []string) (prefixSet, error) {
	out := make(prefixSet, 0, len(entries))

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}

			out = append(out, p.Masked())

			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}

		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return out, nil
}

// contains reports whether addr belongs to a trusted network.
func (s prefixSet) contains(addr netip.Addr) bool {
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

// clientFromForwardedFor returns the rightmost address that is not a trusted
// proxy. Entries left of it can be forged by the client.
func (s prefixSet) clientFromForwardedFor(values []string) (netip.Addr, bool) {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}

	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return netip.Addr{}, false
		}

		addr = addr.Unmap()
		if !s.contains(addr) || i == 0 {
			return addr, true
		}
	}

	return netip.Addr{}, false
}

// peerAddr extracts the unmapped IP address from a host:port remote address.
func peerAddr(remoteAddr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}

	return addr.Unmap(), true
}
