package server

import (
	"net"
	"net/netip"

	"github.com/vitalvas/svcauth/registry"
)

// CheckExemption reports whether rec skips signature verification. An exempt
// record with an ExemptAddress only accepts requests whose remote address
// matches it; otherwise ErrAddressMismatch is returned. remoteAddr may carry
// a port.
func CheckExemption(rec *registry.ServiceRecord, remoteAddr string) (bool, error) {
	if rec == nil || !rec.ExemptEncryption {
		return false, nil
	}

	if rec.ExemptAddress != "" && !sameAddress(remoteAddr, rec.ExemptAddress) {
		return true, ErrAddressMismatch
	}

	return true, nil
}

// sameAddress compares the host part of remoteAddr with expected. IPv4-mapped
// IPv6 forms compare equal to their IPv4 address.
func sameAddress(remoteAddr, expected string) bool {
	host := remoteHost(remoteAddr)

	got, err := netip.ParseAddr(host)
	if err != nil {
		return host == expected
	}

	want, err := netip.ParseAddr(expected)
	if err != nil {
		return false
	}

	return got.Unmap() == want.Unmap()
}

// remoteHost strips the port from addr. A bare address is returned as-is.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
