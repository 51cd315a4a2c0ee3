// Package privacy masks client addresses before they reach the logs.
package privacy

import (
	"fmt"
	"net"
	"net/netip"
)

// AnonymizeIP truncates an address to its network: /24 for IPv4 and /48 for
// IPv6. Returns "unknown" for empty input and "invalid" when unparseable.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	if addr.Is4() {
		prefix := netip.PrefixFrom(addr, 24).Masked()
		return prefix.Addr().String()
	}

	b := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::", b[0], b[1], b[2], b[3], b[4], b[5])
}

// AnonymizeRemoteAddr anonymizes an http.Request RemoteAddr, which may carry
// a port.
func AnonymizeRemoteAddr(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return AnonymizeIP(host)
	}
	return AnonymizeIP(remoteAddr)
}
