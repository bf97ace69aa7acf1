// Package privacy keeps personal data out of logs.
package privacy

import (
	"fmt"
	"net"
)

// ClientNetwork reduces a request's remote address to its network so access
// logs never hold a full client IP. IPv4 keeps the /24, IPv6 the /48. The port
// is dropped.
func ClientNetwork(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "invalid"
	}
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0/24", v4[0], v4[1], v4[2])
	}
	prefix := make(net.IP, net.IPv6len)
	copy(prefix, ip[:6])
	return prefix.String() + "/48"
}
