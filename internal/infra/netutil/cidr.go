package netutil

import (
	"net"
	"strings"
)

// ParseCIDRs parses CIDR strings into []*net.IPNet and returns the entries it
// could not parse so the caller can log them.
func ParseCIDRs(cidrs []string) (out []*net.IPNet, invalid []string) {
	for _, s := range cidrs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil || n == nil {
			invalid = append(invalid, s)
			continue
		}
		out = append(out, n)
	}
	return out, invalid
}
