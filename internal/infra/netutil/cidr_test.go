package netutil

import (
	"net"
	"testing"
)

func TestParseCIDRs(t *testing.T) {
	nets, bad := ParseCIDRs([]string{"127.0.0.0/8", " ::1/128 ", "10.0.0.300/8", ""})
	if len(nets) != 2 || len(bad) != 1 || bad[0] != "10.0.0.300/8" {
		t.Fatalf("got nets=%v bad=%v", nets, bad)
	}
	if !nets[0].Contains(net.ParseIP("127.0.0.1")) {
		t.Fatalf("loopback not matched")
	}
}
