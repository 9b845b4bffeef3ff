package monitor

import (
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

const loopbackIPv4 = "127.0.0.1"

// LocalIPv4 returns the first IPv4 address of an up, non-loopback
// interface, so phones on the same network can reach the relay. It falls
// back to 127.0.0.1.
func LocalIPv4() string {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return loopbackIPv4
	}
	return pickIPv4(ifaces)
}

func pickIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseAddr(addr.Addr)
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return loopbackIPv4
}

// parseAddr accepts both CIDR and bare addresses.
func parseAddr(s string) net.IP {
	if ip, _, err := net.ParseCIDR(s); err == nil {
		return ip
	}
	return net.ParseIP(s)
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
