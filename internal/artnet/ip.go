package artnet

import (
	"fmt"
	"net"
	"net/netip"
)

var limitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// FindArtNetIP finds the first IPv4 interface address inside addressRange
// (any global unicast address if addressRange is empty) and returns it together
// with the directed broadcast address of its network.
func FindArtNetIP(addressRange string) (ip, broadcast netip.Addr, err error) {
	var cidrNet *net.IPNet
	if addressRange != "" {
		if _, cidrNet, err = net.ParseCIDR(addressRange); err != nil {
			return ip, broadcast, fmt.Errorf("invalid address range %q: %w", addressRange, err)
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ip, broadcast, fmt.Errorf("error getting ips: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil {
			continue
		}
		if cidrNet != nil && !cidrNet.Contains(ipNet.IP) {
			continue
		}
		if cidrNet == nil && !ipNet.IP.IsGlobalUnicast() {
			continue
		}
		ip, _ = netip.AddrFromSlice(ipNet.IP.To4())
		broadcast, _ = netip.AddrFromSlice(bcast(ipNet).IP.To4())
		return ip, broadcast, nil
	}

	return ip, broadcast, fmt.Errorf("no interface found")
}

// bcast returns the directed broadcast address of ip's network.
func bcast(ip *net.IPNet) *net.IPNet {
	var bc = &net.IPNet{}
	bc.IP = make([]byte, len(ip.IP))
	copy(bc.IP, ip.IP)
	bc.Mask = ip.Mask

	offset := len(bc.IP) - len(bc.Mask)
	for i := range bc.IP {
		if i-offset >= 0 {
			bc.IP[i] = ip.IP[i] | ^ip.Mask[i-offset]
		}
	}
	return bc
}
