package artnet

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
)

// packetConn is the datagram socket owned by the node.
type packetConn interface {
	// ReadFrom blocks until a datagram arrives. dst is the destination
	// address of the datagram when the platform reports it.
	ReadFrom(b []byte) (n int, src netip.AddrPort, dst netip.Addr, err error)
	WriteTo(b []byte, to netip.AddrPort) error
	Close() error
}

type udpConn struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

// listenUDP binds the Art-Net port on all interfaces with broadcast and
// address reuse enabled.
func listenUDP(port int) (packetConn, error) {
	lc := net.ListenConfig{Control: controlSocket}
	c, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	uc := c.(*net.UDPConn)
	u := &udpConn{conn: uc, pc: ipv4.NewPacketConn(uc)}
	// Non-fatal on some platforms.
	_ = u.pc.SetControlMessage(ipv4.FlagDst, true)
	return u, nil
}

func (u *udpConn) ReadFrom(b []byte) (int, netip.AddrPort, netip.Addr, error) {
	n, cm, src, err := u.pc.ReadFrom(b)
	if err != nil {
		return 0, netip.AddrPort{}, netip.Addr{}, err
	}
	var from netip.AddrPort
	if ua, ok := src.(*net.UDPAddr); ok {
		ap := ua.AddrPort()
		from = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	var dst netip.Addr
	if cm != nil {
		if d, ok := netip.AddrFromSlice(cm.Dst.To4()); ok {
			dst = d
		}
	}
	return n, from, dst, nil
}

func (u *udpConn) WriteTo(b []byte, to netip.AddrPort) error {
	_, err := u.conn.WriteToUDPAddrPort(b, to)
	return err
}

func (u *udpConn) Close() error {
	return u.conn.Close()
}
