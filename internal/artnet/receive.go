package artnet

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/Haba1234/go-artnet/packet/code"
)

const maxDatagramSize = 4096

// receive reads datagrams from c until it fails or a shutdown signal with our
// token arrives.
func (n *Node) receive(ctx context.Context, c packetConn) error {
	buf := make([]byte, maxDatagramSize)
	for {
		nr, src, dst, err := c.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || n.hibernate.Load() {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		n.log.Debugf("recv %d bytes from %s to %s", nr, src, dst)
		metricRecvDelivery.WithLabelValues(n.deliveryOf(dst)).Inc()

		if n.handle(c, buf[:nr], src) {
			n.log.Info("ArtNet listener received stop signal")
			return nil
		}
	}
}

// handle dispatches one datagram. It returns true when the listener must stop.
func (n *Node) handle(c packetConn, b []byte, src netip.AddrPort) bool {
	op, err := opcodeOf(b)
	if err != nil {
		metricDroppedDatagrams.WithLabelValues(reasonPreamble).Inc()
		return false
	}

	switch op {
	case code.OpDMX:
		metricRecvDatagrams.WithLabelValues(kindDMX).Inc()
		if n.opts.IgnoreLocalData {
			if self, ok := n.peers.Self(); ok && src.Addr() == self {
				metricDroppedDatagrams.WithLabelValues(reasonLocal).Inc()
				return false
			}
		}
		n.handleDMX(b)

	case code.OpPoll:
		metricRecvDatagrams.WithLabelValues(kindPoll).Inc()
		n.addPeer(src)
		n.send(c, n.packets().reply, n.broadcastTo(), kindPollReply)

	case code.OpPollReply:
		metricRecvDatagrams.WithLabelValues(kindPollReply).Inc()
		n.addPeer(src)

	case opProbe:
		metricRecvDatagrams.WithLabelValues(kindProbe).Inc()
		n.handleProbe(b, src)

	case opShutdown:
		metricRecvDatagrams.WithLabelValues(kindShutdown).Inc()
		if hasTag(b, n.packets().shutdown[tagOffset:]) {
			return true
		}
		metricDroppedDatagrams.WithLabelValues(reasonForeign).Inc()

	default:
		metricRecvDatagrams.WithLabelValues(kindUnknown).Inc()
		if n.warn.Allow() {
			n.log.Warnf("Received unknown package. OpCode: %#04x from %s", uint16(op), src)
		}
	}
	return false
}

func (n *Node) handleDMX(b []byte) {
	u, data, err := decodeDMX(b, n.packets().addr)
	if err != nil {
		metricDroppedDatagrams.WithLabelValues(reasonForeign).Inc()
		return
	}
	n.store.Write(u, data)
}

// handleProbe resolves the own IP from an ip_check we sent ourselves.
func (n *Node) handleProbe(b []byte, src netip.AddrPort) {
	if !hasTag(b, n.packets().probe[tagOffset:]) {
		metricDroppedDatagrams.WithLabelValues(reasonForeign).Inc()
		return
	}
	ip := src.Addr().Unmap()
	removed := n.peers.Resolve(ip)
	n.resolveSelf(ip)
	n.log.Infof("IP of this ArtNet node: %s", ip)
	if removed > 0 {
		n.log.Debugf("removed %d peer entries of this node", removed)
	}
}

// deliveryOf tells whether a datagram reached us by broadcast or unicast.
func (n *Node) deliveryOf(dst netip.Addr) string {
	switch {
	case !dst.IsValid():
		return deliveryUnknown
	case dst == n.opts.Broadcast || dst == limitedBroadcast:
		return deliveryBroadcast
	default:
		return deliveryUnicast
	}
}

// addPeer registers the sender on the Art-Net port, whatever port it sent from.
func (n *Node) addPeer(src netip.AddrPort) {
	p := netip.AddrPortFrom(src.Addr(), uint16(n.opts.Port))
	if n.peers.Add(p) {
		n.log.Infof("New ArtNet node %s", p)
	}
}
