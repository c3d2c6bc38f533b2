package artnet

import (
	"fmt"
	"math"
	"net/netip"
	"sync"
)

// outputMode decides where ArtDMX packets go. It is derived from the
// hibernate and unicast flags whenever either changes.
type outputMode int32

const (
	outputNone outputMode = iota
	outputUnicast
	outputBroadcast
)

func selectOutput(hibernate, unicast bool) outputMode {
	switch {
	case hibernate:
		return outputNone
	case unicast:
		return outputUnicast
	default:
		return outputBroadcast
	}
}

// outputState is the last frame handed to the socket.
type outputState struct {
	mu   sync.Mutex
	last []float64
}

func (n *Node) refreshOutput() {
	n.output.Store(int32(selectOutput(n.hibernate.Load(), n.unicast.Load())))
}

// Publish sends channels (0..1 values, one per channel of the node) as ArtDMX.
// Only universes that changed since the last sent frame are transmitted.
// While hibernating, or without an open socket, Publish does nothing.
func (n *Node) Publish(channels []float64) error {
	if len(channels) != n.opts.Channels {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidLength, len(channels), n.opts.Channels)
	}
	mode := outputMode(n.output.Load())
	if mode == outputNone {
		return nil
	}

	n.out.mu.Lock()
	defer n.out.mu.Unlock()

	changed := changedUniverses(n.out.last, channels)
	if len(changed) == 0 {
		return nil
	}
	ref := n.conn.Load()
	if ref == nil {
		n.log.Debug("no socket, ArtDMX not sent")
		return nil
	}
	copy(n.out.last, channels)

	frame := quantize(channels)
	pk := n.packets()
	for _, u := range changed {
		b := pk.dmx(u, frame[u*UniverseSize:(u+1)*UniverseSize])
		switch mode {
		case outputUnicast:
			for _, p := range n.peers.Snapshot() {
				n.send(ref, b, p, kindDMX)
			}
		case outputBroadcast:
			n.send(ref, b, n.broadcastTo(), kindDMX)
		}
	}
	return nil
}

func (n *Node) send(c packetConn, b []byte, to netip.AddrPort, kind string) bool {
	if err := c.WriteTo(b, to); err != nil {
		metricSendErrors.Inc()
		if n.warn.Allow() {
			n.log.Errorf("failed to send %s to %s: %v", kind, to, err)
		}
		return false
	}
	metricSentDatagrams.WithLabelValues(kind).Inc()
	return true
}

// changedUniverses returns the indexes of the 512 value slices that differ.
func changedUniverses(prev, next []float64) []int {
	var out []int
	for u := 0; u*UniverseSize < len(next); u++ {
		lo, hi := u*UniverseSize, (u+1)*UniverseSize
		for i := lo; i < hi; i++ {
			if prev[i] != next[i] {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// quantize maps 0..1 to 0..255 with floor rounding. Values outside the range
// are clamped, NaN becomes 0.
func quantize(values []float64) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		switch {
		case !(v > 0):
			out[i] = 0
		case v >= 1:
			out[i] = 255
		default:
			out[i] = byte(math.Floor(v * 255))
		}
	}
	return out
}
